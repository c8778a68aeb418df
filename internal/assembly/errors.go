package assembly

import "errors"

var (
	ErrInvalidManifest = errors.New("invalid assembly manifest")
	ErrUnsafePath      = errors.New("unsafe assembly path")
	ErrInvalidTemplate = errors.New("invalid template")
)
