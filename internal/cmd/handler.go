package cmd

import (
	"fmt"
	"io"

	"github.com/engr-lynx/cicd/internal/cmd/output"
)

// FormatHandler returns the handler rendering results in format to w.
// Text output is rendered by p.
func FormatHandler[T any](w io.Writer, format OutputFormat, p output.Printer[T]) (output.Handler[T], error) {
	switch format {
	case FormatJSON:
		return output.NewJSONHandler[T](w, 2), nil
	case FormatYAML:
		return output.NewYAMLHandler[T](w, 2), nil
	case FormatText:
		return output.NewTextHandler[T](w, p), nil
	default:
		return nil, fmt.Errorf("invalid format '%s', must be one of %s", format, allowedString())
	}
}

func allowedString() string {
	allowed := AllowedOutputFormats()
	return allowed.String()
}
