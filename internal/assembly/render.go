package assembly

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/engr-lynx/cicd/internal/construct"
)

// Encoding of a rendered template.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingYAML Encoding = "yaml"
)

// RenderTemplate writes tmpl to w.
func RenderTemplate(w io.Writer, tmpl *construct.Template, enc Encoding) error {
	switch enc {
	case EncodingJSON:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(tmpl)
	case EncodingYAML:
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err := e.Encode(tmpl); err != nil {
			return err
		}
		return e.Close()
	default:
		return fmt.Errorf("unsupported template encoding '%s'", enc)
	}
}
