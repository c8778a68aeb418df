package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

var _ Handler[any] = (*YAMLHandler[any])(nil)

// YAMLHandler renders results and errors as YAML documents.
type YAMLHandler[T any] struct {
	out    io.Writer
	indent int
}

func NewYAMLHandler[T any](w io.Writer, indentSpaces int) *YAMLHandler[T] {
	return &YAMLHandler[T]{out: w, indent: indentSpaces}
}

func (h *YAMLHandler[T]) Writer() io.Writer {
	return h.out
}

func (h *YAMLHandler[T]) HandleResult(item T) error {
	return h.encode(ResultPayload[T]{Result: item})
}

func (h *YAMLHandler[T]) HandleResults(items ...T) error {
	if items == nil {
		items = []T{}
	}
	return h.encode(ResultsPayload[T]{Results: items})
}

func (h *YAMLHandler[T]) HandleError(err error) error {
	return h.encode(ErrorPayload{Error: err.Error()})
}

func (h *YAMLHandler[T]) encode(v any) error {
	enc := yaml.NewEncoder(h.out)
	enc.SetIndent(h.indent)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Close flushes the document.
	return enc.Close()
}
