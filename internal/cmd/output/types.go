// Package output renders command results as text, JSON or YAML.
package output

import "io"

// Handler renders the results of a command.
type Handler[T any] interface {
	// Writer returns the io.Writer results are rendered to.
	Writer() io.Writer

	HandleResult(item T) error
	HandleResults(items ...T) error

	// HandleError renders err. Text handlers return it unchanged.
	HandleError(err error) error
}

// WriteFunc writes the header or footer of a list of count items.
type WriteFunc[T any] func(w io.Writer, count int)

// Printer renders items of a list as text.
type Printer[T any] interface {
	Header(w io.Writer, count int)
	SetHeader(fn WriteFunc[T])
	Item(w io.Writer, elem T) error
	Footer(w io.Writer, count int)
	SetFooter(fn WriteFunc[T])
}

// ResultsPayload wraps the items of a structured rendering under "results".
type ResultsPayload[T any] struct {
	Results []T `json:"results" yaml:"results"`
}

// ResultPayload wraps a single item under "result".
type ResultPayload[T any] struct {
	Result T `json:"result" yaml:"result"`
}

// ErrorPayload wraps an error message under "error".
type ErrorPayload struct {
	Error string `json:"error" yaml:"error"`
}
