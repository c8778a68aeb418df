package cmd

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/cmd/output"
)

type namePrinter struct{}

func (namePrinter) Header(io.Writer, int) {}
func (namePrinter) SetHeader(output.WriteFunc[string]) {}
func (namePrinter) Footer(io.Writer, int) {}
func (namePrinter) SetFooter(output.WriteFunc[string]) {}
func (namePrinter) Item(w io.Writer, name string) error {
	_, err := io.WriteString(w, name+"\n")
	return err
}

func TestFormatHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format   OutputFormat
		expected string
	}{
		{format: FormatText, expected: "Site\n"},
		{format: FormatJSON, expected: "{\n  \"results\": [\n    \"Site\"\n  ]\n}\n"},
		{format: FormatYAML, expected: "results:\n  - Site\n"},
	}

	for _, tc := range tests {
		t.Run(string(tc.format), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			h, err := FormatHandler[string](&buf, tc.format, namePrinter{})
			require.NoError(t, err)
			require.NoError(t, h.HandleResults("Site"))
			require.Equal(t, tc.expected, buf.String())
		})
	}
}

func TestFormatHandler_Invalid(t *testing.T) {
	t.Parallel()

	_, err := FormatHandler[string](io.Discard, OutputFormat("xml"), namePrinter{})
	require.ErrorContains(t, err, "json, text, yaml")
}
