package printer

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Success prints a check mark status line.
func Success(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, a...))
}

// Failure prints a cross status line.
func Failure(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, a...))
}
