// Package printer renders command results as text.
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/engr-lynx/cicd/internal/cmd/output"
)

var _ output.Printer[StackSummary] = (*StackListPrinter)(nil)

// StackSummary describes a synthesized stack.
type StackSummary struct {
	Name         string   `json:"name"                   yaml:"name"`
	Assembly     string   `json:"assembly,omitempty"     yaml:"assembly,omitempty"`
	Environment  string   `json:"environment"            yaml:"environment"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Resources    int      `json:"resources"              yaml:"resources"`
}

// StackListPrinter prints one line per stack, followed by its dependencies.
type StackListPrinter struct {
	headerFunc output.WriteFunc[StackSummary]
	footerFunc output.WriteFunc[StackSummary]
}

// NewStackListPrinter returns a printer with a count header.
func NewStackListPrinter() *StackListPrinter {
	p := &StackListPrinter{}
	p.SetHeader(func(w io.Writer, count int) {
		header := color.New(color.FgGreen, color.Bold).SprintfFunc()
		_, _ = fmt.Fprintln(w, header("Stacks (%d):", count))
	})
	return p
}

func (p *StackListPrinter) Header(w io.Writer, count int) {
	if p.headerFunc != nil {
		p.headerFunc(w, count)
	}
}

func (p *StackListPrinter) SetHeader(fn output.WriteFunc[StackSummary]) {
	p.headerFunc = fn
}

func (p *StackListPrinter) Item(w io.Writer, s StackSummary) error {
	name := s.Name
	if s.Assembly != "" {
		name = s.Assembly + "/" + s.Name
	}
	if _, err := fmt.Fprintf(w, "  %s  %s  (%d resources)\n", name, s.Environment, s.Resources); err != nil {
		return err
	}
	if len(s.Dependencies) > 0 {
		if _, err := fmt.Fprintf(w, "    depends on: %s\n", strings.Join(s.Dependencies, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func (p *StackListPrinter) Footer(w io.Writer, count int) {
	if p.footerFunc != nil {
		p.footerFunc(w, count)
	}
}

func (p *StackListPrinter) SetFooter(fn output.WriteFunc[StackSummary]) {
	p.footerFunc = fn
}
