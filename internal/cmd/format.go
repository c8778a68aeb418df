package cmd

import (
	"fmt"
	"slices"
	"strings"
)

// OutputFormat selects how a command renders its results. It implements pflag.Value.
type OutputFormat string

type OutputFormats []OutputFormat

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatText OutputFormat = "text"
)

func AllowedOutputFormats() OutputFormats {
	formats := []OutputFormat{
		FormatJSON,
		FormatText,
		FormatYAML,
	}

	slices.Sort(formats)

	return formats
}

// TemplateFormats are the formats a synthesized template can be printed in.
func TemplateFormats() OutputFormats {
	return OutputFormats{FormatJSON, FormatYAML}
}

// OneOf returns an error unless f is one of allowed.
func (f OutputFormat) OneOf(allowed OutputFormats) error {
	if slices.Contains(allowed, f) {
		return nil
	}
	return fmt.Errorf("format '%s' is not supported here, must be one of %v", string(f), allowed.String())
}

// String joins the formats with commas.
func (f *OutputFormats) String() string {
	efs := *f
	out := make([]string, len(efs))
	for i := range efs {
		out[i] = efs[i].String()
	}
	return strings.Join(out, ", ")
}

// String returns the lower case format name.
func (f *OutputFormat) String() string {
	return strings.ToLower(string(*f))
}

// Set parses v, case-insensitive.
func (f *OutputFormat) Set(v string) error {
	v = strings.ToLower(strings.TrimSpace(v))
	allowed := AllowedOutputFormats()

	for _, a := range allowed {
		if string(a) == v {
			*f = OutputFormat(v)
			return nil
		}
	}

	return fmt.Errorf("invalid format '%s', must be one of %v", v, allowed.String())
}

// Type names the flag value in usage output.
func (f *OutputFormat) Type() string {
	return "format"
}
