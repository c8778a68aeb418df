// Package cmd holds the shared plumbing of the CLI commands.
package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/flags"
	"github.com/engr-lynx/cicd/internal/perms"
)

type BaseCmd struct {
	logger hclog.Logger
}

// SetLogger replaces the logger built from flags.
func (c *BaseCmd) SetLogger(logger hclog.Logger) {
	c.logger = logger
}

// Logger returns the command logger, built on first use from the log flags.
// Output is discarded unless a log path is set.
func (c *BaseCmd) Logger() (hclog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}

	var output io.Writer = io.Discard
	if logPath := strings.TrimSpace(flags.LogPath); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, perms.RegularFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file (%s): %w", logPath, err)
		}
		output = f
	}

	c.logger = hclog.New(&hclog.LoggerOptions{
		Name:   "cicd",
		Level:  logLevel(),
		Output: output,
	})

	return c.logger, nil
}

func logLevel() hclog.Level {
	lvl := strings.ToLower(strings.TrimSpace(flags.LogLevel))
	switch lvl {
	case "trace", "debug", "info", "warn", "error", "off":
		return hclog.LevelFromString(lvl)
	default:
		return hclog.LevelFromString(flags.DefaultLogLevel)
	}
}

// Environment returns the environment of the root stacks, from the region and account flags.
func (c *BaseCmd) Environment() construct.Environment {
	return construct.Environment{
		Account: strings.TrimSpace(flags.Account),
		Region:  strings.TrimSpace(flags.Region),
	}
}

// RequireTogether returns an error when some, but not all, of the named flags are set.
func (c *BaseCmd) RequireTogether(cmd *cobra.Command, names ...string) error {
	var set int
	for _, name := range names {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			set++
		}
	}
	if set == 0 || set == len(names) {
		return nil
	}

	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return fmt.Errorf("flags must be provided together or not at all: (%s)", strings.Join(sorted, ", "))
}
