// Package cmd implements the cicd command line.
package cmd

import (
	stdcontext "context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engr-lynx/cicd/internal/cmd"
	cmdopts "github.com/engr-lynx/cicd/internal/cmd/options"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/flags"
)

var version = "dev" // Set at build time using -ldflags

type RootCmd struct {
	*cmd.BaseCmd
}

// Execute runs the root command until completion or interruption.
func Execute() error {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt)
	defer stop()

	rootCmd, err := NewRootCmd(&cmd.BaseCmd{})
	if err != nil {
		return err
	}

	return rootCmd.ExecuteContext(ctx)
}

func NewRootCmd(c *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	root := &RootCmd{BaseCmd: c}

	rootCmd := &cobra.Command{
		Use:           "cicd <command> [args]",
		Short:         "'cicd' synthesizes the CI/CD pipelines of an architecture into a cloud assembly.",
		Long:          root.longDescription(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	fns := []func(*cmd.BaseCmd, ...cmdopts.CmdOption) (*cobra.Command, error){
		NewInitCmd,
		NewValidateCmd,
		NewSynthCmd,
		NewListCmd,
	}
	for _, fn := range fns {
		sub, err := fn(c, opt...)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(sub)
	}

	return rootCmd, nil
}

func (c *RootCmd) longDescription() string {
	return `The 'cicd' CLI reads a deployment context describing the site, service and architecture
pipelines of a project and writes the CloudFormation templates and manifest declaring them.`
}

// loadContext loads the context file and applies the context overrides.
// A missing default context file is tolerated when overrides are given.
func loadContext(cobraCmd *cobra.Command, loader context.Loader) (context.Context, error) {
	ctx, err := loader.Load(flags.ContextFile)
	if err != nil {
		explicit := cobraCmd.Flags().Changed(flags.FlagNameContextFile)
		if !errors.Is(err, context.ErrContextNotFound) || explicit || len(flags.ContextOverrides) == 0 {
			return nil, err
		}
		ctx = context.Context{}
	}
	if len(flags.ContextOverrides) == 0 {
		return ctx, nil
	}

	for _, o := range flags.ContextOverrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("%w: override '%s' must be key=value", context.ErrInvalidKey, o)
		}
		if err := ctx.Set(key, value); err != nil {
			return nil, err
		}
	}

	if err := context.ValidateSchema(ctx); err != nil {
		return nil, err
	}

	return ctx, nil
}
