package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engr-lynx/cicd/internal/cmd"
	cmdopts "github.com/engr-lynx/cicd/internal/cmd/options"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/flags"
	"github.com/engr-lynx/cicd/internal/printer"
)

type InitCmd struct {
	*cmd.BaseCmd
	ctxInitializer context.Initializer
}

func NewInitCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &InitCmd{
		BaseCmd:        baseCmd,
		ctxInitializer: opts.ContextInitializer,
	}

	cobraCommand := &cobra.Command{
		Use:   "init",
		Short: "Creates a skeleton context file",
		Long:  c.longDescription(),
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	return cobraCommand, nil
}

func (c *InitCmd) longDescription() string {
	return fmt.Sprintf(
		"Creates a %s context file declaring an architecture pipeline, a site pipeline and one service pipeline.\n\n"+
			"The file format follows the extension (.toml, .json, .yaml). "+
			"The path can be overridden using the `--%s` flag or the `%s` environment variable",
		flags.DefaultContextFile,
		flags.FlagNameContextFile,
		flags.EnvVarContextFile,
	)
}

func (c *InitCmd) run(cmd *cobra.Command, _ []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	if err := c.ctxInitializer.Init(flags.ContextFile); err != nil {
		logger.Error("Context initialization failed", "path", flags.ContextFile, "error", err)
		return fmt.Errorf("error initializing context: %w", err)
	}

	printer.Success(cmd.OutOrStdout(), "Context file created: %s", flags.ContextFile)
	return nil
}
