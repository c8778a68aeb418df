package cmd

import (
	"github.com/spf13/cobra"

	"github.com/engr-lynx/cicd/internal/app"
	"github.com/engr-lynx/cicd/internal/assembly"
	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/cmd"
	cmdopts "github.com/engr-lynx/cicd/internal/cmd/options"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/flags"
	"github.com/engr-lynx/cicd/internal/printer"
)

type ValidateCmd struct {
	*cmd.BaseCmd
	ctxLoader context.Loader
	secrets   secret.Store
}

func NewValidateCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &ValidateCmd{
		BaseCmd:   baseCmd,
		ctxLoader: opts.ContextLoader,
		secrets:   opts.Secrets,
	}

	return &cobra.Command{
		Use:   "validate",
		Short: "Validates the context file",
		Long: "Loads the context file, checks it against the context schema, declares every pipeline it describes " +
			"and checks the synthesized templates against the CloudFormation resource types. " +
			"The first problem found is reported. Nothing is written.",
		Args: cobra.NoArgs,
		RunE: c.run,
	}, nil
}

func (c *ValidateCmd) run(cmd *cobra.Command, _ []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctx, err := loadContext(cmd, c.ctxLoader)
	if err != nil {
		printer.Failure(out, "Context %s: %s", flags.ContextFile, err)
		return err
	}
	printer.Success(out, "Context %s matches the schema", flags.ContextFile)

	a, err := app.New(app.Props{
		Context: ctx,
		Env:     c.Environment(),
		Secrets: c.secrets,
		Logger:  logger.Named("app"),
	})
	if err != nil {
		printer.Failure(out, "Declaring pipelines: %s", err)
		return err
	}

	asm, err := a.Synth()
	if err != nil {
		printer.Failure(out, "Synthesizing: %s", err)
		return err
	}

	if err := assembly.Validate(asm); err != nil {
		printer.Failure(out, "Checking templates: %s", err)
		return err
	}

	printer.Success(out, "Synthesized %d stacks", len(asm.AllStacks()))
	return nil
}
