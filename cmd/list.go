package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/cmd"
	cmdopts "github.com/engr-lynx/cicd/internal/cmd/options"
	"github.com/engr-lynx/cicd/internal/cmd/output"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/printer"
)

type ListCmd struct {
	*cmd.BaseCmd
	ctxLoader    context.Loader
	secrets      secret.Store
	Format       cmd.OutputFormat
	stackPrinter output.Printer[printer.StackSummary]
}

func NewListCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &ListCmd{
		BaseCmd:      baseCmd,
		ctxLoader:    opts.ContextLoader,
		secrets:      opts.Secrets,
		Format:       cmd.FormatText, // Default to plain text
		stackPrinter: printer.NewStackListPrinter(),
	}

	cobraCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the stacks declared by the context",
		Long:  "Lists every stack declared by the context in deployment order, with its environment and dependencies. Nothing is written.",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	allowed := cmd.AllowedOutputFormats()
	cobraCmd.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Specify the output format (one of: %s)", allowed.String()),
	)

	return cobraCmd, nil
}

func (c *ListCmd) run(cobraCmd *cobra.Command, _ []string) error {
	handler, err := cmd.FormatHandler(cobraCmd.OutOrStdout(), c.Format, c.stackPrinter)
	if err != nil {
		return err
	}

	asm, err := synthesize(c.BaseCmd, cobraCmd, c.ctxLoader, c.secrets)
	if err != nil {
		return handler.HandleError(err)
	}

	return handler.HandleResults(summaries(asm)...)
}

// summaries describes the stacks of asm followed by those of its nested assemblies.
func summaries(asm *construct.CloudAssembly) []printer.StackSummary {
	var out []printer.StackSummary
	for _, st := range asm.Stacks {
		out = append(out, printer.StackSummary{
			Name:         st.StackName,
			Assembly:     asm.ID,
			Environment:  st.Environment.String(),
			Dependencies: st.Dependencies,
			Resources:    len(st.Template.Resources),
		})
	}
	for _, nested := range asm.Nested {
		out = append(out, summaries(nested)...)
	}
	return out
}
