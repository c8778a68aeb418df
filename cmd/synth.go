package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engr-lynx/cicd/internal/app"
	"github.com/engr-lynx/cicd/internal/assembly"
	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/cmd"
	cmdopts "github.com/engr-lynx/cicd/internal/cmd/options"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/flags"
	"github.com/engr-lynx/cicd/internal/printer"
)

const (
	flagNameOutputDir      = "output-dir"
	flagNameTemplateFormat = "template-format"

	defaultOutputDir = "cdk.out"
)

type SynthCmd struct {
	*cmd.BaseCmd
	ctxLoader context.Loader
	writer    cmdopts.AssemblyWriter
	secrets   secret.Store

	outputDir      string
	templateFormat cmd.OutputFormat
}

func NewSynthCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &SynthCmd{
		BaseCmd:   baseCmd,
		ctxLoader: opts.ContextLoader,
		writer:    opts.AssemblyWriter,
		secrets:   opts.Secrets,

		templateFormat: cmd.FormatYAML,
	}

	cobraCmd := &cobra.Command{
		Use:   "synth [stack]",
		Short: "Synthesizes the context into a cloud assembly",
		Long: "Synthesizes the stacks declared by the context and writes their templates and manifest to the output directory.\n\n" +
			"When a stack is named, by artifact id or construct path, its template is also printed.",
		Args: cobra.MaximumNArgs(1),
		RunE: c.run,
	}

	cobraCmd.Flags().StringVar(&c.outputDir, flagNameOutputDir, defaultOutputDir, "directory the cloud assembly is written to")
	allowed := cmd.TemplateFormats()
	cobraCmd.Flags().Var(
		&c.templateFormat,
		flagNameTemplateFormat,
		fmt.Sprintf("Specify the format of the printed template (one of: %s)", allowed.String()),
	)

	return cobraCmd, nil
}

func (c *SynthCmd) run(cobraCmd *cobra.Command, args []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	if err := c.RequireTogether(cobraCmd, flags.FlagNameRegion, flags.FlagNameAccount); err != nil {
		return err
	}
	if err := c.templateFormat.OneOf(cmd.TemplateFormats()); err != nil {
		return err
	}

	asm, err := synthesize(c.BaseCmd, cobraCmd, c.ctxLoader, c.secrets)
	if err != nil {
		return err
	}

	var stack *construct.StackArtifact
	if len(args) == 1 {
		name := strings.TrimSpace(args[0])
		var ok bool
		if stack, ok = findStack(asm, name); !ok {
			return fmt.Errorf("stack '%s' not found, run: 'cicd list'", name)
		}
	}

	writer := c.writer
	if writer == nil {
		writer = assembly.NewWriter(logger)
	}
	if err := writer.Write(cobraCmd.Context(), asm, c.outputDir); err != nil {
		logger.Error("Writing cloud assembly failed", "dir", c.outputDir, "error", err)
		return err
	}

	if stack != nil {
		return assembly.RenderTemplate(cobraCmd.OutOrStdout(), stack.Template, assembly.Encoding(c.templateFormat))
	}

	printer.Success(cobraCmd.OutOrStdout(), "Synthesized %d stacks to %s", len(asm.AllStacks()), c.outputDir)
	return nil
}

// synthesize loads the context and synthesizes the app it declares.
func synthesize(base *cmd.BaseCmd, cobraCmd *cobra.Command, loader context.Loader, secrets secret.Store) (*construct.CloudAssembly, error) {
	logger, err := base.Logger()
	if err != nil {
		return nil, err
	}

	ctx, err := loadContext(cobraCmd, loader)
	if err != nil {
		return nil, err
	}

	a, err := app.New(app.Props{
		Context: ctx,
		Env:     base.Environment(),
		Secrets: secrets,
		Logger:  logger.Named("app"),
	})
	if err != nil {
		return nil, err
	}

	return a.Synth()
}

// findStack looks name up in asm and its nested assemblies.
func findStack(asm *construct.CloudAssembly, name string) (*construct.StackArtifact, bool) {
	if st, ok := asm.Stack(name); ok {
		return st, true
	}
	for _, nested := range asm.Nested {
		if st, ok := findStack(nested, name); ok {
			return st, true
		}
	}
	return nil, false
}
