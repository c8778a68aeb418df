// Package options injects the collaborators of CLI commands.
package options

import (
	stdcontext "context"
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
)

// AssemblyWriter writes a synthesized cloud assembly to a directory.
type AssemblyWriter interface {
	Write(ctx stdcontext.Context, asm *construct.CloudAssembly, dir string) error
}

type CmdOption func(*CmdOptions) error

type CmdOptions struct {
	ContextLoader      context.Loader
	ContextInitializer context.Initializer

	// AssemblyWriter is nil unless set, commands then write with their own logger.
	AssemblyWriter AssemblyWriter

	Secrets secret.Store
}

func defaultOptions() CmdOptions {
	loader := &context.DefaultLoader{}
	return CmdOptions{
		ContextLoader:      context.NewValidatingLoader(loader, context.ValidateSchema),
		ContextInitializer: loader,
		Secrets:            secret.SecretsManager{},
	}
}

func NewOptions(opt ...CmdOption) (CmdOptions, error) {
	opts := defaultOptions()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return CmdOptions{}, err
		}
	}
	return opts, nil
}

func WithContextLoader(l context.Loader) CmdOption {
	return func(o *CmdOptions) error {
		if l == nil {
			return fmt.Errorf("context loader cannot be nil")
		}
		o.ContextLoader = l
		return nil
	}
}

func WithContextInitializer(i context.Initializer) CmdOption {
	return func(o *CmdOptions) error {
		if i == nil {
			return fmt.Errorf("context initializer cannot be nil")
		}
		o.ContextInitializer = i
		return nil
	}
}

func WithAssemblyWriter(w AssemblyWriter) CmdOption {
	return func(o *CmdOptions) error {
		o.AssemblyWriter = w
		return nil
	}
}

func WithSecrets(s secret.Store) CmdOption {
	return func(o *CmdOptions) error {
		if s == nil {
			return fmt.Errorf("secret store cannot be nil")
		}
		o.Secrets = s
		return nil
	}
}
