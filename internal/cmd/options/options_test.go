package options

import (
	stdcontext "context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
)

type fakeLoader struct {
	context.Loader
}

type fakeInitializer struct {
	context.Initializer
}

type fakeWriter struct{}

func (fakeWriter) Write(stdcontext.Context, *construct.CloudAssembly, string) error { return nil }

type fakeStore struct {
	secret.Store
}

func TestNewOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts, err := NewOptions()
	require.NoError(t, err)

	require.NotNil(t, opts.ContextLoader)
	require.IsType(t, &context.DefaultLoader{}, opts.ContextInitializer)
	require.Equal(t, secret.SecretsManager{}, opts.Secrets)
	require.Nil(t, opts.AssemblyWriter)
}

func TestNewOptions_WithOverrides(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{}
	initializer := &fakeInitializer{}
	store := &fakeStore{}

	opts, err := NewOptions(
		WithContextLoader(loader),
		WithContextInitializer(initializer),
		WithAssemblyWriter(fakeWriter{}),
		WithSecrets(store),
	)
	require.NoError(t, err)

	require.Equal(t, loader, opts.ContextLoader)
	require.Equal(t, initializer, opts.ContextInitializer)
	require.Equal(t, fakeWriter{}, opts.AssemblyWriter)
	require.Equal(t, store, opts.Secrets)
}

func TestNewOptions_RejectsNil(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  CmdOption
	}{
		{name: "loader", opt: WithContextLoader(nil)},
		{name: "initializer", opt: WithContextInitializer(nil)},
		{name: "secrets", opt: WithSecrets(nil)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewOptions(tc.opt)
			require.ErrorContains(t, err, "cannot be nil")
		})
	}
}

func TestNewOptions_WithNilOption(t *testing.T) {
	t.Parallel()

	_, err := NewOptions(nil)
	require.NoError(t, err)
}

func TestNewOptions_WithFailingOption(t *testing.T) {
	t.Parallel()

	_, err := NewOptions(func(*CmdOptions) error { return errors.New("fail") })
	require.ErrorContains(t, err, "fail")
}
