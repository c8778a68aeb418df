package cmd

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/awslabs/goformation/v7"
	cfncodepipeline "github.com/awslabs/goformation/v7/cloudformation/codepipeline"
	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/assembly"
	"github.com/engr-lynx/cicd/internal/cmd"
	cmdopts "github.com/engr-lynx/cicd/internal/cmd/options"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/flags"
	"github.com/engr-lynx/cicd/internal/pipeline"
)

// Tests in this package set the global flags, so they do not run in parallel.

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// useContextFile points the global flags at path for the duration of the test.
func useContextFile(t *testing.T, path string, overrides ...string) {
	t.Helper()

	prevFile, prevOverrides := flags.ContextFile, flags.ContextOverrides
	prevRegion, prevAccount := flags.Region, flags.Account
	t.Cleanup(func() {
		flags.ContextFile, flags.ContextOverrides = prevFile, prevOverrides
		flags.Region, flags.Account = prevRegion, prevAccount
	})

	flags.ContextFile = path
	flags.ContextOverrides = overrides
	flags.Region = "eu-west-1"
	flags.Account = "123456789012"
}

// skeletonFile writes the skeleton context to a temporary file.
func skeletonFile(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, (&context.DefaultLoader{}).Init(path))
	return path
}

func execute(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	c.SetOut(out)
	c.SetErr(out)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	root, err := NewRootCmd(&cmd.BaseCmd{})
	require.NoError(t, err)

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"init", "validate", "synth", "list"})
	require.NotNil(t, root.PersistentFlags().Lookup(flags.FlagNameContextFile))
	require.NotNil(t, root.PersistentFlags().ShorthandLookup("c"))
}

func TestInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cicd.yaml")
	useContextFile(t, path)

	c, err := NewInitCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	out, err := execute(t, c)
	require.NoError(t, err)
	require.Contains(t, out, "✓ Context file created: "+path)

	loaded, err := (&context.DefaultLoader{}).Load(path)
	require.NoError(t, err)
	require.Equal(t, context.DefaultPipelineID, loaded[context.KeyPipelineID])

	c, err = NewInitCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	_, err = execute(t, c)
	require.ErrorContains(t, err, "already exists")
}

func TestValidateCmd(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		expectedOut   []string
		expectedError error
	}{
		{
			name: "skeleton",
			expectedOut: []string{
				"✓ Context",
				"✓ Synthesized",
			},
		},
		{
			name: "unsupported repository kind",
			content: `[ArchiPipeline]
repoKind = "SVN"
repoName = "archi"

[SitePipeline]
repoKind = "CODECOMMIT"
repoName = "site"
`,
			expectedOut:   []string{"✗ Declaring pipelines"},
			expectedError: context.ErrUnsupportedRepoKind,
		},
		{
			name: "schema violation",
			content: `[SitePipeline]
repoKind = "CODECOMMIT"
repoName = "site"
enableTest = "yes"
`,
			expectedOut:   []string{"✗ Context"},
			expectedError: context.ErrInvalidValue,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := skeletonFile(t, "cicd.toml")
			if tc.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))
			}
			useContextFile(t, path)

			c, err := NewValidateCmd(&cmd.BaseCmd{})
			require.NoError(t, err)
			out, err := execute(t, c)

			for _, want := range tc.expectedOut {
				require.Contains(t, out, want)
			}
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSynthCmd(t *testing.T) {
	useContextFile(t, skeletonFile(t, "cicd.json"))
	outDir := filepath.Join(t.TempDir(), "cdk.out")

	c, err := NewSynthCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	out, err := execute(t, c, "--output-dir", outDir)
	require.NoError(t, err)
	require.Contains(t, out, "✓ Synthesized")

	m, err := assembly.ReadManifest(outDir)
	require.NoError(t, err)
	require.Contains(t, m.Artifacts, context.DefaultPipelineID)
	require.FileExists(t, filepath.Join(outDir, context.DefaultPipelineID+".template.json"))
	require.FileExists(t, filepath.Join(outDir, "assembly-ArchiPipeline-ArchiDeploy", "ArchiPipeline-ArchiDeploy-Site.template.json"))
}

func TestSynthCmd_WritesTypedTemplates(t *testing.T) {
	useContextFile(t, skeletonFile(t, "cicd.json"))
	outDir := filepath.Join(t.TempDir(), "cdk.out")

	c, err := NewSynthCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	_, err = execute(t, c, "--output-dir", outDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, context.DefaultPipelineID+".template.json"))
	require.NoError(t, err)
	tmpl, err := goformation.ParseJSON(data)
	require.NoError(t, err)

	var pipelines []*cfncodepipeline.Pipeline
	for _, res := range tmpl.Resources {
		if p, ok := res.(*cfncodepipeline.Pipeline); ok {
			pipelines = append(pipelines, p)
		}
	}
	require.Len(t, pipelines, 1)

	var names []string
	for _, st := range pipelines[0].Stages {
		names = append(names, st.Name)
	}
	require.Equal(t, []string{pipeline.StageSource, pipeline.StageBuild, pipeline.StageApproval, pipeline.StageDeploy}, names)
}

func TestSynthCmd_PrintsStack(t *testing.T) {
	useContextFile(t, skeletonFile(t, "cicd.toml"))

	c, err := NewSynthCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	out, err := execute(t, c, "--output-dir", t.TempDir(), "--template-format", "json", "ArchiPipeline-ArchiDeploy-ServiceNetwork")
	require.NoError(t, err)

	var tmpl map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &tmpl))
	require.Contains(t, tmpl, "Resources")
}

func TestSynthCmd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "unknown stack", args: []string{"Missing"}, contains: "stack 'Missing' not found"},
		{name: "unknown template format", args: []string{"--template-format", "toml"}, contains: "invalid format 'toml'"},
		{name: "text template format", args: []string{"--template-format", "text", "ArchiPipeline"}, contains: "format 'text' is not supported here"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			useContextFile(t, skeletonFile(t, "cicd.toml"))

			c, err := NewSynthCmd(&cmd.BaseCmd{})
			require.NoError(t, err)
			_, err = execute(t, c, append([]string{"--output-dir", t.TempDir()}, tc.args...)...)
			require.ErrorContains(t, err, tc.contains)
		})
	}
}

func TestSynthCmd_ServerlessOverrides(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "cicd.toml")
	useContextFile(t, missing, "slsId=Sls", "imageRepoName=orders")
	outDir := t.TempDir()

	c, err := NewSynthCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	_, err = execute(t, c, "--output-dir", outDir)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(outDir, "Sls.template.json"))
}

func TestSynthCmd_LogsToInjectedLogger(t *testing.T) {
	useContextFile(t, skeletonFile(t, "cicd.toml"))

	var logs bytes.Buffer
	base := &cmd.BaseCmd{}
	base.SetLogger(hclog.New(&hclog.LoggerOptions{Name: "cicd", Level: hclog.Debug, Output: &logs}))

	c, err := NewSynthCmd(base)
	require.NoError(t, err)
	_, err = execute(t, c, "--output-dir", t.TempDir())
	require.NoError(t, err)
	require.Contains(t, logs.String(), "cicd.assembly: Wrote assembly")
}

type recordingWriter struct {
	dirs []string
}

func (w *recordingWriter) Write(_ stdcontext.Context, _ *construct.CloudAssembly, dir string) error {
	w.dirs = append(w.dirs, dir)
	return nil
}

func TestSynthCmd_InjectedWriter(t *testing.T) {
	useContextFile(t, skeletonFile(t, "cicd.toml"))

	w := &recordingWriter{}
	c, err := NewSynthCmd(&cmd.BaseCmd{}, cmdopts.WithAssemblyWriter(w))
	require.NoError(t, err)
	_, err = execute(t, c, "--output-dir", "out")
	require.NoError(t, err)
	require.Equal(t, []string{"out"}, w.dirs)
}

func TestListCmd(t *testing.T) {
	useContextFile(t, skeletonFile(t, "cicd.toml"))

	c, err := NewListCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	out, err := execute(t, c, "--format", "json")
	require.NoError(t, err)

	var payload struct {
		Results []struct {
			Name         string   `json:"name"`
			Assembly     string   `json:"assembly"`
			Environment  string   `json:"environment"`
			Dependencies []string `json:"dependencies"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.NotEmpty(t, payload.Results)

	names := map[string]string{}
	envs := map[string]string{}
	for _, r := range payload.Results {
		names[r.Name] = r.Assembly
		envs[r.Name] = r.Environment
	}
	require.Contains(t, names, context.DefaultPipelineID)
	require.Equal(t, "aws://123456789012/eu-west-1", envs[context.DefaultPipelineID])
	require.Equal(t, "assembly-ArchiPipeline-ArchiDeploy", names["ArchiPipeline-ArchiDeploy-ServiceApp"])
}

func TestListCmd_Text(t *testing.T) {
	useContextFile(t, skeletonFile(t, "cicd.toml"))

	c, err := NewListCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	out, err := execute(t, c)
	require.NoError(t, err)
	require.Contains(t, out, "Stacks (")
	require.Contains(t, out, "depends on:")
}

func TestListCmd_ContextError(t *testing.T) {
	useContextFile(t, filepath.Join(t.TempDir(), "cicd.toml"))

	c, err := NewListCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	out, err := execute(t, c, "--format", "yaml")
	require.NoError(t, err)
	require.Contains(t, out, "error: ")
	require.Contains(t, out, "cicd init")
}
