package context

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const tomlContext = `
pipelineId = "Archi"

[SitePipeline]
repoKind = "CODECOMMIT"
repoName = "site"
createRepo = true

[ServicePipelines.Orders]
repoKind = "GITHUB"
repoName = "orders"
owner = "engr-lynx"
tokenName = "github-token"
cpu = 512
`

const jsonContext = `{
  "pipelineId": "Archi",
  "SitePipeline": {"repoKind": "CODECOMMIT", "repoName": "site", "createRepo": true},
  "ServicePipelines": {
    "Orders": {"repoKind": "GITHUB", "repoName": "orders", "owner": "engr-lynx", "tokenName": "github-token", "cpu": 512}
  }
}`

const yamlContext = `
pipelineId: Archi
SitePipeline:
  repoKind: CODECOMMIT
  repoName: site
  createRepo: true
ServicePipelines:
  Orders:
    repoKind: GITHUB
    repoName: orders
    owner: engr-lynx
    tokenName: github-token
    cpu: 512
`

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultLoader_Load(t *testing.T) {
	t.Parallel()

	want := Context{
		"pipelineId": "Archi",
		"SitePipeline": map[string]any{
			"repoKind":   "CODECOMMIT",
			"repoName":   "site",
			"createRepo": true,
		},
		"ServicePipelines": map[string]any{
			"Orders": map[string]any{
				"repoKind":  "GITHUB",
				"repoName":  "orders",
				"owner":     "engr-lynx",
				"tokenName": "github-token",
				"cpu":       int64(512),
			},
		},
	}

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "toml", file: "cicd.toml", content: tomlContext},
		{name: "json", file: "cicd.json", content: jsonContext},
		{name: "yaml", file: "cicd.yaml", content: yamlContext},
		{name: "yml", file: "cicd.YML", content: yamlContext},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			loader := &DefaultLoader{}
			ctx, err := loader.Load(writeFile(t, tc.file, tc.content))
			require.NoError(t, err)
			require.Equal(t, want, ctx)

			site, err := ctx.Sub(KeySitePipeline)
			require.NoError(t, err)
			props, err := BuildRepoProps(site)
			require.NoError(t, err)
			require.Equal(t, CodeCommitProps{RepoName: "site", CreateRepo: true}, props)
		})
	}
}

func TestDefaultLoader_LoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     func(t *testing.T) string
		contains string
	}{
		{
			name:     "empty path",
			path:     func(t *testing.T) string { return "  " },
			contains: "path cannot be empty",
		},
		{
			name:     "missing file",
			path:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "cicd.toml") },
			contains: "run: 'cicd init'",
		},
		{
			name:     "unsupported extension",
			path:     func(t *testing.T) string { return writeFile(t, "cicd.ini", "a=b") },
			contains: "unsupported context file extension '.ini'",
		},
		{
			name:     "malformed",
			path:     func(t *testing.T) string { return writeFile(t, "cicd.toml", "not [valid") },
			contains: "failed to decode context",
		},
		{
			name:     "empty document",
			path:     func(t *testing.T) string { return writeFile(t, "cicd.json", "{}") },
			contains: "context file is empty",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			loader := &DefaultLoader{}
			_, err := loader.Load(tc.path(t))
			require.ErrorIs(t, err, ErrContextLoadFailed)
			require.ErrorContains(t, err, tc.contains)
		})
	}
}

func TestDefaultLoader_Init(t *testing.T) {
	t.Parallel()

	for _, file := range []string{"cicd.toml", "cicd.json", "cicd.yaml"} {
		t.Run(file, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), file)
			loader := &DefaultLoader{}
			require.NoError(t, loader.Init(path))

			ctx, err := loader.Load(path)
			require.NoError(t, err)
			require.Equal(t, Skeleton(), ctx)
			require.NoError(t, ValidateSchema(ctx))

			err = loader.Init(path)
			require.ErrorContains(t, err, "already exists")
		})
	}
}

func TestDefaultLoader_InitUnsupportedExtension(t *testing.T) {
	t.Parallel()

	loader := &DefaultLoader{}
	err := loader.Init(filepath.Join(t.TempDir(), "cicd.txt"))
	require.ErrorContains(t, err, "unsupported context file extension")
}
