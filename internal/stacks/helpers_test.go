package stacks

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/construct"
)

var testEnv = construct.Environment{Account: "123456789012", Region: "us-west-2"}

func newApp() *construct.App {
	return construct.NewApp(construct.AppProps{Env: testEnv})
}

// synthStack synthesizes app and returns the named stack.
func synthStack(t *testing.T, app *construct.App, name string) *construct.StackArtifact {
	t.Helper()

	asm, err := app.Synth()
	require.NoError(t, err)

	art, ok := asm.Stack(name)
	require.True(t, ok, "stack %s not found", name)
	return art
}

// resourcesOfType returns the resources of tmpl with the given type, ordered by logical id.
func resourcesOfType(tmpl *construct.Template, typ string) []construct.ResourceDefinition {
	ids := make([]string, 0, len(tmpl.Resources))
	for id, res := range tmpl.Resources {
		if res.Type == typ {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]construct.ResourceDefinition, len(ids))
	for i, id := range ids {
		out[i] = tmpl.Resources[id]
	}
	return out
}

// pipelineActions returns the rendered actions of the single pipeline of tmpl by stage name.
func pipelineActions(t *testing.T, tmpl *construct.Template) map[string][]map[string]any {
	t.Helper()

	pipelines := resourcesOfType(tmpl, "AWS::CodePipeline::Pipeline")
	require.Len(t, pipelines, 1)

	out := map[string][]map[string]any{}
	for _, st := range pipelines[0].Properties["Stages"].([]any) {
		stage := st.(map[string]any)
		name := stage["Name"].(string)
		for _, a := range stage["Actions"].([]any) {
			out[name] = append(out[name], a.(map[string]any))
		}
	}
	return out
}

func actionNames(actions []map[string]any) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a["Name"].(string)
	}
	return names
}
