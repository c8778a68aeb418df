package codebuild

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
)

func TestPipelineProject(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{})
	cacheStack, err := construct.NewStack(app, "Cache", construct.StackProps{})
	require.NoError(t, err)
	bucket, err := s3.NewBucket(cacheStack, "Bucket", s3.BucketProps{})
	require.NoError(t, err)

	stack, err := construct.NewStack(app, "Pipeline", construct.StackProps{})
	require.NoError(t, err)
	project, err := NewPipelineProject(stack, "PipelineBuildProject", PipelineProjectProps{
		BuildSpec:            FromSourceFilename("buildspec.yml"),
		Environment:          Environment{Privileged: true},
		EnvironmentVariables: map[string]any{"REPO_URI": "uri", "A": "b"},
		Cache:                &Cache{Bucket: bucket, Prefix: "build"},
	})
	require.NoError(t, err)

	asm, err := app.Synth()
	require.NoError(t, err)

	art, ok := asm.Stack("Pipeline")
	require.True(t, ok)
	require.Equal(t, []string{"Cache"}, art.Dependencies)

	def := art.Template.Resources[project.Resource().LogicalID()]
	require.Equal(t, "AWS::CodeBuild::Project", def.Type)
	require.Equal(t, map[string]any{"Type": "CODEPIPELINE", "BuildSpec": "buildspec.yml"}, def.Properties["Source"])
	require.Contains(t, def.DependsOn, project.Role().Policy().LogicalID())

	env := def.Properties["Environment"].(map[string]any)
	require.Equal(t, ImageStandard50, env["Image"])
	require.Equal(t, true, env["PrivilegedMode"])
	require.Equal(t, []any{
		map[string]any{"Name": "A", "Type": "PLAINTEXT", "Value": "b"},
		map[string]any{"Name": "REPO_URI", "Type": "PLAINTEXT", "Value": "uri"},
	}, env["EnvironmentVariables"])

	require.Equal(t, map[string]any{
		"Type": "S3",
		"Location": map[string]any{"Fn::Join": []any{"/", []any{
			map[string]any{"Fn::ImportValue": "Cache:ExportsOutputRef" + bucket.Resource().LogicalID()},
			"build",
		}}},
	}, def.Properties["Cache"])
}

func TestPipelineProject_InlineBuildSpec(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{})
	stack, err := construct.NewStack(app, "Pipeline", construct.StackProps{})
	require.NoError(t, err)
	project, err := NewPipelineProject(stack, "Synth", PipelineProjectProps{
		BuildSpec: FromObject(map[string]any{
			"version": "0.2",
			"phases":  map[string]any{"build": map[string]any{"commands": []string{"cicd synth"}}},
		}),
	})
	require.NoError(t, err)

	asm, err := app.Synth()
	require.NoError(t, err)

	props := asm.Stacks[0].Template.Resources[project.Resource().LogicalID()].Properties
	require.Equal(t,
		`{"phases":{"build":{"commands":["cicd synth"]}},"version":"0.2"}`,
		props["Source"].(map[string]any)["BuildSpec"],
	)
	require.Equal(t, map[string]any{"Type": "NO_CACHE"}, props["Cache"])
}

func TestPipelineProject_InvalidBuildSpec(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{})
	stack, err := construct.NewStack(app, "Pipeline", construct.StackProps{})
	require.NoError(t, err)

	_, err = NewPipelineProject(stack, "Missing", PipelineProjectProps{})
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)

	_, err = NewPipelineProject(stack, "Both", PipelineProjectProps{
		BuildSpec: BuildSpec{Filename: "a.yml", Inline: map[string]any{}},
	})
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)
}
