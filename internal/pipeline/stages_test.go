package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
)

// stubAction is a test double for codepipeline.Action.
type stubAction struct {
	name     string
	runOrder int
}

func (s *stubAction) ActionProperties() codepipeline.ActionProperties {
	return codepipeline.ActionProperties{ActionName: s.name, RunOrder: s.runOrder}
}

func (s *stubAction) Bind(construct.Construct, codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	return codepipeline.ActionConfig{}, nil
}

// recordingFactory returns a factory recording the specs it was called with.
func recordingFactory(name string, specs *[]ActionSpec) ActionFactory {
	return func(spec ActionSpec) (codepipeline.Action, error) {
		*specs = append(*specs, spec)
		return &stubAction{name: name, runOrder: spec.RunOrder}, nil
	}
}

func baseProps() StageListProps {
	return StageListProps{
		Source: []codepipeline.Action{&stubAction{name: "RepoSource"}},
		Build:  []codepipeline.Action{&stubAction{name: "CustomBuild"}},
		Deploy: []codepipeline.Action{&stubAction{name: "S3Deploy"}},
	}
}

func stageNames(stages []codepipeline.StageProps) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.StageName
	}
	return names
}

func TestAssembleStages_Ordering(t *testing.T) {
	t.Parallel()

	canonical := []string{StageSource, StageBuild, StageStaging, StageTest, StageApproval, StageDeploy, StageInvalidate}

	// Every combination of optional stages keeps the canonical relative order.
	for mask := range 1 << 4 {
		staging, test, approval, invalidate := mask&1 != 0, mask&2 != 0, mask&4 != 0, mask&8 != 0

		t.Run(fmt.Sprintf("staging=%t,test=%t,approval=%t,invalidate=%t", staging, test, approval, invalidate), func(t *testing.T) {
			t.Parallel()

			var specs []ActionSpec
			props := baseProps()
			props.StageProps = context.StageProps{
				EnableStaging:    staging,
				EnableTest:       test,
				EnableApproval:   approval,
				TestSpecFilename: "testspec.yml",
			}
			props.Staging = recordingFactory("Staging", &specs)
			props.Test = recordingFactory("LinuxTest", &specs)
			if invalidate {
				props.Invalidate = []codepipeline.Action{&stubAction{name: "CacheInvalidate"}}
			}

			stages, err := AssembleStages(props)
			require.NoError(t, err)

			names := stageNames(stages)
			want := []string{StageSource, StageBuild}
			if staging {
				want = append(want, StageStaging)
			}
			if test {
				want = append(want, StageTest)
			}
			if approval {
				want = append(want, StageApproval)
			}
			want = append(want, StageDeploy)
			if invalidate {
				want = append(want, StageInvalidate)
			}
			require.Equal(t, want, names)

			last := -1
			for _, name := range names {
				idx := slices.Index(canonical, name)
				require.Greater(t, idx, last)
				last = idx
			}
			require.Equal(t, StageSource, names[0])
		})
	}
}

func TestAssembleStages_Test(t *testing.T) {
	t.Parallel()

	t.Run("missing spec filename", func(t *testing.T) {
		t.Parallel()

		var specs []ActionSpec
		props := baseProps()
		props.StageProps = context.StageProps{EnableTest: true}
		props.Test = recordingFactory("LinuxTest", &specs)

		_, err := AssembleStages(props)
		require.ErrorIs(t, err, ErrMissingSpecFilename)
		require.Empty(t, specs)
	})

	t.Run("exactly one test stage between build and deploy", func(t *testing.T) {
		t.Parallel()

		var specs []ActionSpec
		props := baseProps()
		props.StageProps = context.StageProps{EnableTest: true, EnableApproval: true, TestSpecFilename: "spec/test.yml"}
		props.Test = recordingFactory("LinuxTest", &specs)

		stages, err := AssembleStages(props)
		require.NoError(t, err)
		require.Equal(t, []string{StageSource, StageBuild, StageTest, StageApproval, StageDeploy}, stageNames(stages))
		require.Equal(t, []ActionSpec{{SpecFilename: "spec/test.yml", RunOrder: 1}}, specs)
		require.Equal(t, "LinuxTest", stages[2].Actions[0].ActionProperties().ActionName)
	})

	t.Run("stack without test action ignores the flag", func(t *testing.T) {
		t.Parallel()

		props := baseProps()
		props.StageProps = context.StageProps{EnableTest: true, TestSpecFilename: "testspec.yml"}

		stages, err := AssembleStages(props)
		require.NoError(t, err)
		require.Equal(t, []string{StageSource, StageBuild, StageDeploy}, stageNames(stages))
	})
}

func TestAssembleStages_DefaultSpecFilenames(t *testing.T) {
	t.Parallel()

	var staging, deploy []ActionSpec
	props := baseProps()
	props.Deploy = []codepipeline.Action{&stubAction{name: "S3Deploy"}, &stubAction{name: "Later", runOrder: 2}}
	props.StageProps = context.StageProps{EnableStaging: true, EnableDeploy: true}
	props.Staging = recordingFactory("Staging", &staging)
	props.CustomDeploy = recordingFactory("CustomDeploy", &deploy)

	stages, err := AssembleStages(props)
	require.NoError(t, err)

	require.Equal(t, []ActionSpec{{SpecFilename: DefaultStagingSpecFilename, RunOrder: 1}}, staging)
	require.Equal(t, []ActionSpec{{SpecFilename: DefaultDeploySpecFilename, RunOrder: 3}}, deploy)

	deployStage := stages[len(stages)-1]
	require.Equal(t, StageDeploy, deployStage.StageName)
	require.Len(t, deployStage.Actions, 3)
	require.Equal(t, "CustomDeploy", deployStage.Actions[2].ActionProperties().ActionName)
	require.Len(t, props.Deploy, 2)
}

func TestAssembleStages_ApprovalHasNoInputs(t *testing.T) {
	t.Parallel()

	props := baseProps()
	props.StageProps = context.StageProps{EnableApproval: true}

	stages, err := AssembleStages(props)
	require.NoError(t, err)

	approval := stages[2]
	require.Equal(t, StageApproval, approval.StageName)
	require.Len(t, approval.Actions, 1)
	require.Equal(t, codepipeline.CategoryApproval, approval.Actions[0].ActionProperties().Category)
	require.Empty(t, approval.Actions[0].ActionProperties().Inputs)
}

func TestAssembleStages_Errors(t *testing.T) {
	t.Parallel()

	factoryErr := errors.New("factory failed")
	failing := func(ActionSpec) (codepipeline.Action, error) { return nil, factoryErr }

	tests := []struct {
		name    string
		modify  func(*StageListProps)
		wantErr error
	}{
		{name: "no source", modify: func(p *StageListProps) { p.Source = nil }, wantErr: ErrMissingSourceAction},
		{name: "no build", modify: func(p *StageListProps) { p.Build = nil }, wantErr: ErrMissingBuildAction},
		{name: "no deploy", modify: func(p *StageListProps) { p.Deploy = nil }, wantErr: ErrMissingDeployAction},
		{
			name: "staging factory",
			modify: func(p *StageListProps) {
				p.StageProps.EnableStaging = true
				p.Staging = failing
			},
			wantErr: factoryErr,
		},
		{
			name: "custom deploy factory",
			modify: func(p *StageListProps) {
				p.StageProps.EnableDeploy = true
				p.CustomDeploy = failing
			},
			wantErr: factoryErr,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			props := baseProps()
			tc.modify(&props)

			_, err := AssembleStages(props)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestProjectActionFactory(t *testing.T) {
	t.Parallel()

	stack := newStack(t, "SitePipeline")
	input := codepipeline.NewArtifact("RepoOutput")

	var configured *codebuild.PipelineProject
	factory := ProjectActionFactory(stack, ProjectActionProps{
		ProjectID:  "TestProject",
		ActionName: "LinuxTest",
		Type:       actions.CodeBuildActionTypeTest,
		Input:      input,
		Configure: func(p *codebuild.PipelineProject) error {
			configured = p
			return nil
		},
	})

	action, err := factory(ActionSpec{SpecFilename: "testspec.yml", RunOrder: 1})
	require.NoError(t, err)

	child, ok := stack.Node().TryFindChild("TestProject")
	require.True(t, ok)
	require.Same(t, child, configured)

	buildSpec, ok := configured.Resource().Property("Source")
	require.True(t, ok)
	require.Equal(t, map[string]any{"Type": "CODEPIPELINE", "BuildSpec": "testspec.yml"}, buildSpec)

	cb, ok := action.(*actions.CodeBuildAction)
	require.True(t, ok)
	require.Equal(t, codepipeline.CategoryTest, cb.ActionProperties().Category)
	require.Equal(t, 1, cb.ActionProperties().RunOrder)
	require.Same(t, input, cb.Props().Input)
}
