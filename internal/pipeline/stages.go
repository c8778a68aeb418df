package pipeline

import (
	"errors"
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
)

var (
	ErrMissingSpecFilename = errors.New("missing spec filename")
	ErrMissingSourceAction = errors.New("missing source action")
	ErrMissingBuildAction  = errors.New("missing build action")
	ErrMissingDeployAction = errors.New("missing deploy action")
)

// Stage names, in pipeline order.
const (
	StageSource     = "Source"
	StageBuild      = "Build"
	StageStaging    = "Staging"
	StageTest       = "Test"
	StageApproval   = "Approval"
	StageDeploy     = "Deploy"
	StageInvalidate = "Invalidate"
)

const (
	DefaultStagingSpecFilename = "stagingspec.yml"
	DefaultDeploySpecFilename  = "deployspec.yml"
)

// ActionSpec parameterises an optional action once its stage is enabled.
type ActionSpec struct {
	SpecFilename string
	RunOrder     int
}

// ActionFactory builds an optional action. It is only called when the action is enabled.
type ActionFactory func(ActionSpec) (codepipeline.Action, error)

// StageListProps are the actions a pipeline stack contributes to its stage list.
type StageListProps struct {
	Source []codepipeline.Action
	Build  []codepipeline.Action

	StageProps context.StageProps

	// Staging, Test and CustomDeploy are nil for stacks without such actions, which ignore the flags.
	Staging      ActionFactory
	Test         ActionFactory
	CustomDeploy ActionFactory

	Deploy     []codepipeline.Action
	Invalidate []codepipeline.Action
}

// AssembleStages orders the stages of a pipeline as
// Source, Build, [Staging], [Test], [Approval], Deploy, [Invalidate].
func AssembleStages(props StageListProps) ([]codepipeline.StageProps, error) {
	flags := props.StageProps

	if len(props.Source) == 0 {
		return nil, ErrMissingSourceAction
	}
	if len(props.Build) == 0 {
		return nil, ErrMissingBuildAction
	}
	if len(props.Deploy) == 0 {
		return nil, ErrMissingDeployAction
	}
	if flags.EnableTest && flags.TestSpecFilename == "" {
		return nil, fmt.Errorf("%w: test stage is enabled without testSpecFilename", ErrMissingSpecFilename)
	}

	stages := []codepipeline.StageProps{
		{StageName: StageSource, Actions: props.Source},
		{StageName: StageBuild, Actions: props.Build},
	}

	if flags.EnableStaging && props.Staging != nil {
		action, err := props.Staging(ActionSpec{
			SpecFilename: withDefault(flags.StagingSpecFilename, DefaultStagingSpecFilename),
			RunOrder:     1,
		})
		if err != nil {
			return nil, fmt.Errorf("staging: %w", err)
		}
		stages = append(stages, codepipeline.StageProps{StageName: StageStaging, Actions: []codepipeline.Action{action}})
	}

	if flags.EnableTest && props.Test != nil {
		action, err := props.Test(ActionSpec{SpecFilename: flags.TestSpecFilename, RunOrder: 1})
		if err != nil {
			return nil, fmt.Errorf("test: %w", err)
		}
		stages = append(stages, codepipeline.StageProps{StageName: StageTest, Actions: []codepipeline.Action{action}})
	}

	if flags.EnableApproval {
		approval := actions.NewManualApprovalAction(actions.ManualApprovalActionProps{ActionName: "ManualApproval"})
		stages = append(stages, codepipeline.StageProps{StageName: StageApproval, Actions: []codepipeline.Action{approval}})
	}

	deploy := append([]codepipeline.Action(nil), props.Deploy...)
	if flags.EnableDeploy && props.CustomDeploy != nil {
		action, err := props.CustomDeploy(ActionSpec{
			SpecFilename: withDefault(flags.DeploySpecFilename, DefaultDeploySpecFilename),
			RunOrder:     lastRunOrder(props.Deploy) + 1,
		})
		if err != nil {
			return nil, fmt.Errorf("deploy: %w", err)
		}
		deploy = append(deploy, action)
	}
	stages = append(stages, codepipeline.StageProps{StageName: StageDeploy, Actions: deploy})

	if len(props.Invalidate) > 0 {
		stages = append(stages, codepipeline.StageProps{StageName: StageInvalidate, Actions: props.Invalidate})
	}

	return stages, nil
}

func lastRunOrder(list []codepipeline.Action) int {
	last := 1
	for _, a := range list {
		last = max(last, a.ActionProperties().RunOrder)
	}
	return last
}

func withDefault(v string, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ProjectActionProps configures the project and action built by ProjectActionFactory.
type ProjectActionProps struct {
	// ProjectID is the construct id of the project.
	ProjectID  string
	ActionName string
	Type       actions.CodeBuildActionType

	Input   *codepipeline.Artifact
	Outputs []*codepipeline.Artifact

	Environment          codebuild.Environment
	EnvironmentVariables map[string]any
	Cache                *codebuild.Cache

	// Configure runs once the project is declared, e.g. to grant it access to other resources.
	Configure func(*codebuild.PipelineProject) error
}

// ProjectActionFactory returns a factory declaring a build project in scope that runs the
// spec file of its ActionSpec, and a CodeBuild action running the project.
func ProjectActionFactory(scope construct.Construct, props ProjectActionProps) ActionFactory {
	return func(spec ActionSpec) (codepipeline.Action, error) {
		project, err := codebuild.NewPipelineProject(scope, props.ProjectID, codebuild.PipelineProjectProps{
			BuildSpec:            codebuild.FromSourceFilename(spec.SpecFilename),
			Environment:          props.Environment,
			EnvironmentVariables: props.EnvironmentVariables,
			Cache:                props.Cache,
		})
		if err != nil {
			return nil, err
		}

		if props.Configure != nil {
			if err := props.Configure(project); err != nil {
				return nil, err
			}
		}

		return actions.NewCodeBuildAction(actions.CodeBuildActionProps{
			ActionName: props.ActionName,
			Project:    project,
			Input:      props.Input,
			Outputs:    props.Outputs,
			Type:       props.Type,
			RunOrder:   spec.RunOrder,
		}), nil
	}
}
