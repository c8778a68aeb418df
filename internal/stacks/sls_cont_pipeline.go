package stacks

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/aws/ecr"
	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/lambda"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/pipeline"
)

// RepoSlsContPipelineProps configures a RepoSlsContPipelineStack.
type RepoSlsContPipelineProps struct {
	construct.StackProps

	RepoProps  context.RepoProps
	StageProps context.StageProps

	// Func runs the latest image of ImageRepo.
	Func      *lambda.Function
	ImageRepo *ecr.Repository

	PipelineCache *s3.Bucket
	Secrets       secret.Store
}

// RepoSlsContPipelineStack builds the container image of a service and rolls its function to it.
type RepoSlsContPipelineStack struct {
	*construct.Stack

	Pipeline      *codepipeline.Pipeline
	DeployHandler *lambda.Function
}

func NewRepoSlsContPipelineStack(scope construct.Construct, id string, props RepoSlsContPipelineProps) (*RepoSlsContPipelineStack, error) {
	if props.Func == nil || props.ImageRepo == nil {
		return nil, fmt.Errorf("%w: stack '%s' requires a function and its image repository", construct.ErrInvalidConstruct, id)
	}

	stack, err := construct.NewStack(scope, id, props.StackProps)
	if err != nil {
		return nil, err
	}
	s := &RepoSlsContPipelineStack{Stack: stack}

	repoOutput := codepipeline.NewArtifact("RepoOutput")
	repoSource, err := pipeline.BuildRepoSourceAction(s, pipeline.RepoSourceActionProps{
		RepoProps:  props.RepoProps,
		RepoOutput: repoOutput,
		Secrets:    props.Secrets,
	})
	if err != nil {
		return nil, err
	}

	contProject, err := codebuild.NewPipelineProject(s, "ContProject", codebuild.PipelineProjectProps{
		BuildSpec:            codebuild.FromObject(containerBuildSpec()),
		Environment:          codebuild.Environment{Privileged: true},
		EnvironmentVariables: map[string]any{"REPO_URI": props.ImageRepo.RepositoryURI()},
	})
	if err != nil {
		return nil, err
	}
	if err := props.ImageRepo.GrantPullPush(contProject.Role()); err != nil {
		return nil, err
	}
	contBuild := actions.NewCodeBuildAction(actions.CodeBuildActionProps{
		ActionName: "ContBuild",
		Project:    contProject,
		Input:      repoOutput,
	})

	s.DeployHandler, err = pipelineHandler(s, "DeployHandler", slsDeployHandlerCode,
		iam.PolicyStatement{
			Actions:   []string{"lambda:UpdateFunctionCode"},
			Resources: []any{props.Func.FunctionArn()},
		},
		iam.PolicyStatement{
			Actions:   []string{"ecr:SetRepositoryPolicy", "ecr:GetRepositoryPolicy", "ecr:InitiateLayerUpload"},
			Resources: []any{props.ImageRepo.RepositoryArn()},
		},
	)
	if err != nil {
		return nil, err
	}
	slsDeploy := actions.NewLambdaInvokeAction(actions.LambdaInvokeActionProps{
		ActionName: "SlsDeploy",
		Lambda:     s.DeployHandler,
		UserParameters: map[string]any{
			"funcName": props.Func.FunctionName(),
			"repoUri":  props.ImageRepo.RepositoryURIForTag("latest"),
		},
	})

	list := withOptionalProjects(s, pipeline.StageListProps{
		Source:     []codepipeline.Action{repoSource},
		Build:      []codepipeline.Action{contBuild},
		StageProps: props.StageProps,
		Deploy:     []codepipeline.Action{slsDeploy},
	}, optionalInputs{Deployable: repoOutput, Source: repoOutput, Cache: props.PipelineCache})

	stages, err := pipeline.AssembleStages(list)
	if err != nil {
		return nil, err
	}

	s.Pipeline, err = codepipeline.NewPipeline(s, "RepoSlsContPipeline", codepipeline.PipelineProps{
		Stages: stages,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
