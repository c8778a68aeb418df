package stacks

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/aws/ecr"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/pipeline"
)

const (
	// SlsStackID is the stack synthesized by the architecture repository of a serverless service.
	SlsStackID = "Sls"

	// SynthOutputDir is where synth builds write their cloud assembly.
	SynthOutputDir = "cdk.out"

	synthInstallCommand = "go install github.com/engr-lynx/cicd@latest"
	goModCachePaths     = "/go/pkg/mod/**/*"
)

// RepoSlsPipelineProps configures a RepoSlsPipelineStack.
type RepoSlsPipelineProps struct {
	construct.StackProps

	ServiceID string

	AppRepoProps   context.RepoProps
	ArchiRepoProps context.RepoProps
	StageProps     context.StageProps

	PipelineCache *s3.Bucket
	Secrets       secret.Store
}

// RepoSlsPipelineStack builds a service image from its application repository and deploys
// the stack synthesized from its architecture repository.
type RepoSlsPipelineStack struct {
	*construct.Stack

	ContainerRepo *ecr.Repository
	Pipeline      *codepipeline.Pipeline
}

func NewRepoSlsPipelineStack(scope construct.Construct, id string, props RepoSlsPipelineProps) (*RepoSlsPipelineStack, error) {
	if props.ServiceID == "" {
		return nil, fmt.Errorf("%w: stack '%s' requires a service id", construct.ErrInvalidConstruct, id)
	}

	stack, err := construct.NewStack(scope, id, props.StackProps)
	if err != nil {
		return nil, err
	}
	s := &RepoSlsPipelineStack{Stack: stack}

	appOutput := codepipeline.NewArtifact("AppOutput")
	appSource, err := pipeline.BuildRepoSourceAction(s, pipeline.RepoSourceActionProps{
		RepoProps:  props.AppRepoProps,
		NamePrefix: "App",
		RepoOutput: appOutput,
		Secrets:    props.Secrets,
	})
	if err != nil {
		return nil, err
	}
	archiOutput := codepipeline.NewArtifact("ArchiOutput")
	archiSource, err := pipeline.BuildRepoSourceAction(s, pipeline.RepoSourceActionProps{
		RepoProps:  props.ArchiRepoProps,
		NamePrefix: "Archi",
		RepoOutput: archiOutput,
		Secrets:    props.Secrets,
	})
	if err != nil {
		return nil, err
	}

	s.ContainerRepo, err = ecr.NewRepository(s, "ContainerRepository", ecr.RepositoryProps{MaxImageCount: imageRetention})
	if err != nil {
		return nil, err
	}
	containerProject, err := codebuild.NewPipelineProject(s, "ContainerProject", codebuild.PipelineProjectProps{
		BuildSpec:            codebuild.FromObject(containerBuildSpec()),
		Environment:          codebuild.Environment{Privileged: true},
		EnvironmentVariables: map[string]any{"REPO_URI": s.ContainerRepo.RepositoryURI()},
	})
	if err != nil {
		return nil, err
	}
	if err := s.ContainerRepo.GrantPullPush(containerProject.Role()); err != nil {
		return nil, err
	}
	containerBuild := actions.NewCodeBuildAction(actions.CodeBuildActionProps{
		ActionName: "ContainerBuild",
		Project:    containerProject,
		Input:      appOutput,
	})

	templateFile := SlsStackID + ".template.json"
	cdkProject, err := codebuild.NewPipelineProject(s, "CdkProject", codebuild.PipelineProjectProps{
		BuildSpec: codebuild.FromObject(map[string]any{
			"version": "0.2",
			"phases": map[string]any{
				"install": map[string]any{"commands": []any{synthInstallCommand}},
				"build": map[string]any{"commands": []any{
					"cicd synth -c imageRepoName=${REPO_NAME} -c slsId=${STACK_ID} --output-dir " + SynthOutputDir,
				}},
			},
			"artifacts": map[string]any{
				"base-directory": SynthOutputDir,
				"files":          []any{templateFile},
			},
			"cache": map[string]any{"paths": []any{goModCachePaths}},
		}),
		Environment: codebuild.Environment{Image: codebuild.ImageStandard70},
		EnvironmentVariables: map[string]any{
			"REPO_NAME": s.ContainerRepo.RepositoryName(),
			"STACK_ID":  SlsStackID,
		},
		Cache: bucketCache(props.PipelineCache, props.ServiceID),
	})
	if err != nil {
		return nil, err
	}
	cdkOutput := codepipeline.NewArtifact("CdkOutput")
	cdkBuild := actions.NewCodeBuildAction(actions.CodeBuildActionProps{
		ActionName: "CdkBuild",
		Project:    cdkProject,
		Input:      archiOutput,
		Outputs:    []*codepipeline.Artifact{cdkOutput},
	})

	slsDeploy := actions.NewCloudFormationCreateUpdateStackAction(actions.CloudFormationCreateUpdateStackActionProps{
		ActionName:       "SlsDeploy",
		StackName:        props.ServiceID,
		TemplatePath:     cdkOutput.AtPath(templateFile),
		Inputs:           []*codepipeline.Artifact{cdkOutput},
		AdminPermissions: true,
	})

	list := withOptionalProjects(s, pipeline.StageListProps{
		Source:     []codepipeline.Action{appSource, archiSource},
		Build:      []codepipeline.Action{containerBuild, cdkBuild},
		StageProps: props.StageProps,
		Deploy:     []codepipeline.Action{slsDeploy},
	}, optionalInputs{Deployable: cdkOutput, Source: appOutput, Cache: props.PipelineCache})

	stages, err := pipeline.AssembleStages(list)
	if err != nil {
		return nil, err
	}

	s.Pipeline, err = codepipeline.NewPipeline(s, "RepoSlsPipeline", codepipeline.PipelineProps{
		Stages: stages,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
