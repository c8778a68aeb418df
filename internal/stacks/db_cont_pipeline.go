package stacks

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/aws/ecr"
	"github.com/engr-lynx/cicd/internal/aws/ecs"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/pipeline"
)

const imageDefinitionsFile = "imagedefinitions.json"

// RepoDbContPipelineProps configures a RepoDbContPipelineStack.
type RepoDbContPipelineProps struct {
	construct.StackProps

	RepoProps  context.RepoProps
	StageProps context.StageProps

	// Service runs DbContainerName with images of ImageRepo.
	Cluster   *ecs.Cluster
	Service   *ecs.FargateService
	ImageRepo *ecr.Repository

	PipelineCache *s3.Bucket
	Secrets       secret.Store
}

// RepoDbContPipelineStack builds a database image and rolls the database service to it.
type RepoDbContPipelineStack struct {
	*construct.Stack

	Pipeline *codepipeline.Pipeline
}

func NewRepoDbContPipelineStack(scope construct.Construct, id string, props RepoDbContPipelineProps) (*RepoDbContPipelineStack, error) {
	if props.Cluster == nil || props.Service == nil || props.ImageRepo == nil {
		return nil, fmt.Errorf("%w: stack '%s' requires a cluster, a service and an image repository", construct.ErrInvalidConstruct, id)
	}

	stack, err := construct.NewStack(scope, id, props.StackProps)
	if err != nil {
		return nil, err
	}
	s := &RepoDbContPipelineStack{Stack: stack}

	repoOutput := codepipeline.NewArtifact("RepoOutput")
	repoSource, err := pipeline.BuildRepoSourceAction(s, pipeline.RepoSourceActionProps{
		RepoProps:  props.RepoProps,
		RepoOutput: repoOutput,
		Secrets:    props.Secrets,
	})
	if err != nil {
		return nil, err
	}

	contSpec := containerBuildSpec(
		fmt.Sprintf(`printf '[{"name":"%s","imageUri":"%%s"}]' ${REPO_URI}:latest > %s`, DbContainerName, imageDefinitionsFile),
	)
	contSpec["artifacts"] = map[string]any{"files": []any{imageDefinitionsFile}}

	contProject, err := codebuild.NewPipelineProject(s, "ContProject", codebuild.PipelineProjectProps{
		BuildSpec:            codebuild.FromObject(contSpec),
		Environment:          codebuild.Environment{Privileged: true},
		EnvironmentVariables: map[string]any{"REPO_URI": props.ImageRepo.RepositoryURI()},
	})
	if err != nil {
		return nil, err
	}
	if err := props.ImageRepo.GrantPullPush(contProject.Role()); err != nil {
		return nil, err
	}
	contOutput := codepipeline.NewArtifact("ContOutput")
	contBuild := actions.NewCodeBuildAction(actions.CodeBuildActionProps{
		ActionName: "ContBuild",
		Project:    contProject,
		Input:      repoOutput,
		Outputs:    []*codepipeline.Artifact{contOutput},
	})

	dbDeploy := actions.NewEcsDeployAction(actions.EcsDeployActionProps{
		ActionName: "DbDeploy",
		Cluster:    props.Cluster,
		Service:    props.Service,
		Input:      contOutput,
		ImageFile:  imageDefinitionsFile,
	})

	list := withOptionalProjects(s, pipeline.StageListProps{
		Source:     []codepipeline.Action{repoSource},
		Build:      []codepipeline.Action{contBuild},
		StageProps: props.StageProps,
		Deploy:     []codepipeline.Action{dbDeploy},
	}, optionalInputs{Deployable: contOutput, Source: repoOutput, Cache: props.PipelineCache})

	stages, err := pipeline.AssembleStages(list)
	if err != nil {
		return nil, err
	}

	s.Pipeline, err = codepipeline.NewPipeline(s, "RepoDbContPipeline", codepipeline.PipelineProps{
		Stages: stages,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
