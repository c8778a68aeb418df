package stacks

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/cloudfront"
	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/lambda"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/pipeline"
)

// RepoCdnPipelineProps configures a RepoCdnPipelineStack.
type RepoCdnPipelineProps struct {
	construct.StackProps

	RepoProps  context.RepoProps
	StageProps context.StageProps

	DistributionSource *s3.Bucket
	Distribution       *cloudfront.Distribution

	// PipelineCache holds the build and test caches. Builds run uncached when nil.
	PipelineCache *s3.Bucket

	Secrets secret.Store
}

// RepoCdnPipelineStack builds a static site from a repository, copies it to the bucket
// behind a distribution and invalidates the distribution cache.
type RepoCdnPipelineStack struct {
	*construct.Stack

	Pipeline          *codepipeline.Pipeline
	InvalidateHandler *lambda.Function
}

func NewRepoCdnPipelineStack(scope construct.Construct, id string, props RepoCdnPipelineProps) (*RepoCdnPipelineStack, error) {
	if props.DistributionSource == nil || props.Distribution == nil {
		return nil, fmt.Errorf("%w: stack '%s' requires a distribution and its source bucket", construct.ErrInvalidConstruct, id)
	}

	stack, err := construct.NewStack(scope, id, props.StackProps)
	if err != nil {
		return nil, err
	}
	s := &RepoCdnPipelineStack{Stack: stack}

	repoOutput := codepipeline.NewArtifact("RepoOutput")
	repoSource, err := pipeline.BuildRepoSourceAction(s, pipeline.RepoSourceActionProps{
		RepoProps:  props.RepoProps,
		RepoOutput: repoOutput,
		Secrets:    props.Secrets,
	})
	if err != nil {
		return nil, err
	}

	customProject, err := codebuild.NewPipelineProject(s, "CustomProject", codebuild.PipelineProjectProps{
		BuildSpec:   codebuild.FromSourceFilename(DefaultBuildSpecFilename),
		Environment: codebuild.Environment{Privileged: props.StageProps.PrivilegedBuild},
		Cache:       bucketCache(props.PipelineCache, "build"),
	})
	if err != nil {
		return nil, err
	}
	buildOutput := codepipeline.NewArtifact("BuildOutput")
	customBuild := actions.NewCodeBuildAction(actions.CodeBuildActionProps{
		ActionName: "CustomBuild",
		Project:    customProject,
		Input:      repoOutput,
		Outputs:    []*codepipeline.Artifact{buildOutput},
	})

	s3Deploy := actions.NewS3DeployAction(actions.S3DeployActionProps{
		ActionName: "S3Deploy",
		Bucket:     props.DistributionSource,
		Input:      buildOutput,
	})

	s.InvalidateHandler, err = pipelineHandler(s, "DistributionHandler", invalidateHandlerCode, iam.PolicyStatement{
		Actions:   []string{"cloudfront:CreateInvalidation"},
		Resources: []any{props.Distribution.Arn()},
	})
	if err != nil {
		return nil, err
	}
	cacheInvalidate := actions.NewLambdaInvokeAction(actions.LambdaInvokeActionProps{
		ActionName:     "CacheInvalidate",
		Lambda:         s.InvalidateHandler,
		UserParameters: map[string]any{"distributionId": props.Distribution.DistributionID()},
	})

	list := withOptionalProjects(s, pipeline.StageListProps{
		Source:     []codepipeline.Action{repoSource},
		Build:      []codepipeline.Action{customBuild},
		StageProps: props.StageProps,
		Deploy:     []codepipeline.Action{s3Deploy},
		Invalidate: []codepipeline.Action{cacheInvalidate},
	}, optionalInputs{Deployable: buildOutput, Source: repoOutput, Cache: props.PipelineCache})

	stages, err := pipeline.AssembleStages(list)
	if err != nil {
		return nil, err
	}

	s.Pipeline, err = codepipeline.NewPipeline(s, "RepoCdnPipeline", codepipeline.PipelineProps{
		Stages:                   stages,
		RestartExecutionOnUpdate: false,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
