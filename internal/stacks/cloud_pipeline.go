package stacks

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/pipeline"
)

const (
	// DefaultDeployStageID is the construct id of the stage deployed by a RepoCloudPipelineStack.
	DefaultDeployStageID = "ArchiDeploy"

	maxBucketNameLength = 63
)

// DeployStageFunc declares the stage a cloud pipeline deploys.
type DeployStageFunc func(scope construct.Construct, id string) (*construct.Stage, error)

// RepoCloudPipelineProps configures a RepoCloudPipelineStack.
type RepoCloudPipelineProps struct {
	construct.StackProps

	RepoProps  context.RepoProps
	StageProps context.StageProps

	// DeployStage is declared within the pipeline stack under DeployStageID.
	DeployStage   DeployStageFunc
	DeployStageID string

	Secrets secret.Store
}

// RepoCloudPipelineStack synthesizes the infrastructure of a repository and deploys every
// stack of the deployment stage, following the stack dependencies.
type RepoCloudPipelineStack struct {
	*construct.Stack

	Pipeline    *codepipeline.Pipeline
	DeployStage *construct.Stage

	// SupportStacks hold the artifact buckets of regions other than the pipeline's, by region.
	SupportStacks map[string]*CrossRegionSupportStack
}

// CrossRegionSupportStack holds the artifact bucket of a pipeline in another region.
type CrossRegionSupportStack struct {
	*construct.Stack

	ReplicationBucket *s3.Bucket
}

func NewRepoCloudPipelineStack(scope construct.Construct, id string, props RepoCloudPipelineProps) (*RepoCloudPipelineStack, error) {
	if props.DeployStage == nil {
		return nil, fmt.Errorf("%w: stack '%s' requires a deploy stage", construct.ErrInvalidConstruct, id)
	}
	stageID := props.DeployStageID
	if stageID == "" {
		stageID = DefaultDeployStageID
	}

	stack, err := construct.NewStack(scope, id, props.StackProps)
	if err != nil {
		return nil, err
	}
	s := &RepoCloudPipelineStack{Stack: stack, SupportStacks: map[string]*CrossRegionSupportStack{}}

	repoOutput := codepipeline.NewArtifact("RepoOutput")
	repoSource, err := pipeline.BuildRepoSourceAction(s, pipeline.RepoSourceActionProps{
		RepoProps:  props.RepoProps,
		RepoOutput: repoOutput,
		Secrets:    props.Secrets,
	})
	if err != nil {
		return nil, err
	}

	synthProject, err := codebuild.NewPipelineProject(s, "SynthProject", codebuild.PipelineProjectProps{
		BuildSpec: codebuild.FromObject(map[string]any{
			"version": "0.2",
			"phases": map[string]any{
				"install": map[string]any{"commands": []any{synthInstallCommand}},
				"build":   map[string]any{"commands": []any{"cicd synth --output-dir " + SynthOutputDir}},
			},
			"artifacts": map[string]any{
				"base-directory": SynthOutputDir,
				"files":          []any{"**/*"},
			},
			"cache": map[string]any{"paths": []any{goModCachePaths}},
		}),
		Environment: codebuild.Environment{Image: codebuild.ImageStandard70},
		EnvironmentVariables: map[string]any{
			"CDK_DEFAULT_ACCOUNT": s.Account(),
			"CDK_DEFAULT_REGION":  s.Region(),
		},
	})
	if err != nil {
		return nil, err
	}
	cdkOutput := codepipeline.NewArtifact("CdkOutput")
	synth := actions.NewCodeBuildAction(actions.CodeBuildActionProps{
		ActionName: "Synth",
		Project:    synthProject,
		Input:      repoOutput,
		Outputs:    []*codepipeline.Artifact{cdkOutput},
	})

	s.DeployStage, err = props.DeployStage(s, stageID)
	if err != nil {
		return nil, err
	}
	asm, err := s.DeployStage.Synth()
	if err != nil {
		return nil, err
	}

	deploy, err := s.deployActions(asm, "", cdkOutput)
	if err != nil {
		return nil, err
	}
	if len(deploy) == 0 {
		return nil, fmt.Errorf("%w: stage '%s' has no stacks", pipeline.ErrMissingDeployAction, s.DeployStage.Node().Path())
	}

	list := withOptionalProjects(s, pipeline.StageListProps{
		Source:     []codepipeline.Action{repoSource},
		Build:      []codepipeline.Action{synth},
		StageProps: props.StageProps,
		Deploy:     deploy,
	}, optionalInputs{Deployable: cdkOutput, Source: repoOutput})

	stages, err := pipeline.AssembleStages(list)
	if err != nil {
		return nil, err
	}

	buckets := map[string]string{}
	for region := range s.SupportStacks {
		buckets[region] = replicationBucketName(s.StackName(), region)
	}

	s.Pipeline, err = codepipeline.NewPipeline(s, "RepoCloudPipeline", codepipeline.PipelineProps{
		Stages:                     stages,
		RestartExecutionOnUpdate:   true,
		CrossRegionArtifactBuckets: buckets,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// deployActions returns a create/update action per stack of asm and its nested assemblies,
// ordered by deployment wave. dir is the location of asm within the synth output.
func (s *RepoCloudPipelineStack) deployActions(asm *construct.CloudAssembly, dir string, input *codepipeline.Artifact) ([]codepipeline.Action, error) {
	dir = path.Join(dir, asm.ID)
	home := s.Environment().Region

	var list []codepipeline.Action
	for _, art := range asm.Stacks {
		region := art.Environment.Region
		if region == home || home == "" {
			region = ""
		}
		if region != "" {
			if err := s.requireSupportStack(region); err != nil {
				return nil, err
			}
		}

		list = append(list, actions.NewCloudFormationCreateUpdateStackAction(actions.CloudFormationCreateUpdateStackActionProps{
			ActionName:       art.StackName,
			StackName:        art.StackName,
			TemplatePath:     input.AtPath(path.Join(dir, art.TemplateFile)),
			Inputs:           []*codepipeline.Artifact{input},
			AdminPermissions: true,
			Region:           region,
			RunOrder:         art.Level + 1,
		}))
	}

	for _, nested := range asm.Nested {
		more, err := s.deployActions(nested, dir, input)
		if err != nil {
			return nil, err
		}
		list = append(list, more...)
	}

	return list, nil
}

// requireSupportStack declares the support stack of region next to the pipeline stack.
func (s *RepoCloudPipelineStack) requireSupportStack(region string) error {
	if _, ok := s.SupportStacks[region]; ok {
		return nil
	}

	stack, err := construct.NewStack(s.Node().Scope(), s.Node().ID()+"-support-"+region, construct.StackProps{
		Env: construct.Environment{Account: s.Environment().Account, Region: region},
	})
	if err != nil {
		return err
	}
	support := &CrossRegionSupportStack{Stack: stack}
	support.ReplicationBucket, err = s3.NewBucket(support, "CrossRegionCodePipelineReplicationBucket", s3.BucketProps{
		BucketName: replicationBucketName(s.StackName(), region),
		Retain:     true,
	})
	if err != nil {
		return err
	}
	if err := s.AddDependency(support.Stack); err != nil {
		return err
	}

	s.SupportStacks[region] = support
	return nil
}

// SupportRegions returns the regions served by support stacks, sorted.
func (s *RepoCloudPipelineStack) SupportRegions() []string {
	regions := make([]string, 0, len(s.SupportStacks))
	for region := range s.SupportStacks {
		regions = append(regions, region)
	}
	slices.Sort(regions)
	return regions
}

func replicationBucketName(stackName string, region string) string {
	name := strings.ToLower(stackName + "-" + region + "-replication")
	var b strings.Builder
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			b.WriteRune(r)
		}
	}
	name = b.String()
	if len(name) > maxBucketNameLength {
		name = name[len(name)-maxBucketNameLength:]
	}
	return strings.Trim(name, "-")
}
