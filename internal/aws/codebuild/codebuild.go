// Package codebuild declares build projects run by pipelines.
package codebuild

import (
	"fmt"
	"slices"

	cfncodebuild "github.com/awslabs/goformation/v7/cloudformation/codebuild"

	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
)

// Build images and compute types.
const (
	ImageStandard50 = "aws/codebuild/standard:5.0"
	ImageStandard70 = "aws/codebuild/standard:7.0"

	ComputeTypeSmall  = "BUILD_GENERAL1_SMALL"
	ComputeTypeMedium = "BUILD_GENERAL1_MEDIUM"
)

// Environment is the build container of a project.
type Environment struct {
	// Image defaults to ImageStandard50.
	Image string

	// ComputeType defaults to ComputeTypeSmall.
	ComputeType string

	// Privileged allows docker builds.
	Privileged bool
}

// Cache stores build caches under a prefix of a bucket.
type Cache struct {
	Bucket *s3.Bucket
	Prefix string
}

// BuildSpec is either the path of a build specification file in the source
// or an inline specification.
type BuildSpec struct {
	Filename string
	Inline   map[string]any
}

// FromSourceFilename returns a build spec read from the source artifact.
func FromSourceFilename(filename string) BuildSpec {
	return BuildSpec{Filename: filename}
}

// FromObject returns an inline build spec.
func FromObject(spec map[string]any) BuildSpec {
	return BuildSpec{Inline: spec}
}

func (b BuildSpec) render() (any, error) {
	switch {
	case b.Filename != "" && b.Inline != nil:
		return nil, fmt.Errorf("%w: build spec cannot be both a file and inline", construct.ErrInvalidConstruct)
	case b.Filename != "":
		return b.Filename, nil
	case b.Inline != nil:
		return construct.JSONString(b.Inline), nil
	}
	return nil, fmt.Errorf("%w: build spec is required", construct.ErrInvalidConstruct)
}

// PipelineProjectProps configures a PipelineProject.
type PipelineProjectProps struct {
	BuildSpec   BuildSpec
	Environment Environment

	// EnvironmentVariables are plain text variables; values may be tokens.
	EnvironmentVariables map[string]any

	Cache       *Cache
	Description string
}

// PipelineProject is a build project whose source and artifacts come from a pipeline.
type PipelineProject struct {
	construct.Base

	resource *construct.CfnResource
	role     *iam.Role
}

// NewPipelineProject declares a project and its service role.
func NewPipelineProject(scope construct.Construct, id string, props PipelineProjectProps) (*PipelineProject, error) {
	buildSpec, err := props.BuildSpec.render()
	if err != nil {
		return nil, fmt.Errorf("project '%s': %w", id, err)
	}

	p := &PipelineProject{}
	if err := p.Init(scope, id, p); err != nil {
		return nil, err
	}

	stack, err := construct.StackOf(p)
	if err != nil {
		return nil, err
	}

	p.role, err = iam.NewRole(p, "Role", iam.RoleProps{AssumedBy: "codebuild.amazonaws.com"})
	if err != nil {
		return nil, err
	}

	image := props.Environment.Image
	if image == "" {
		image = ImageStandard50
	}
	computeType := props.Environment.ComputeType
	if computeType == "" {
		computeType = ComputeTypeSmall
	}

	environment := map[string]any{
		"Type":                     "LINUX_CONTAINER",
		"Image":                    image,
		"ComputeType":              computeType,
		"PrivilegedMode":           props.Environment.Privileged,
		"ImagePullCredentialsType": "CODEBUILD",
	}
	if len(props.EnvironmentVariables) > 0 {
		names := make([]string, 0, len(props.EnvironmentVariables))
		for name := range props.EnvironmentVariables {
			names = append(names, name)
		}
		slices.Sort(names)

		vars := make([]any, len(names))
		for i, name := range names {
			vars[i] = map[string]any{"Name": name, "Type": "PLAINTEXT", "Value": props.EnvironmentVariables[name]}
		}
		environment["EnvironmentVariables"] = vars
	}

	cache := map[string]any{"Type": "NO_CACHE"}
	if props.Cache != nil && props.Cache.Bucket != nil {
		location := props.Cache.Bucket.BucketName()
		if props.Cache.Prefix != "" {
			location = construct.Join("/", location, props.Cache.Prefix)
		}
		cache = map[string]any{"Type": "S3", "Location": location}
		if err := props.Cache.Bucket.GrantReadWrite(p.role); err != nil {
			return nil, err
		}
	}

	properties := map[string]any{
		"Artifacts":   map[string]any{"Type": "CODEPIPELINE"},
		"Source":      map[string]any{"Type": "CODEPIPELINE", "BuildSpec": buildSpec},
		"Environment": environment,
		"ServiceRole": p.role.Arn(),
		"Cache":       cache,
		"EncryptionKey": construct.Join("",
			"arn:", stack.Partition(), ":kms:", stack.Region(), ":", stack.Account(), ":alias/aws/s3",
		),
	}
	if props.Description != "" {
		properties["Description"] = props.Description
	}

	p.resource, err = construct.NewCfnResource(p, "Resource", construct.CfnResourceProps{
		Type:       (&cfncodebuild.Project{}).AWSCloudFormationType(),
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}

	logGroupArn := construct.FormatArn(stack, construct.ArnComponents{
		Service:      "logs",
		Resource:     "log-group",
		ResourceName: construct.Join("", "/aws/codebuild/", p.resource.Ref()),
		Sep:          ":",
	})
	err = p.role.AddToPolicies(
		iam.PolicyStatement{
			Actions:   []string{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"},
			Resources: []any{logGroupArn, construct.Join("", logGroupArn, ":*")},
		},
		iam.PolicyStatement{
			Actions: []string{
				"codebuild:CreateReportGroup",
				"codebuild:CreateReport",
				"codebuild:UpdateReport",
				"codebuild:BatchPutTestCases",
				"codebuild:BatchPutCodeCoverages",
			},
			Resources: []any{construct.FormatArn(stack, construct.ArnComponents{
				Service:      "codebuild",
				Resource:     "report-group",
				ResourceName: construct.Join("", p.resource.Ref(), "-*"),
			})},
		},
	)
	if err != nil {
		return nil, err
	}

	p.Node().AddValidation(func() error {
		return p.role.DependOnPolicy(p.resource)
	})

	return p, nil
}

// ProjectName returns the name of the project.
func (p *PipelineProject) ProjectName() construct.Token {
	return p.resource.Ref()
}

// ProjectArn returns the ARN of the project.
func (p *PipelineProject) ProjectArn() construct.Token {
	return p.resource.GetAtt("Arn")
}

// Role returns the service role of the project.
func (p *PipelineProject) Role() *iam.Role {
	return p.role
}

// Resource returns the underlying project resource.
func (p *PipelineProject) Resource() *construct.CfnResource {
	return p.resource
}
