// Package ecr declares or imports container image repositories.
package ecr

import (
	"fmt"
	"strings"

	"github.com/awslabs/goformation/v7/cloudformation"
	cfnecr "github.com/awslabs/goformation/v7/cloudformation/ecr"

	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/construct"
)

var (
	pullActions = []string{"ecr:BatchCheckLayerAvailability", "ecr:GetDownloadUrlForLayer", "ecr:BatchGetImage"}
	pushActions = []string{"ecr:PutImage", "ecr:InitiateLayerUpload", "ecr:UploadLayerPart", "ecr:CompleteLayerUpload"}
)

// RepositoryProps configures a Repository.
type RepositoryProps struct {
	RepositoryName string
	ScanOnPush     bool

	// MaxImageCount expires untagged images beyond the given count. Zero keeps all images.
	MaxImageCount int
}

// Repository is an ECR repository, either declared in a stack or looked up by name.
type Repository struct {
	construct.Base

	name     any
	arn      any
	uri      any
	resource *construct.CfnResource
}

// NewRepository declares a repository.
func NewRepository(scope construct.Construct, id string, props RepositoryProps) (*Repository, error) {
	r := &Repository{}
	if err := r.Init(scope, id, r); err != nil {
		return nil, err
	}

	scanning, err := construct.PropertyValue(&cfnecr.Repository_ImageScanningConfiguration{
		ScanOnPush: cloudformation.Bool(props.ScanOnPush),
	})
	if err != nil {
		return nil, err
	}

	properties := map[string]any{
		"ImageScanningConfiguration": scanning,
	}
	if props.RepositoryName != "" {
		properties["RepositoryName"] = props.RepositoryName
	}
	if props.MaxImageCount > 0 {
		properties["LifecyclePolicy"] = map[string]any{
			"LifecyclePolicyText": construct.JSONString(map[string]any{
				"rules": []any{
					map[string]any{
						"rulePriority": 1,
						"selection": map[string]any{
							"tagStatus":   "untagged",
							"countType":   "imageCountMoreThan",
							"countNumber": props.MaxImageCount,
						},
						"action": map[string]any{"type": "expire"},
					},
				},
			}),
		}
	}

	r.resource, err = construct.NewCfnResource(r, "Resource", construct.CfnResourceProps{
		Type:       (&cfnecr.Repository{}).AWSCloudFormationType(),
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}

	r.name = r.resource.Ref()
	r.arn = r.resource.GetAtt("Arn")
	r.uri = r.resource.GetAtt("RepositoryUri")
	return r, nil
}

// FromRepositoryName references an existing repository in the environment of the enclosing stack.
// No resource is declared.
func FromRepositoryName(scope construct.Construct, id string, name string) (*Repository, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: repository '%s' requires a name", construct.ErrInvalidConstruct, id)
	}

	r := &Repository{name: name}
	if err := r.Init(scope, id, r); err != nil {
		return nil, err
	}

	stack, err := construct.StackOf(r)
	if err != nil {
		return nil, err
	}

	r.arn = construct.FormatArn(stack, construct.ArnComponents{
		Service:      "ecr",
		Resource:     "repository",
		ResourceName: name,
	})
	r.uri = construct.Join("", stack.Account(), ".dkr.ecr.", stack.Region(), ".", stack.URLSuffix(), "/", name)
	return r, nil
}

// RepositoryName returns the name of the repository.
func (r *Repository) RepositoryName() any {
	return r.name
}

// RepositoryArn returns the ARN of the repository.
func (r *Repository) RepositoryArn() any {
	return r.arn
}

// RepositoryURI returns the URI images are pushed to, without a tag.
func (r *Repository) RepositoryURI() any {
	return r.uri
}

// RepositoryURIForTag returns the URI of the image with the given tag.
func (r *Repository) RepositoryURIForTag(tag string) construct.Token {
	return construct.Join("", r.RepositoryURI(), ":", tag)
}

// Resource returns the declared repository resource, nil for imported repositories.
func (r *Repository) Resource() *construct.CfnResource {
	return r.resource
}

// GrantPull allows role to pull images, including the account wide authorization token.
func (r *Repository) GrantPull(role *iam.Role) error {
	return role.AddToPolicies(
		iam.PolicyStatement{Actions: pullActions, Resources: []any{r.RepositoryArn()}},
		AuthorizationTokenStatement(),
	)
}

// GrantPullPush allows role to pull and push images.
func (r *Repository) GrantPullPush(role *iam.Role) error {
	return role.AddToPolicies(
		iam.PolicyStatement{Actions: append(append([]string{}, pullActions...), pushActions...), Resources: []any{r.RepositoryArn()}},
		AuthorizationTokenStatement(),
	)
}

// AuthorizationTokenStatement allows docker logins to the registry of the account.
func AuthorizationTokenStatement() iam.PolicyStatement {
	return iam.PolicyStatement{
		Actions:   []string{"ecr:GetAuthorizationToken"},
		Resources: []any{"*"},
	}
}
