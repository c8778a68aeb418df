// Package codecommit declares or imports CodeCommit repositories.
package codecommit

import (
	"fmt"
	"strings"

	cfncodecommit "github.com/awslabs/goformation/v7/cloudformation/codecommit"

	"github.com/engr-lynx/cicd/internal/construct"
)

// RepositoryProps configures a new Repository.
type RepositoryProps struct {
	RepositoryName string
	Description    string
}

// Repository is a CodeCommit repository, either declared in a stack or looked up by name.
type Repository struct {
	construct.Base

	name     any
	arn      any
	resource *construct.CfnResource
}

// NewRepository declares a new repository.
func NewRepository(scope construct.Construct, id string, props RepositoryProps) (*Repository, error) {
	if strings.TrimSpace(props.RepositoryName) == "" {
		return nil, fmt.Errorf("%w: repository '%s' requires a name", construct.ErrInvalidConstruct, id)
	}

	r := &Repository{}
	if err := r.Init(scope, id, r); err != nil {
		return nil, err
	}

	properties := map[string]any{"RepositoryName": props.RepositoryName}
	if props.Description != "" {
		properties["RepositoryDescription"] = props.Description
	}

	var err error
	r.resource, err = construct.NewCfnResource(r, "Resource", construct.CfnResourceProps{
		Type:       (&cfncodecommit.Repository{}).AWSCloudFormationType(),
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}

	r.name = r.resource.GetAtt("Name")
	r.arn = r.resource.GetAtt("Arn")
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
		Service:  "codecommit",
		Resource: name,
	})
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

// Resource returns the declared repository resource, nil for imported repositories.
func (r *Repository) Resource() *construct.CfnResource {
	return r.resource
}

// Imported reports whether the repository was looked up rather than declared.
func (r *Repository) Imported() bool {
	return r.resource == nil
}
