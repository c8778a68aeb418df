// Package iam declares roles and policies.
package iam

import (
	"fmt"
	"slices"

	cfniam "github.com/awslabs/goformation/v7/cloudformation/iam"

	"github.com/engr-lynx/cicd/internal/construct"
)

const policyVersion = "2012-10-17"

// Effect of a policy statement.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// PolicyStatement is a single statement of a policy document.
type PolicyStatement struct {
	// Effect defaults to EffectAllow.
	Effect    Effect
	Actions   []string
	Resources []any

	// Principals maps a principal type (Service, AWS, CanonicalUser) to its value.
	// Only used in resource policies.
	Principals map[string]any
}

func (s PolicyStatement) document() map[string]any {
	effect := s.Effect
	if effect == "" {
		effect = EffectAllow
	}

	doc := map[string]any{
		"Effect": string(effect),
		"Action": singleOrList(slices.Clone(s.Actions)),
	}
	if len(s.Resources) > 0 {
		doc["Resource"] = singleOrList(slices.Clone(s.Resources))
	}
	if len(s.Principals) > 0 {
		doc["Principal"] = s.Principals
	}
	return doc
}

func singleOrList[T any](values []T) any {
	if len(values) == 1 {
		return values[0]
	}
	return values
}

// PolicyDocument returns a token rendering the statements produced by fn at synthesis.
func PolicyDocument(fn func() []PolicyStatement) construct.Token {
	return construct.Lazy(func() (any, error) {
		statements := fn()
		docs := make([]any, len(statements))
		for i, s := range statements {
			docs[i] = s.document()
		}
		return map[string]any{
			"Version":   policyVersion,
			"Statement": docs,
		}, nil
	})
}

// RoleProps configures a Role.
type RoleProps struct {
	// AssumedBy is the service principal allowed to assume the role, e.g. codebuild.amazonaws.com.
	AssumedBy string

	// ManagedPolicies are names of AWS managed policies, e.g. service-role/AWSLambdaBasicExecutionRole.
	ManagedPolicies []string

	Description string
}

// Role is an IAM role with an inline default policy.
type Role struct {
	construct.Base

	resource   *construct.CfnResource
	policy     *construct.CfnResource
	statements []PolicyStatement
}

// NewRole declares a role assumed by props.AssumedBy.
func NewRole(scope construct.Construct, id string, props RoleProps) (*Role, error) {
	if props.AssumedBy == "" {
		return nil, fmt.Errorf("%w: role '%s' requires a service principal", construct.ErrInvalidConstruct, id)
	}

	r := &Role{}
	if err := r.Init(scope, id, r); err != nil {
		return nil, err
	}

	stack, err := construct.StackOf(r)
	if err != nil {
		return nil, err
	}

	properties := map[string]any{
		"AssumeRolePolicyDocument": map[string]any{
			"Version": policyVersion,
			"Statement": []any{
				map[string]any{
					"Action":    "sts:AssumeRole",
					"Effect":    string(EffectAllow),
					"Principal": map[string]any{"Service": props.AssumedBy},
				},
			},
		},
	}
	if props.Description != "" {
		properties["Description"] = props.Description
	}
	if len(props.ManagedPolicies) > 0 {
		arns := make([]any, len(props.ManagedPolicies))
		for i, name := range props.ManagedPolicies {
			arns[i] = construct.Join("", "arn:", stack.Partition(), ":iam::aws:policy/", name)
		}
		properties["ManagedPolicyArns"] = arns
	}

	r.resource, err = construct.NewCfnResource(r, "Resource", construct.CfnResourceProps{
		Type:       (&cfniam.Role{}).AWSCloudFormationType(),
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Arn returns the ARN of the role.
func (r *Role) Arn() construct.Token {
	return r.resource.GetAtt("Arn")
}

// RoleName returns the name of the role.
func (r *Role) RoleName() construct.Token {
	return r.resource.Ref()
}

// Resource returns the underlying role resource.
func (r *Role) Resource() *construct.CfnResource {
	return r.resource
}

// Policy returns the default policy resource, nil until a statement is added.
func (r *Role) Policy() *construct.CfnResource {
	return r.policy
}

// Statements returns the statements of the default policy.
func (r *Role) Statements() []PolicyStatement {
	return slices.Clone(r.statements)
}

// AddToPolicy adds a statement to the default policy of the role.
func (r *Role) AddToPolicy(statement PolicyStatement) error {
	if len(statement.Actions) == 0 {
		return fmt.Errorf("%w: policy statement on role '%s' has no actions", construct.ErrInvalidConstruct, r.Node().Path())
	}

	if r.policy == nil {
		policy, err := construct.NewCfnResource(r, "DefaultPolicy", construct.CfnResourceProps{
			Type: (&cfniam.Policy{}).AWSCloudFormationType(),
			Properties: map[string]any{
				"Roles":          []any{r.resource.Ref()},
				"PolicyDocument": PolicyDocument(r.Statements),
			},
		})
		if err != nil {
			return err
		}
		policy.SetProperty("PolicyName", policy.LogicalID())
		r.policy = policy
	}

	r.statements = append(r.statements, statement)
	return nil
}

// AddToPolicies adds several statements to the default policy of the role.
func (r *Role) AddToPolicies(statements ...PolicyStatement) error {
	for _, s := range statements {
		if err := r.AddToPolicy(s); err != nil {
			return err
		}
	}
	return nil
}

// DependOnPolicy makes res wait for the default policy of r, when there is one.
// Resources using the role fail to create before the policy is attached.
func (r *Role) DependOnPolicy(res *construct.CfnResource) error {
	if r.policy == nil {
		return nil
	}
	return res.AddDependsOn(r.policy)
}
