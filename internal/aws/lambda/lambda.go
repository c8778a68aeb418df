// Package lambda declares functions, from inline source or container images.
package lambda

import (
	"errors"
	"fmt"
	"time"

	cfnlambda "github.com/awslabs/goformation/v7/cloudformation/lambda"

	"github.com/engr-lynx/cicd/internal/aws/ec2"
	"github.com/engr-lynx/cicd/internal/aws/ecr"
	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/logs"
	"github.com/engr-lynx/cicd/internal/construct"
)

// ErrInvalidCode indicates function code that does not match the function configuration.
var ErrInvalidCode = errors.New("invalid function code")

// Runtime of zip packaged functions.
type Runtime string

const (
	RuntimePython39  Runtime = "python3.9"
	RuntimePython312 Runtime = "python3.12"
)

const (
	// maxInlineCodeSize is the largest source CloudFormation accepts as ZipFile.
	maxInlineCodeSize = 4096

	defaultTimeout = 3 * time.Second
)

// Code is the deployment package of a function.
type Code interface {
	properties() (map[string]any, error)
	packageType() string
}

// InlineCode is function source embedded in the template.
type InlineCode string

func (c InlineCode) properties() (map[string]any, error) {
	if len(c) == 0 || len(c) > maxInlineCodeSize {
		return nil, fmt.Errorf("%w: inline code must be between 1 and %d bytes", ErrInvalidCode, maxInlineCodeSize)
	}
	return map[string]any{"ZipFile": string(c)}, nil
}

func (InlineCode) packageType() string {
	return "Zip"
}

// ImageCode is a container image of an ECR repository.
type ImageCode struct {
	Repository *ecr.Repository

	// Tag defaults to latest.
	Tag string
}

func (c ImageCode) properties() (map[string]any, error) {
	if c.Repository == nil {
		return nil, fmt.Errorf("%w: image code requires a repository", ErrInvalidCode)
	}
	tag := c.Tag
	if tag == "" {
		tag = "latest"
	}
	return map[string]any{"ImageUri": c.Repository.RepositoryURIForTag(tag)}, nil
}

func (ImageCode) packageType() string {
	return "Image"
}

// FunctionProps configures a Function.
type FunctionProps struct {
	Code Code

	// Handler and Runtime are required for InlineCode and ignored for ImageCode.
	Handler string
	Runtime Runtime

	// Timeout defaults to 3 seconds.
	Timeout    time.Duration
	MemorySize int

	Environment map[string]any
	Description string

	// Vpc places the function in the isolated subnets of the network.
	Vpc *ec2.Vpc

	// LogRetentionDays declares the function log group with the given retention.
	LogRetentionDays int
}

// Function is a Lambda function with its execution role.
type Function struct {
	construct.Base

	resource      *construct.CfnResource
	role          *iam.Role
	securityGroup *ec2.SecurityGroup
	logGroup      *logs.LogGroup
}

// NewFunction declares a function.
func NewFunction(scope construct.Construct, id string, props FunctionProps) (*Function, error) {
	if props.Code == nil {
		return nil, fmt.Errorf("%w: function '%s' requires code", ErrInvalidCode, id)
	}
	code, err := props.Code.properties()
	if err != nil {
		return nil, fmt.Errorf("function '%s': %w", id, err)
	}
	packageType := props.Code.packageType()
	if packageType == "Zip" && (props.Handler == "" || props.Runtime == "") {
		return nil, fmt.Errorf("%w: function '%s' requires a handler and a runtime", ErrInvalidCode, id)
	}

	timeout := props.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	f := &Function{}
	if err := f.Init(scope, id, f); err != nil {
		return nil, err
	}

	managed := []string{"service-role/AWSLambdaBasicExecutionRole"}
	if props.Vpc != nil {
		managed = append(managed, "service-role/AWSLambdaVPCAccessExecutionRole")
	}
	f.role, err = iam.NewRole(f, "ServiceRole", iam.RoleProps{
		AssumedBy:       "lambda.amazonaws.com",
		ManagedPolicies: managed,
	})
	if err != nil {
		return nil, err
	}

	properties := map[string]any{
		"Code":        code,
		"Role":        f.role.Arn(),
		"Timeout":     int(timeout / time.Second),
		"PackageType": packageType,
	}
	if packageType == "Zip" {
		properties["Handler"] = props.Handler
		properties["Runtime"] = string(props.Runtime)
	}
	if props.MemorySize > 0 {
		properties["MemorySize"] = props.MemorySize
	}
	if props.Description != "" {
		properties["Description"] = props.Description
	}
	if len(props.Environment) > 0 {
		properties["Environment"] = map[string]any{"Variables": props.Environment}
	}

	if props.Vpc != nil {
		f.securityGroup, err = ec2.NewSecurityGroup(f, "SecurityGroup", ec2.SecurityGroupProps{
			Vpc:         props.Vpc,
			Description: "Automatic security group for Lambda Function " + f.Node().Path(),
		})
		if err != nil {
			return nil, err
		}
		properties["VpcConfig"] = map[string]any{
			"SubnetIds":        props.Vpc.SubnetIDs(ec2.SubnetTypeIsolated),
			"SecurityGroupIds": []any{f.securityGroup.GroupID()},
		}
	}

	f.resource, err = construct.NewCfnResource(f, "Resource", construct.CfnResourceProps{
		Type:       (&cfnlambda.Function{}).AWSCloudFormationType(),
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}
	if err := f.resource.AddDependsOn(f.role.Resource()); err != nil {
		return nil, err
	}

	if props.LogRetentionDays > 0 {
		f.logGroup, err = logs.NewLogGroup(f, "LogGroup", logs.LogGroupProps{
			LogGroupName:  construct.Join("", "/aws/lambda/", f.resource.Ref()),
			RetentionDays: props.LogRetentionDays,
		})
		if err != nil {
			return nil, err
		}
	}

	// Statements may be added to the role after construction, the dependency is settled at synthesis.
	f.Node().AddValidation(func() error {
		return f.role.DependOnPolicy(f.resource)
	})

	return f, nil
}

// FunctionName returns the name of the function.
func (f *Function) FunctionName() construct.Token {
	return f.resource.Ref()
}

// FunctionArn returns the ARN of the function.
func (f *Function) FunctionArn() construct.Token {
	return f.resource.GetAtt("Arn")
}

// Role returns the execution role of the function.
func (f *Function) Role() *iam.Role {
	return f.role
}

// LogGroup returns the log group of the function, nil unless a retention was set.
func (f *Function) LogGroup() *logs.LogGroup {
	return f.logGroup
}

// Resource returns the underlying function resource.
func (f *Function) Resource() *construct.CfnResource {
	return f.resource
}

// AddToRolePolicy adds a statement to the execution role.
func (f *Function) AddToRolePolicy(statement iam.PolicyStatement) error {
	return f.role.AddToPolicy(statement)
}

// GrantInvoke allows role to invoke the function.
func (f *Function) GrantInvoke(role *iam.Role) error {
	return role.AddToPolicy(iam.PolicyStatement{
		Actions:   []string{"lambda:InvokeFunction"},
		Resources: []any{f.FunctionArn()},
	})
}

// PermissionProps configures a resource based permission of a function.
type PermissionProps struct {
	// Principal is a service principal such as apigateway.amazonaws.com.
	Principal string
	SourceArn any
}

// AddPermission allows a service to invoke the function.
func (f *Function) AddPermission(id string, props PermissionProps) (*construct.CfnResource, error) {
	properties := map[string]any{
		"Action":       "lambda:InvokeFunction",
		"FunctionName": f.FunctionArn(),
		"Principal":    props.Principal,
	}
	if props.SourceArn != nil {
		properties["SourceArn"] = props.SourceArn
	}
	return construct.NewCfnResource(f, id, construct.CfnResourceProps{
		Type:       (&cfnlambda.Permission{}).AWSCloudFormationType(),
		Properties: properties,
	})
}
