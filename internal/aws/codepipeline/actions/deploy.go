package actions

import (
	"maps"
	"slices"
	"strings"

	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/ecs"
	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/lambda"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
)

// S3DeployActionProps configures an S3DeployAction.
type S3DeployActionProps struct {
	ActionName string
	Bucket     *s3.Bucket
	Input      *codepipeline.Artifact

	// KeepArchive uploads the artifact as a zip instead of extracting it.
	KeepArchive bool
}

// S3DeployAction copies an artifact into a bucket.
type S3DeployAction struct {
	props S3DeployActionProps
}

// NewS3DeployAction returns an S3 deploy action.
func NewS3DeployAction(props S3DeployActionProps) *S3DeployAction {
	return &S3DeployAction{props: props}
}

func (a *S3DeployAction) ActionProperties() codepipeline.ActionProperties {
	return codepipeline.ActionProperties{
		ActionName: a.props.ActionName,
		Category:   codepipeline.CategoryDeploy,
		Owner:      codepipeline.OwnerAWS,
		Provider:   "S3",
		Inputs:     artifacts(a.props.Input),
	}
}

func (a *S3DeployAction) Bind(_ construct.Construct, opts codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	if err := requireProperty(a.props.ActionName, "a bucket", a.props.Bucket != nil); err != nil {
		return codepipeline.ActionConfig{}, err
	}
	if err := requireProperty(a.props.ActionName, "an input artifact", a.props.Input != nil); err != nil {
		return codepipeline.ActionConfig{}, err
	}
	if err := a.props.Bucket.GrantReadWrite(opts.Role); err != nil {
		return codepipeline.ActionConfig{}, err
	}

	extract := "true"
	if a.props.KeepArchive {
		extract = "false"
	}

	config := map[string]any{
		"BucketName": a.props.Bucket.BucketName(),
		"Extract":    extract,
	}
	if a.props.KeepArchive {
		config["ObjectKey"] = a.props.Input.NameToken()
	}
	return codepipeline.ActionConfig{Configuration: config}, nil
}

// LambdaInvokeActionProps configures a LambdaInvokeAction.
type LambdaInvokeActionProps struct {
	ActionName string
	Lambda     *lambda.Function

	// UserParameters are passed to the function as a JSON document; values may be tokens.
	UserParameters map[string]any

	Inputs  []*codepipeline.Artifact
	Outputs []*codepipeline.Artifact
}

// LambdaInvokeAction invokes a function which reports the job result back to the pipeline.
type LambdaInvokeAction struct {
	props LambdaInvokeActionProps
}

// NewLambdaInvokeAction returns a Lambda invoke action.
func NewLambdaInvokeAction(props LambdaInvokeActionProps) *LambdaInvokeAction {
	return &LambdaInvokeAction{props: props}
}

func (a *LambdaInvokeAction) ActionProperties() codepipeline.ActionProperties {
	return codepipeline.ActionProperties{
		ActionName: a.props.ActionName,
		Category:   codepipeline.CategoryInvoke,
		Owner:      codepipeline.OwnerAWS,
		Provider:   "Lambda",
		Inputs:     a.props.Inputs,
		Outputs:    a.props.Outputs,
	}
}

func (a *LambdaInvokeAction) Bind(_ construct.Construct, opts codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	if err := requireProperty(a.props.ActionName, "a function", a.props.Lambda != nil); err != nil {
		return codepipeline.ActionConfig{}, err
	}

	err := opts.Role.AddToPolicy(iam.PolicyStatement{
		Actions:   []string{"lambda:ListFunctions"},
		Resources: []any{"*"},
	})
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}
	if err := a.props.Lambda.GrantInvoke(opts.Role); err != nil {
		return codepipeline.ActionConfig{}, err
	}
	err = a.props.Lambda.AddToRolePolicy(iam.PolicyStatement{
		Actions:   []string{"codepipeline:PutJobSuccessResult", "codepipeline:PutJobFailureResult"},
		Resources: []any{"*"},
	})
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}

	if len(a.props.Inputs) > 0 {
		if err := opts.Bucket.GrantRead(a.props.Lambda.Role()); err != nil {
			return codepipeline.ActionConfig{}, err
		}
	}
	if len(a.props.Outputs) > 0 {
		if err := opts.Bucket.GrantReadWrite(a.props.Lambda.Role()); err != nil {
			return codepipeline.ActionConfig{}, err
		}
	}

	config := map[string]any{"FunctionName": a.props.Lambda.FunctionName()}
	if len(a.props.UserParameters) > 0 {
		config["UserParameters"] = construct.JSONString(a.props.UserParameters)
	}
	return codepipeline.ActionConfig{Configuration: config}, nil
}

// ManualApprovalActionProps configures a ManualApprovalAction.
type ManualApprovalActionProps struct {
	ActionName            string
	AdditionalInformation string
	RunOrder              int
}

// ManualApprovalAction pauses the pipeline until someone approves.
type ManualApprovalAction struct {
	props ManualApprovalActionProps
}

// NewManualApprovalAction returns a manual approval action.
func NewManualApprovalAction(props ManualApprovalActionProps) *ManualApprovalAction {
	return &ManualApprovalAction{props: props}
}

func (a *ManualApprovalAction) ActionProperties() codepipeline.ActionProperties {
	return codepipeline.ActionProperties{
		ActionName: a.props.ActionName,
		Category:   codepipeline.CategoryApproval,
		Owner:      codepipeline.OwnerAWS,
		Provider:   "Manual",
		RunOrder:   a.props.RunOrder,
	}
}

func (a *ManualApprovalAction) Bind(construct.Construct, codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	if a.props.AdditionalInformation == "" {
		return codepipeline.ActionConfig{}, nil
	}
	return codepipeline.ActionConfig{
		Configuration: map[string]any{"CustomData": a.props.AdditionalInformation},
	}, nil
}

// Capabilities acknowledged by CloudFormation deploy actions.
var deployCapabilities = []string{"CAPABILITY_NAMED_IAM", "CAPABILITY_AUTO_EXPAND"}

// CloudFormationCreateUpdateStackActionProps configures a CloudFormationCreateUpdateStackAction.
type CloudFormationCreateUpdateStackActionProps struct {
	ActionName string
	StackName  string

	// TemplatePath is a file of an input artifact, see codepipeline.Artifact.AtPath.
	TemplatePath construct.Token
	Inputs       []*codepipeline.Artifact

	// AdminPermissions grants the deployment role full access.
	AdminPermissions bool

	Region   string
	RunOrder int
}

// CloudFormationCreateUpdateStackAction creates a stack or updates it in place.
type CloudFormationCreateUpdateStackAction struct {
	props CloudFormationCreateUpdateStackActionProps
	role  *iam.Role
}

// NewCloudFormationCreateUpdateStackAction returns a CloudFormation deploy action.
func NewCloudFormationCreateUpdateStackAction(props CloudFormationCreateUpdateStackActionProps) *CloudFormationCreateUpdateStackAction {
	return &CloudFormationCreateUpdateStackAction{props: props}
}

// DeploymentRole returns the role CloudFormation deploys with, nil until bound.
func (a *CloudFormationCreateUpdateStackAction) DeploymentRole() *iam.Role {
	return a.role
}

func (a *CloudFormationCreateUpdateStackAction) ActionProperties() codepipeline.ActionProperties {
	return codepipeline.ActionProperties{
		ActionName: a.props.ActionName,
		Category:   codepipeline.CategoryDeploy,
		Owner:      codepipeline.OwnerAWS,
		Provider:   "CloudFormation",
		Inputs:     a.props.Inputs,
		RunOrder:   a.props.RunOrder,
		Region:     a.props.Region,
	}
}

func (a *CloudFormationCreateUpdateStackAction) Bind(scope construct.Construct, opts codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	checks := []struct {
		name string
		ok   bool
	}{
		{name: "a stack name", ok: a.props.StackName != ""},
		{name: "a template path", ok: a.props.TemplatePath != nil},
		{name: "an input artifact", ok: len(a.props.Inputs) > 0},
	}
	for _, c := range checks {
		if err := requireProperty(a.props.ActionName, c.name, c.ok); err != nil {
			return codepipeline.ActionConfig{}, err
		}
	}

	var err error
	a.role, err = iam.NewRole(scope, a.props.ActionName+"Role", iam.RoleProps{AssumedBy: "cloudformation.amazonaws.com"})
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}
	if a.props.AdminPermissions {
		if err := a.role.AddToPolicy(iam.PolicyStatement{Actions: []string{"*"}, Resources: []any{"*"}}); err != nil {
			return codepipeline.ActionConfig{}, err
		}
	}

	stack, err := construct.StackOf(scope)
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}
	region := any(a.props.Region)
	if a.props.Region == "" {
		region = nil
	}
	stackArn := construct.FormatArn(stack, construct.ArnComponents{
		Service:      "cloudformation",
		Resource:     "stack",
		ResourceName: a.props.StackName + "/*",
		Region:       region,
	})

	err = opts.Role.AddToPolicies(
		iam.PolicyStatement{Actions: []string{"iam:PassRole"}, Resources: []any{a.role.Arn()}},
		iam.PolicyStatement{
			Actions: []string{
				"cloudformation:CreateStack",
				"cloudformation:DescribeStack*",
				"cloudformation:GetStackPolicy",
				"cloudformation:GetTemplate*",
				"cloudformation:SetStackPolicy",
				"cloudformation:UpdateStack",
				"cloudformation:ValidateTemplate",
			},
			Resources: []any{stackArn},
		},
	)
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}
	if err := opts.Bucket.GrantRead(a.role); err != nil {
		return codepipeline.ActionConfig{}, err
	}

	return codepipeline.ActionConfig{
		Configuration: map[string]any{
			"ActionMode":   "CREATE_UPDATE",
			"StackName":    a.props.StackName,
			"TemplatePath": a.props.TemplatePath,
			"RoleArn":      a.role.Arn(),
			"Capabilities": strings.Join(deployCapabilities, ","),
		},
	}, nil
}

// EcsDeployActionProps configures an EcsDeployAction.
type EcsDeployActionProps struct {
	ActionName string
	Cluster    *ecs.Cluster
	Service    *ecs.FargateService
	Input      *codepipeline.Artifact

	// ImageFile defaults to imagedefinitions.json.
	ImageFile string
}

// EcsDeployAction rolls a service to the images listed in an artifact.
type EcsDeployAction struct {
	props EcsDeployActionProps
}

// NewEcsDeployAction returns an ECS deploy action.
func NewEcsDeployAction(props EcsDeployActionProps) *EcsDeployAction {
	if props.ImageFile == "" {
		props.ImageFile = "imagedefinitions.json"
	}
	return &EcsDeployAction{props: props}
}

func (a *EcsDeployAction) ActionProperties() codepipeline.ActionProperties {
	return codepipeline.ActionProperties{
		ActionName: a.props.ActionName,
		Category:   codepipeline.CategoryDeploy,
		Owner:      codepipeline.OwnerAWS,
		Provider:   "ECS",
		Inputs:     artifacts(a.props.Input),
	}
}

func (a *EcsDeployAction) Bind(_ construct.Construct, opts codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	checks := []struct {
		name string
		ok   bool
	}{
		{name: "a cluster", ok: a.props.Cluster != nil},
		{name: "a service", ok: a.props.Service != nil},
		{name: "an input artifact", ok: a.props.Input != nil},
	}
	for _, c := range checks {
		if err := requireProperty(a.props.ActionName, c.name, c.ok); err != nil {
			return codepipeline.ActionConfig{}, err
		}
	}

	err := opts.Role.AddToPolicies(
		iam.PolicyStatement{
			Actions: []string{
				"ecs:DescribeServices",
				"ecs:DescribeTaskDefinition",
				"ecs:DescribeTasks",
				"ecs:ListTasks",
				"ecs:RegisterTaskDefinition",
				"ecs:TagResource",
				"ecs:UpdateService",
			},
			Resources: []any{"*"},
		},
		iam.PolicyStatement{Actions: []string{"iam:PassRole"}, Resources: []any{"*"}},
	)
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}

	return codepipeline.ActionConfig{
		Configuration: map[string]any{
			"ClusterName": a.props.Cluster.ClusterName(),
			"ServiceName": a.props.Service.ServiceName(),
			"FileName":    a.props.ImageFile,
		},
	}, nil
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
