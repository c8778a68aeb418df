// Package ecs declares clusters and Fargate services.
package ecs

import (
	"errors"
	"fmt"
	"slices"

	cfnecs "github.com/awslabs/goformation/v7/cloudformation/ecs"

	"github.com/engr-lynx/cicd/internal/aws/ec2"
	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/logs"
	"github.com/engr-lynx/cicd/internal/construct"
)

// ErrInvalidTaskSize indicates a cpu and memory combination Fargate does not support.
var ErrInvalidTaskSize = errors.New("invalid fargate task size")

// DefaultCPU is the cpu units of a task that does not set them.
const DefaultCPU = 256

// fargateMemory lists the memory sizes (MiB) supported for each cpu value.
var fargateMemory = map[int][]int{
	256:  {512, 1024, 2048},
	512:  {1024, 2048, 3072, 4096},
	1024: {2048, 3072, 4096, 5120, 6144, 7168, 8192},
	2048: rangeMiB(4096, 16384),
	4096: rangeMiB(8192, 30720),
}

func rangeMiB(from, to int) []int {
	var sizes []int
	for m := from; m <= to; m += 1024 {
		sizes = append(sizes, m)
	}
	return sizes
}

// DefaultMemory returns the smallest memory size supported for cpu.
func DefaultMemory(cpu int) (int, error) {
	sizes, ok := fargateMemory[cpu]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported cpu %d", ErrInvalidTaskSize, cpu)
	}
	return sizes[0], nil
}

// ClusterProps configures a Cluster.
type ClusterProps struct {
	Vpc *ec2.Vpc

	ContainerInsights bool
}

// Cluster is an ECS cluster bound to a VPC.
type Cluster struct {
	construct.Base

	vpc      *ec2.Vpc
	resource *construct.CfnResource
}

// NewCluster declares a cluster.
func NewCluster(scope construct.Construct, id string, props ClusterProps) (*Cluster, error) {
	if props.Vpc == nil {
		return nil, fmt.Errorf("%w: cluster '%s' requires a vpc", construct.ErrInvalidConstruct, id)
	}

	c := &Cluster{vpc: props.Vpc}
	if err := c.Init(scope, id, c); err != nil {
		return nil, err
	}

	insights := "disabled"
	if props.ContainerInsights {
		insights = "enabled"
	}

	var err error
	c.resource, err = construct.NewCfnResource(c, "Resource", construct.CfnResourceProps{
		Type: (&cfnecs.Cluster{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"ClusterSettings": []any{map[string]any{"Name": "containerInsights", "Value": insights}},
		},
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// ClusterName returns the name of the cluster.
func (c *Cluster) ClusterName() construct.Token {
	return c.resource.Ref()
}

// ClusterArn returns the ARN of the cluster.
func (c *Cluster) ClusterArn() construct.Token {
	return c.resource.GetAtt("Arn")
}

// Vpc returns the network of the cluster.
func (c *Cluster) Vpc() *ec2.Vpc {
	return c.vpc
}

// Resource returns the underlying cluster resource.
func (c *Cluster) Resource() *construct.CfnResource {
	return c.resource
}

// TaskDefinitionProps configures a FargateTaskDefinition.
type TaskDefinitionProps struct {
	// CPU defaults to DefaultCPU.
	CPU int

	// MemoryMiB defaults to the smallest size supported for CPU.
	MemoryMiB int
}

// ContainerProps configures a container of a task.
type ContainerProps struct {
	Image        any
	Environment  map[string]any
	PortMappings []int
}

type container struct {
	name  string
	props ContainerProps
}

// FargateTaskDefinition is a task definition running on Fargate.
type FargateTaskDefinition struct {
	construct.Base

	cpu           int
	memory        int
	resource      *construct.CfnResource
	taskRole      *iam.Role
	executionRole *iam.Role
	logGroup      *logs.LogGroup
	containers    []container
}

// NewFargateTaskDefinition declares a task definition with task and execution roles.
func NewFargateTaskDefinition(scope construct.Construct, id string, props TaskDefinitionProps) (*FargateTaskDefinition, error) {
	cpu := props.CPU
	if cpu == 0 {
		cpu = DefaultCPU
	}
	memory := props.MemoryMiB
	if memory == 0 {
		var err error
		if memory, err = DefaultMemory(cpu); err != nil {
			return nil, fmt.Errorf("task definition '%s': %w", id, err)
		}
	}
	if !slices.Contains(fargateMemory[cpu], memory) {
		return nil, fmt.Errorf("%w: cpu %d with %d MiB (task definition '%s')", ErrInvalidTaskSize, cpu, memory, id)
	}

	td := &FargateTaskDefinition{cpu: cpu, memory: memory}
	if err := td.Init(scope, id, td); err != nil {
		return nil, err
	}

	var err error
	td.taskRole, err = iam.NewRole(td, "TaskRole", iam.RoleProps{AssumedBy: "ecs-tasks.amazonaws.com"})
	if err != nil {
		return nil, err
	}
	td.executionRole, err = iam.NewRole(td, "ExecutionRole", iam.RoleProps{AssumedBy: "ecs-tasks.amazonaws.com"})
	if err != nil {
		return nil, err
	}
	td.logGroup, err = logs.NewLogGroup(td, "Logs", logs.LogGroupProps{RetentionDays: 30})
	if err != nil {
		return nil, err
	}

	err = td.executionRole.AddToPolicy(iam.PolicyStatement{
		Actions:   []string{"logs:CreateLogStream", "logs:PutLogEvents"},
		Resources: []any{td.logGroup.Arn()},
	})
	if err != nil {
		return nil, err
	}

	stack, err := construct.StackOf(td)
	if err != nil {
		return nil, err
	}

	td.resource, err = construct.NewCfnResource(td, "Resource", construct.CfnResourceProps{
		Type: (&cfnecs.TaskDefinition{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"Cpu":                     fmt.Sprint(cpu),
			"Memory":                  fmt.Sprint(memory),
			"NetworkMode":             "awsvpc",
			"RequiresCompatibilities": []string{"FARGATE"},
			"TaskRoleArn":             td.taskRole.Arn(),
			"ExecutionRoleArn":        td.executionRole.Arn(),
			"ContainerDefinitions": construct.Lazy(func() (any, error) {
				return td.containerDefinitions(stack), nil
			}),
		},
	})
	if err != nil {
		return nil, err
	}
	if err := td.executionRole.DependOnPolicy(td.resource); err != nil {
		return nil, err
	}

	td.Node().AddValidation(func() error {
		if len(td.containers) == 0 {
			return fmt.Errorf("%w: task definition must have at least one container", construct.ErrInvalidConstruct)
		}
		return nil
	})

	return td, nil
}

// AddContainer adds an essential container to the task.
func (td *FargateTaskDefinition) AddContainer(name string, props ContainerProps) error {
	if props.Image == nil {
		return fmt.Errorf("%w: container '%s' requires an image", construct.ErrInvalidConstruct, name)
	}
	if slices.ContainsFunc(td.containers, func(c container) bool { return c.name == name }) {
		return fmt.Errorf("%w: container '%s' already exists", construct.ErrDuplicateID, name)
	}
	td.containers = append(td.containers, container{name: name, props: props})
	return nil
}

func (td *FargateTaskDefinition) containerDefinitions(stack *construct.Stack) []any {
	defs := make([]any, len(td.containers))
	for i, c := range td.containers {
		def := map[string]any{
			"Name":      c.name,
			"Image":     c.props.Image,
			"Essential": true,
			"LogConfiguration": map[string]any{
				"LogDriver": "awslogs",
				"Options": map[string]any{
					"awslogs-group":         td.logGroup.LogGroupName(),
					"awslogs-stream-prefix": c.name,
					"awslogs-region":        stack.Region(),
				},
			},
		}

		if len(c.props.Environment) > 0 {
			keys := make([]string, 0, len(c.props.Environment))
			for k := range c.props.Environment {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			env := make([]any, len(keys))
			for j, k := range keys {
				env[j] = map[string]any{"Name": k, "Value": c.props.Environment[k]}
			}
			def["Environment"] = env
		}

		if len(c.props.PortMappings) > 0 {
			ports := make([]any, len(c.props.PortMappings))
			for j, p := range c.props.PortMappings {
				ports[j] = map[string]any{"ContainerPort": p, "Protocol": "tcp"}
			}
			def["PortMappings"] = ports
		}

		defs[i] = def
	}
	return defs
}

// CPU returns the cpu units of the task.
func (td *FargateTaskDefinition) CPU() int {
	return td.cpu
}

// MemoryMiB returns the memory of the task.
func (td *FargateTaskDefinition) MemoryMiB() int {
	return td.memory
}

// TaskRole returns the role assumed by the containers.
func (td *FargateTaskDefinition) TaskRole() *iam.Role {
	return td.taskRole
}

// ExecutionRole returns the role used to pull images and write logs.
func (td *FargateTaskDefinition) ExecutionRole() *iam.Role {
	return td.executionRole
}

// TaskDefinitionArn returns the ARN of the task definition.
func (td *FargateTaskDefinition) TaskDefinitionArn() construct.Token {
	return td.resource.Ref()
}

// Resource returns the underlying task definition resource.
func (td *FargateTaskDefinition) Resource() *construct.CfnResource {
	return td.resource
}

// FargateServiceProps configures a FargateService.
type FargateServiceProps struct {
	Cluster        *Cluster
	TaskDefinition *FargateTaskDefinition

	// DesiredCount defaults to 1.
	DesiredCount int

	// SecurityGroup is declared by the service when nil.
	SecurityGroup *ec2.SecurityGroup
}

// FargateService runs a task definition in the isolated subnets of the cluster network.
type FargateService struct {
	construct.Base

	resource      *construct.CfnResource
	securityGroup *ec2.SecurityGroup
}

// NewFargateService declares a service.
func NewFargateService(scope construct.Construct, id string, props FargateServiceProps) (*FargateService, error) {
	if props.Cluster == nil || props.TaskDefinition == nil {
		return nil, fmt.Errorf("%w: service '%s' requires a cluster and a task definition", construct.ErrInvalidConstruct, id)
	}

	desired := props.DesiredCount
	if desired == 0 {
		desired = 1
	}

	s := &FargateService{securityGroup: props.SecurityGroup}
	if err := s.Init(scope, id, s); err != nil {
		return nil, err
	}

	var err error
	if s.securityGroup == nil {
		s.securityGroup, err = ec2.NewSecurityGroup(s, "SecurityGroup", ec2.SecurityGroupProps{Vpc: props.Cluster.Vpc()})
		if err != nil {
			return nil, err
		}
	}

	s.resource, err = construct.NewCfnResource(s, "Service", construct.CfnResourceProps{
		Type: (&cfnecs.Service{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"Cluster":        props.Cluster.ClusterName(),
			"TaskDefinition": props.TaskDefinition.TaskDefinitionArn(),
			"DesiredCount":   desired,
			"LaunchType":     "FARGATE",
			"DeploymentConfiguration": map[string]any{
				"MaximumPercent":        200,
				"MinimumHealthyPercent": 50,
			},
			"NetworkConfiguration": map[string]any{
				"AwsvpcConfiguration": map[string]any{
					"AssignPublicIp": "DISABLED",
					"Subnets":        props.Cluster.Vpc().SubnetIDs(ec2.SubnetTypeIsolated),
					"SecurityGroups": []any{s.securityGroup.GroupID()},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ServiceName returns the name of the service.
func (s *FargateService) ServiceName() construct.Token {
	return s.resource.GetAtt("Name")
}

// ServiceArn returns the ARN of the service.
func (s *FargateService) ServiceArn() construct.Token {
	return s.resource.Ref()
}

// SecurityGroup returns the security group attached to the tasks.
func (s *FargateService) SecurityGroup() *ec2.SecurityGroup {
	return s.securityGroup
}

// Resource returns the underlying service resource.
func (s *FargateService) Resource() *construct.CfnResource {
	return s.resource
}
