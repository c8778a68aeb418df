package stacks

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/ecr"
	"github.com/engr-lynx/cicd/internal/aws/ecs"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
)

const (
	// DbContainerName is the container of database tasks, as listed in image definitions.
	DbContainerName = "Cont"

	dbImage = "mcr.microsoft.com/mssql/server"
	dbPort  = 1433
)

// DbContProps configures a DbContStack.
type DbContProps struct {
	construct.StackProps

	DbProps context.DbProps
	Cluster *ecs.Cluster
}

// DbContStack runs a database container as a Fargate service.
// ImageRepo receives the images built by the database pipeline.
type DbContStack struct {
	*construct.Stack

	ImageRepo *ecr.Repository
	DbTask    *ecs.FargateTaskDefinition
	Service   *ecs.FargateService
	Cluster   *ecs.Cluster
}

// NewDbContStack declares the task, sized by DbProps, and the service running it on the cluster.
func NewDbContStack(scope construct.Construct, id string, props DbContProps) (*DbContStack, error) {
	if props.Cluster == nil {
		return nil, fmt.Errorf("%w: stack '%s' requires a cluster", construct.ErrInvalidConstruct, id)
	}

	stack, err := construct.NewStack(scope, id, props.StackProps)
	if err != nil {
		return nil, err
	}
	s := &DbContStack{Stack: stack, Cluster: props.Cluster}

	s.ImageRepo, err = ecr.NewRepository(s, "ImageRepo", ecr.RepositoryProps{MaxImageCount: imageRetention})
	if err != nil {
		return nil, err
	}

	s.DbTask, err = ecs.NewFargateTaskDefinition(s, "TaskDef", ecs.TaskDefinitionProps{CPU: props.DbProps.CPU})
	if err != nil {
		return nil, err
	}
	if err := s.ImageRepo.GrantPull(s.DbTask.ExecutionRole()); err != nil {
		return nil, err
	}
	if err := s.DbTask.AddContainer(DbContainerName, ecs.ContainerProps{
		Image:        dbImage,
		PortMappings: []int{dbPort},
	}); err != nil {
		return nil, err
	}

	s.Service, err = ecs.NewFargateService(s, "Service", ecs.FargateServiceProps{
		Cluster:        props.Cluster,
		TaskDefinition: s.DbTask,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
