package stacks

import (
	"github.com/engr-lynx/cicd/internal/aws/ec2"
	"github.com/engr-lynx/cicd/internal/aws/ecs"
	"github.com/engr-lynx/cicd/internal/construct"
)

// NetworkStack holds a VPC shared by the stacks of a stage.
type NetworkStack struct {
	*construct.Stack

	Vpc *ec2.Vpc
}

func NewNetworkStack(scope construct.Construct, id string, props construct.StackProps) (*NetworkStack, error) {
	stack, err := construct.NewStack(scope, id, props)
	if err != nil {
		return nil, err
	}
	s := &NetworkStack{Stack: stack}

	s.Vpc, err = ec2.NewVpc(s, "Vpc", ec2.VpcProps{})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// NetworkClusterStack holds a VPC and an ECS cluster running in it.
type NetworkClusterStack struct {
	*construct.Stack

	Vpc     *ec2.Vpc
	Cluster *ecs.Cluster
}

func NewNetworkClusterStack(scope construct.Construct, id string, props construct.StackProps) (*NetworkClusterStack, error) {
	stack, err := construct.NewStack(scope, id, props)
	if err != nil {
		return nil, err
	}
	s := &NetworkClusterStack{Stack: stack}

	s.Vpc, err = ec2.NewVpc(s, "Vpc", ec2.VpcProps{})
	if err != nil {
		return nil, err
	}

	s.Cluster, err = ecs.NewCluster(s, "Cluster", ecs.ClusterProps{Vpc: s.Vpc})
	if err != nil {
		return nil, err
	}

	return s, nil
}
