package stacks

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/apigateway"
	"github.com/engr-lynx/cicd/internal/aws/ec2"
	"github.com/engr-lynx/cicd/internal/aws/ecr"
	"github.com/engr-lynx/cicd/internal/aws/lambda"
	"github.com/engr-lynx/cicd/internal/construct"
)

// imageRetention is the number of untagged images kept by application image repositories.
const imageRetention = 10

// SlsContProps configures a SlsContStack.
type SlsContProps struct {
	construct.StackProps

	Vpc *ec2.Vpc
}

// SlsContStack runs a container image function behind a REST API.
type SlsContStack struct {
	*construct.Stack

	ImageRepo *ecr.Repository
	Func      *lambda.Function
	API       *apigateway.LambdaRestAPI
}

// NewSlsContStack declares the image repository, the function running its latest image and the API in front of it.
func NewSlsContStack(scope construct.Construct, id string, props SlsContProps) (*SlsContStack, error) {
	if props.Vpc == nil {
		return nil, fmt.Errorf("%w: stack '%s' requires a vpc", construct.ErrInvalidConstruct, id)
	}

	stack, err := construct.NewStack(scope, id, props.StackProps)
	if err != nil {
		return nil, err
	}
	s := &SlsContStack{Stack: stack}

	s.ImageRepo, err = ecr.NewRepository(s, "ImageRepo", ecr.RepositoryProps{
		ScanOnPush:    true,
		MaxImageCount: imageRetention,
	})
	if err != nil {
		return nil, err
	}

	s.Func, err = lambda.NewFunction(s, "Func", lambda.FunctionProps{
		Code:             lambda.ImageCode{Repository: s.ImageRepo},
		Vpc:              props.Vpc,
		LogRetentionDays: 1,
	})
	if err != nil {
		return nil, err
	}

	s.API, err = apigateway.NewLambdaRestAPI(s, "SlsCont", apigateway.LambdaRestAPIProps{
		Handler:           s.Func,
		AuthorizationType: apigateway.AuthorizationNone,
	})
	if err != nil {
		return nil, err
	}

	_, err = construct.NewCfnOutput(s, "URL", construct.OutputProps{Value: s.API.URL()})
	if err != nil {
		return nil, err
	}

	return s, nil
}
