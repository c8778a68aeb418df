package stacks

import (
	"fmt"
	"strings"

	"github.com/engr-lynx/cicd/internal/aws/apigateway"
	"github.com/engr-lynx/cicd/internal/aws/ecr"
	"github.com/engr-lynx/cicd/internal/aws/lambda"
	"github.com/engr-lynx/cicd/internal/construct"
)

// ServerlessProps configures a ServerlessStack.
type ServerlessProps struct {
	construct.StackProps

	// ImageRepoName names an existing repository holding the function image.
	ImageRepoName string
}

// ServerlessStack serves the latest image of an existing repository behind a REST API.
// It is the stack a serverless pipeline synthesizes from an architecture repository.
type ServerlessStack struct {
	*construct.Stack

	ImageRepo *ecr.Repository
	Func      *lambda.Function
	API       *apigateway.LambdaRestAPI
}

func NewServerlessStack(scope construct.Construct, id string, props ServerlessProps) (*ServerlessStack, error) {
	if strings.TrimSpace(props.ImageRepoName) == "" {
		return nil, fmt.Errorf("%w: stack '%s' requires an image repository name", construct.ErrInvalidConstruct, id)
	}

	stack, err := construct.NewStack(scope, id, props.StackProps)
	if err != nil {
		return nil, err
	}
	s := &ServerlessStack{Stack: stack}

	s.ImageRepo, err = ecr.FromRepositoryName(s, "ImageRepo", props.ImageRepoName)
	if err != nil {
		return nil, err
	}
	s.Func, err = lambda.NewFunction(s, "LambdaObj", lambda.FunctionProps{
		Code: lambda.ImageCode{Repository: s.ImageRepo},
	})
	if err != nil {
		return nil, err
	}
	s.API, err = apigateway.NewLambdaRestAPI(s, "Serverless", apigateway.LambdaRestAPIProps{
		Handler:           s.Func,
		AuthorizationType: apigateway.AuthorizationNone,
	})
	if err != nil {
		return nil, err
	}

	if _, err := construct.NewCfnOutput(s, "URL", construct.OutputProps{Value: s.API.URL()}); err != nil {
		return nil, err
	}

	return s, nil
}
