// Package apigateway declares REST APIs proxying to Lambda functions.
package apigateway

import (
	"fmt"

	cfnapigateway "github.com/awslabs/goformation/v7/cloudformation/apigateway"

	"github.com/engr-lynx/cicd/internal/aws/lambda"
	"github.com/engr-lynx/cicd/internal/construct"
)

// AuthorizationNone leaves the API methods open.
const AuthorizationNone = "NONE"

// LambdaRestAPIProps configures a LambdaRestAPI.
type LambdaRestAPIProps struct {
	Handler *lambda.Function

	// StageName defaults to prod.
	StageName string

	// AuthorizationType defaults to AuthorizationNone.
	AuthorizationType string

	Description string
}

// LambdaRestAPI is a REST API sending every request to a single function.
type LambdaRestAPI struct {
	construct.Base

	api       *construct.CfnResource
	stage     *construct.CfnResource
	stageName string
}

// NewLambdaRestAPI declares the API, its greedy proxy resource, a deployment and a stage.
func NewLambdaRestAPI(scope construct.Construct, id string, props LambdaRestAPIProps) (*LambdaRestAPI, error) {
	if props.Handler == nil {
		return nil, fmt.Errorf("%w: api '%s' requires a handler", construct.ErrInvalidConstruct, id)
	}

	stageName := props.StageName
	if stageName == "" {
		stageName = "prod"
	}
	auth := props.AuthorizationType
	if auth == "" {
		auth = AuthorizationNone
	}

	a := &LambdaRestAPI{stageName: stageName}
	if err := a.Init(scope, id, a); err != nil {
		return nil, err
	}

	stack, err := construct.StackOf(a)
	if err != nil {
		return nil, err
	}

	apiProps := map[string]any{"Name": id}
	if props.Description != "" {
		apiProps["Description"] = props.Description
	}
	a.api, err = construct.NewCfnResource(a, "Resource", construct.CfnResourceProps{
		Type:       (&cfnapigateway.RestApi{}).AWSCloudFormationType(),
		Properties: apiProps,
	})
	if err != nil {
		return nil, err
	}

	proxy, err := construct.NewCfnResource(a, "Proxy", construct.CfnResourceProps{
		Type: (&cfnapigateway.Resource{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"ParentId":  a.api.GetAtt("RootResourceId"),
			"PathPart":  "{proxy+}",
			"RestApiId": a.api.Ref(),
		},
	})
	if err != nil {
		return nil, err
	}

	integrationURI := construct.Join("",
		"arn:", stack.Partition(), ":apigateway:", stack.Region(),
		":lambda:path/2015-03-31/functions/", props.Handler.FunctionArn(), "/invocations",
	)

	var methods []*construct.CfnResource
	for _, m := range []struct {
		id         string
		resourceID any
		path       string
	}{
		{id: "RootANY", resourceID: a.api.GetAtt("RootResourceId"), path: "/"},
		{id: "ProxyANY", resourceID: proxy.Ref(), path: "/*"},
	} {
		method, err := construct.NewCfnResource(a, m.id, construct.CfnResourceProps{
			Type: (&cfnapigateway.Method{}).AWSCloudFormationType(),
			Properties: map[string]any{
				"HttpMethod":        "ANY",
				"ResourceId":        m.resourceID,
				"RestApiId":         a.api.Ref(),
				"AuthorizationType": auth,
				"Integration": map[string]any{
					"IntegrationHttpMethod": "POST",
					"Type":                  "AWS_PROXY",
					"Uri":                   integrationURI,
				},
			},
		})
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)

		_, err = props.Handler.AddPermission(a.Node().ID()+m.id+"Permission", lambda.PermissionProps{
			Principal: "apigateway.amazonaws.com",
			SourceArn: construct.Join("",
				"arn:", stack.Partition(), ":execute-api:", stack.Region(), ":", stack.Account(), ":",
				a.api.Ref(), "/", stageName, "/*", m.path,
			),
		})
		if err != nil {
			return nil, err
		}
	}

	deployment, err := construct.NewCfnResource(a, "Deployment", construct.CfnResourceProps{
		Type: (&cfnapigateway.Deployment{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"RestApiId":   a.api.Ref(),
			"Description": "Automatically created by the RestApi construct",
		},
	})
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		if err := deployment.AddDependsOn(m); err != nil {
			return nil, err
		}
	}

	a.stage, err = construct.NewCfnResource(a, "DeploymentStage", construct.CfnResourceProps{
		Type: (&cfnapigateway.Stage{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"RestApiId":    a.api.Ref(),
			"DeploymentId": deployment.Ref(),
			"StageName":    stageName,
		},
	})
	if err != nil {
		return nil, err
	}

	if _, err := construct.NewCfnOutput(a, "Endpoint", construct.OutputProps{Value: a.URL()}); err != nil {
		return nil, err
	}

	return a, nil
}

// RestAPIID returns the id of the API.
func (a *LambdaRestAPI) RestAPIID() construct.Token {
	return a.api.Ref()
}

// URL returns the invoke URL of the deployment stage.
func (a *LambdaRestAPI) URL() construct.Token {
	stack := a.api.Stack()
	return construct.Join("",
		"https://", a.api.Ref(), ".execute-api.", stack.Region(), ".", stack.URLSuffix(), "/", a.stageName, "/",
	)
}

// Resource returns the underlying rest api resource.
func (a *LambdaRestAPI) Resource() *construct.CfnResource {
	return a.api
}
