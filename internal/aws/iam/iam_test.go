package iam

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/construct"
)

func TestRole(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{})
	stack, err := construct.NewStack(app, "Stack", construct.StackProps{})
	require.NoError(t, err)

	role, err := NewRole(stack, "Role", RoleProps{
		AssumedBy:       "lambda.amazonaws.com",
		ManagedPolicies: []string{"service-role/AWSLambdaBasicExecutionRole"},
	})
	require.NoError(t, err)
	require.Nil(t, role.Policy())

	require.NoError(t, role.AddToPolicy(PolicyStatement{
		Actions:   []string{"cloudfront:CreateInvalidation"},
		Resources: []any{"arn:aws:cloudfront::123:distribution/E1"},
	}))
	require.NoError(t, role.AddToPolicy(PolicyStatement{Actions: []string{"s3:GetObject", "s3:List*"}}))
	require.Error(t, role.AddToPolicy(PolicyStatement{}))
	require.NotNil(t, role.Policy())

	asm, err := app.Synth()
	require.NoError(t, err)

	resources := asm.Stacks[0].Template.Resources
	require.Len(t, resources, 2)

	roleDef := resources[role.Resource().LogicalID()]
	require.Equal(t, "AWS::IAM::Role", roleDef.Type)
	require.Equal(t, []any{map[string]any{"Fn::Join": []any{"", []any{
		"arn:",
		map[string]any{"Ref": "AWS::Partition"},
		":iam::aws:policy/service-role/AWSLambdaBasicExecutionRole",
	}}}}, roleDef.Properties["ManagedPolicyArns"])

	policyDef := resources[role.Policy().LogicalID()]
	require.Equal(t, "AWS::IAM::Policy", policyDef.Type)
	require.Equal(t, role.Policy().LogicalID(), policyDef.Properties["PolicyName"])
	require.Equal(t, map[string]any{
		"Version": "2012-10-17",
		"Statement": []any{
			map[string]any{
				"Effect":   "Allow",
				"Action":   "cloudfront:CreateInvalidation",
				"Resource": "arn:aws:cloudfront::123:distribution/E1",
			},
			map[string]any{
				"Effect": "Allow",
				"Action": []any{"s3:GetObject", "s3:List*"},
			},
		},
	}, policyDef.Properties["PolicyDocument"])
}

func TestNewRole_RequiresPrincipal(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{})
	stack, err := construct.NewStack(app, "Stack", construct.StackProps{})
	require.NoError(t, err)

	_, err = NewRole(stack, "Role", RoleProps{})
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)
}
