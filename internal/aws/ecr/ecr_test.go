package ecr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/construct"
)

func TestRepository(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{})
	stack, err := construct.NewStack(app, "App", construct.StackProps{})
	require.NoError(t, err)

	repo, err := NewRepository(stack, "ImageRepo", RepositoryProps{ScanOnPush: true, MaxImageCount: 5})
	require.NoError(t, err)
	role, err := iam.NewRole(stack, "Role", iam.RoleProps{AssumedBy: "codebuild.amazonaws.com"})
	require.NoError(t, err)
	require.NoError(t, repo.GrantPullPush(role))
	require.Len(t, role.Statements(), 2)
	require.Equal(t, AuthorizationTokenStatement(), role.Statements()[1])

	asm, err := app.Synth()
	require.NoError(t, err)

	props := asm.Stacks[0].Template.Resources[repo.Resource().LogicalID()].Properties
	require.Equal(t, map[string]any{"ScanOnPush": true}, props["ImageScanningConfiguration"])
	require.Equal(t,
		`{"rules":[{"action":{"type":"expire"},"rulePriority":1,"selection":{"countNumber":5,"countType":"imageCountMoreThan","tagStatus":"untagged"}}]}`,
		props["LifecyclePolicy"].(map[string]any)["LifecyclePolicyText"],
	)

	uri, err := construct.Resolve(nil, repo.RepositoryURIForTag("latest"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"Fn::Join": []any{"", []any{
		map[string]any{"Fn::GetAtt": []any{repo.Resource().LogicalID(), "RepositoryUri"}},
		":latest",
	}}}, uri)
}

func TestFromRepositoryName(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{Env: construct.Environment{Account: "123456789012", Region: "us-west-2"}})
	stack, err := construct.NewStack(app, "Sls", construct.StackProps{})
	require.NoError(t, err)

	_, err = FromRepositoryName(stack, "Missing", " ")
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)

	repo, err := FromRepositoryName(stack, "ImageRepo", "orders")
	require.NoError(t, err)
	require.Nil(t, repo.Resource())
	require.Equal(t, "orders", repo.RepositoryName())

	uri, err := construct.Resolve(nil, repo.RepositoryURIForTag("latest"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"Fn::Join": []any{"", []any{
		"123456789012.dkr.ecr.us-west-2.",
		map[string]any{"Ref": construct.AwsURLSuffix},
		"/orders:latest",
	}}}, uri)
}
