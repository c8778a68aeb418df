package stacks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/aws/ecs"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
)

func TestNewCdnStack(t *testing.T) {
	t.Parallel()

	app := newApp()
	site, err := NewCdnStack(app, "Site", construct.StackProps{Env: construct.Environment{Region: "us-east-1"}})
	require.NoError(t, err)
	require.NotNil(t, site.SourceBucket)
	require.NotNil(t, site.Distribution)
	require.Equal(t, "us-east-1", site.Environment().Region)
	require.Equal(t, testEnv.Account, site.Environment().Account)

	tmpl := synthStack(t, app, "Site").Template
	require.Len(t, resourcesOfType(tmpl, "AWS::S3::Bucket"), 1)
	require.Len(t, resourcesOfType(tmpl, "AWS::S3::BucketPolicy"), 1)
	require.Len(t, resourcesOfType(tmpl, "AWS::CloudFront::CloudFrontOriginAccessIdentity"), 1)
	require.Len(t, resourcesOfType(tmpl, "AWS::CloudFront::Distribution"), 1)
	require.Contains(t, tmpl.Outputs, "URL")
}

func TestNewPipelineCacheStack(t *testing.T) {
	t.Parallel()

	app := newApp()
	cache, err := NewPipelineCacheStack(app, "SitePipelineCache", construct.StackProps{})
	require.NoError(t, err)
	require.NotNil(t, cache.Bucket)

	tmpl := synthStack(t, app, "SitePipelineCache").Template
	require.Len(t, tmpl.Resources, 1)
	require.Len(t, resourcesOfType(tmpl, "AWS::S3::Bucket"), 1)
}

func TestNewNetworkStacks(t *testing.T) {
	t.Parallel()

	app := newApp()
	network, err := NewNetworkStack(app, "Network", construct.StackProps{})
	require.NoError(t, err)
	require.NotNil(t, network.Vpc)

	cluster, err := NewNetworkClusterStack(app, "ServiceNetwork", construct.StackProps{})
	require.NoError(t, err)
	require.NotNil(t, cluster.Vpc)
	require.NotNil(t, cluster.Cluster)
	require.Same(t, cluster.Vpc, cluster.Cluster.Vpc())

	asm, err := app.Synth()
	require.NoError(t, err)

	art, ok := asm.Stack("Network")
	require.True(t, ok)
	require.Len(t, resourcesOfType(art.Template, "AWS::EC2::VPC"), 1)
	require.Empty(t, resourcesOfType(art.Template, "AWS::ECS::Cluster"))

	art, ok = asm.Stack("ServiceNetwork")
	require.True(t, ok)
	require.Len(t, resourcesOfType(art.Template, "AWS::EC2::VPC"), 1)
	require.Len(t, resourcesOfType(art.Template, "AWS::ECS::Cluster"), 1)
}

func TestNewSlsContStack(t *testing.T) {
	t.Parallel()

	app := newApp()
	network, err := NewNetworkClusterStack(app, "ServiceNetwork", construct.StackProps{})
	require.NoError(t, err)

	svc, err := NewSlsContStack(app, "ServiceApp", SlsContProps{Vpc: network.Vpc})
	require.NoError(t, err)
	require.NotNil(t, svc.ImageRepo)
	require.NotNil(t, svc.Func)
	require.NotNil(t, svc.API)

	asm, err := app.Synth()
	require.NoError(t, err)
	art, ok := asm.Stack("ServiceApp")
	require.True(t, ok)
	require.Contains(t, art.Dependencies, "ServiceNetwork")

	tmpl := art.Template
	require.Len(t, resourcesOfType(tmpl, "AWS::ECR::Repository"), 1)
	require.Len(t, resourcesOfType(tmpl, "AWS::ApiGateway::RestApi"), 1)
	require.Len(t, resourcesOfType(tmpl, "AWS::Logs::LogGroup"), 1)
	require.Contains(t, tmpl.Outputs, "URL")

	funcs := resourcesOfType(tmpl, "AWS::Lambda::Function")
	require.Len(t, funcs, 1)
	require.Equal(t, "Image", funcs[0].Properties["PackageType"])
	require.Contains(t, funcs[0].Properties, "VpcConfig")

	logGroup := resourcesOfType(tmpl, "AWS::Logs::LogGroup")[0]
	require.EqualValues(t, 1, logGroup.Properties["RetentionInDays"])
}

func TestNewSlsContStack_RequiresVpc(t *testing.T) {
	t.Parallel()

	_, err := NewSlsContStack(newApp(), "ServiceApp", SlsContProps{})
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)
}

func TestNewDbContStack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cpu        int
		wantCPU    string
		wantMemory string
	}{
		{name: "default size", cpu: context.DefaultDbCPU, wantCPU: "256", wantMemory: "512"},
		{name: "larger task", cpu: 1024, wantCPU: "1024", wantMemory: "2048"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			app := newApp()
			network, err := NewNetworkClusterStack(app, "ServiceNetwork", construct.StackProps{})
			require.NoError(t, err)

			db, err := NewDbContStack(app, "ServiceDb", DbContProps{
				DbProps: context.DbProps{CPU: tc.cpu},
				Cluster: network.Cluster,
			})
			require.NoError(t, err)
			require.Equal(t, tc.cpu, db.DbTask.CPU())
			require.Same(t, network.Cluster, db.Cluster)

			tmpl := synthStack(t, app, "ServiceDb").Template
			require.Len(t, resourcesOfType(tmpl, "AWS::ECS::Service"), 1)
			require.Len(t, resourcesOfType(tmpl, "AWS::ECR::Repository"), 1)

			tasks := resourcesOfType(tmpl, "AWS::ECS::TaskDefinition")
			require.Len(t, tasks, 1)
			require.Equal(t, tc.wantCPU, tasks[0].Properties["Cpu"])
			require.Equal(t, tc.wantMemory, tasks[0].Properties["Memory"])

			containers := tasks[0].Properties["ContainerDefinitions"].([]any)
			require.Len(t, containers, 1)
			container := containers[0].(map[string]any)
			require.Equal(t, DbContainerName, container["Name"])
			require.Equal(t, "mcr.microsoft.com/mssql/server", container["Image"])
		})
	}
}

func TestNewDbContStack_Errors(t *testing.T) {
	t.Parallel()

	app := newApp()
	_, err := NewDbContStack(app, "NoCluster", DbContProps{DbProps: context.DbProps{CPU: 256}})
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)

	network, err := NewNetworkClusterStack(app, "ServiceNetwork", construct.StackProps{})
	require.NoError(t, err)
	_, err = NewDbContStack(app, "BadSize", DbContProps{DbProps: context.DbProps{CPU: 300}, Cluster: network.Cluster})
	require.ErrorIs(t, err, ecs.ErrInvalidTaskSize)
}

func TestNewServerlessStack(t *testing.T) {
	t.Parallel()

	app := newApp()
	sls, err := NewServerlessStack(app, SlsStackID, ServerlessProps{ImageRepoName: "orders"})
	require.NoError(t, err)
	require.Nil(t, sls.ImageRepo.Resource())

	art := synthStack(t, app, SlsStackID)
	require.Equal(t, "Sls.template.json", art.TemplateFile)
	require.Empty(t, resourcesOfType(art.Template, "AWS::ECR::Repository"))

	funcs := resourcesOfType(art.Template, "AWS::Lambda::Function")
	require.Len(t, funcs, 1)
	require.Equal(t, "Image", funcs[0].Properties["PackageType"])
	require.Len(t, resourcesOfType(art.Template, "AWS::ApiGateway::RestApi"), 1)
	require.Contains(t, art.Template.Outputs, "URL")

	_, err = NewServerlessStack(newApp(), SlsStackID, ServerlessProps{})
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)
}
