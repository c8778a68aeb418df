package stacks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/pipeline"
)

// testDeployStage declares a network, a service depending on it and a site in us-east-1.
func testDeployStage(scope construct.Construct, id string) (*construct.Stage, error) {
	stage, err := construct.NewStage(scope, id, construct.StageProps{})
	if err != nil {
		return nil, err
	}
	network, err := NewNetworkStack(stage, "Network", construct.StackProps{})
	if err != nil {
		return nil, err
	}
	if _, err := NewSlsContStack(stage, "App", SlsContProps{Vpc: network.Vpc}); err != nil {
		return nil, err
	}
	if _, err := NewCdnStack(stage, "Site", usEast1); err != nil {
		return nil, err
	}
	return stage, nil
}

func TestNewRepoCloudPipelineStack(t *testing.T) {
	t.Parallel()

	app := newApp()
	s, err := NewRepoCloudPipelineStack(app, "ArchiPipeline", RepoCloudPipelineProps{
		RepoProps:   archiRepo,
		StageProps:  context.StageProps{EnableApproval: true},
		DeployStage: testDeployStage,
	})
	require.NoError(t, err)
	require.Equal(t, "ArchiPipeline-ArchiDeploy", s.DeployStage.Name())
	require.Equal(t, []string{"Source", "Build", "Approval", "Deploy"}, s.Pipeline.StageNames())
	require.Equal(t, []string{"Synth"}, s.Pipeline.ActionNames("Build"))
	require.Equal(t, []string{"us-east-1"}, s.SupportRegions())

	asm, err := app.Synth()
	require.NoError(t, err)
	require.Len(t, asm.Nested, 1)
	require.Equal(t, "assembly-ArchiPipeline-ArchiDeploy", asm.Nested[0].ID)
	require.Len(t, asm.Nested[0].Stacks, 3)

	support, ok := asm.Stack("ArchiPipeline-support-us-east-1")
	require.True(t, ok)
	require.Equal(t, "us-east-1", support.Environment.Region)
	buckets := resourcesOfType(support.Template, "AWS::S3::Bucket")
	require.Len(t, buckets, 1)
	require.Equal(t, "archipipeline-us-east-1-replication", buckets[0].Properties["BucketName"])

	art, ok := asm.Stack("ArchiPipeline")
	require.True(t, ok)
	require.Contains(t, art.Dependencies, support.ID)

	byName := map[string]map[string]any{}
	for _, a := range pipelineActions(t, art.Template)["Deploy"] {
		byName[a["Name"].(string)] = a
	}
	require.Len(t, byName, 3)

	tests := []struct {
		name     string
		runOrder int
		region   string
	}{
		{name: "ArchiPipeline-ArchiDeploy-Network", runOrder: 1},
		{name: "ArchiPipeline-ArchiDeploy-App", runOrder: 2},
		{name: "ArchiPipeline-ArchiDeploy-Site", runOrder: 1, region: "us-east-1"},
	}
	for _, tc := range tests {
		action, ok := byName[tc.name]
		require.True(t, ok, tc.name)
		require.EqualValues(t, tc.runOrder, action["RunOrder"], tc.name)

		config := action["Configuration"].(map[string]any)
		require.Equal(t, tc.name, config["StackName"])
		require.Equal(t, "CdkOutput::assembly-ArchiPipeline-ArchiDeploy/"+tc.name+".template.json", config["TemplatePath"])

		if tc.region == "" {
			require.NotContains(t, action, "Region", tc.name)
		} else {
			require.Equal(t, tc.region, action["Region"], tc.name)
		}
	}

	pipelines := resourcesOfType(art.Template, "AWS::CodePipeline::Pipeline")
	require.Len(t, pipelines, 1)
	require.Equal(t, true, pipelines[0].Properties["RestartExecutionOnUpdate"])
	require.Contains(t, pipelines[0].Properties, "ArtifactStores")
}

func TestNewRepoCloudPipelineStack_SingleRegion(t *testing.T) {
	t.Parallel()

	app := newApp()
	s, err := NewRepoCloudPipelineStack(app, "ArchiPipeline", RepoCloudPipelineProps{
		RepoProps:     archiRepo,
		DeployStageID: "Deploy",
		DeployStage: func(scope construct.Construct, id string) (*construct.Stage, error) {
			stage, err := construct.NewStage(scope, id, construct.StageProps{})
			if err != nil {
				return nil, err
			}
			_, err = NewNetworkStack(stage, "Network", construct.StackProps{})
			return stage, err
		},
	})
	require.NoError(t, err)
	require.Empty(t, s.SupportRegions())
	require.Equal(t, []string{"Source", "Build", "Deploy"}, s.Pipeline.StageNames())
	require.Equal(t, []string{"ArchiPipeline-Deploy-Network"}, s.Pipeline.ActionNames("Deploy"))

	asm, err := app.Synth()
	require.NoError(t, err)
	require.Len(t, asm.Stacks, 1)
}

func TestNewRepoCloudPipelineStack_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewRepoCloudPipelineStack(newApp(), "ArchiPipeline", RepoCloudPipelineProps{RepoProps: archiRepo})
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)

	_, err = NewRepoCloudPipelineStack(newApp(), "ArchiPipeline", RepoCloudPipelineProps{
		RepoProps: archiRepo,
		DeployStage: func(scope construct.Construct, id string) (*construct.Stage, error) {
			return construct.NewStage(scope, id, construct.StageProps{})
		},
	})
	require.ErrorIs(t, err, pipeline.ErrMissingDeployAction)
}

func TestReplicationBucketName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stackName string
		region    string
		want      string
	}{
		{name: "lowercased", stackName: "ArchiPipeline", region: "eu-west-1", want: "archipipeline-eu-west-1-replication"},
		{name: "invalid characters dropped", stackName: "Archi_Pipeline", region: "eu-west-1", want: "archipipeline-eu-west-1-replication"},
		{
			name:      "truncated from the front",
			stackName: "AVeryLongPipelineStackNameThatKeepsGoingAndGoing",
			region:    "ap-southeast-2",
			want:      "elinestacknamethatkeepsgoingandgoing-ap-southeast-2-replication",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := replicationBucketName(tc.stackName, tc.region)
			require.Equal(t, tc.want, got)
			require.LessOrEqual(t, len(got), maxBucketNameLength)
		})
	}
}
