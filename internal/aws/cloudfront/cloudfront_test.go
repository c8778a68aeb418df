package cloudfront

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
)

func TestDistribution(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{})
	stack, err := construct.NewStack(app, "Site", construct.StackProps{})
	require.NoError(t, err)
	bucket, err := s3.NewBucket(stack, "Bucket", s3.BucketProps{})
	require.NoError(t, err)

	dist, err := NewDistribution(stack, "Distribution", DistributionProps{
		Origin:         bucket,
		ErrorResponses: []ErrorResponse{{HTTPStatus: 404, ResponseHTTPStatus: 200, ResponsePagePath: "/index.html"}},
	})
	require.NoError(t, err)

	asm, err := app.Synth()
	require.NoError(t, err)
	resources := asm.Stacks[0].Template.Resources
	require.Len(t, resources, 4)

	config := resources[dist.Resource().LogicalID()].Properties["DistributionConfig"].(map[string]any)
	require.Equal(t, "index.html", config["DefaultRootObject"])
	require.Equal(t, PriceClass100, config["PriceClass"])
	require.Equal(t, CachePolicyCachingOptimized, config["DefaultCacheBehavior"].(map[string]any)["CachePolicyId"])
	require.Equal(t, []any{map[string]any{
		"ErrorCode":        404,
		"ResponseCode":     200,
		"ResponsePagePath": "/index.html",
	}}, config["CustomErrorResponses"])

	origin := config["Origins"].([]any)[0].(map[string]any)
	require.Equal(t, map[string]any{"Fn::GetAtt": []any{bucket.Resource().LogicalID(), "RegionalDomainName"}}, origin["DomainName"])

	policy := resources[bucket.Policy().LogicalID()]
	statement := policy.Properties["PolicyDocument"].(map[string]any)["Statement"].([]any)[0].(map[string]any)
	require.Equal(t, map[string]any{
		"CanonicalUser": map[string]any{"Fn::GetAtt": []any{dist.Identity().LogicalID(), "S3CanonicalUserId"}},
	}, statement["Principal"])

	arn, err := construct.Resolve(construct.NewResolveContext(stack), dist.Arn())
	require.NoError(t, err)
	require.Equal(t, map[string]any{"Fn::Join": []any{"", []any{
		"arn:",
		map[string]any{"Ref": "AWS::Partition"},
		":cloudfront::",
		map[string]any{"Ref": "AWS::AccountId"},
		":distribution/",
		map[string]any{"Ref": dist.Resource().LogicalID()},
	}}}, arn)
}

func TestDistribution_RequiresOrigin(t *testing.T) {
	t.Parallel()

	app := construct.NewApp(construct.AppProps{})
	stack, err := construct.NewStack(app, "Site", construct.StackProps{})
	require.NoError(t, err)

	_, err = NewDistribution(stack, "Distribution", DistributionProps{})
	require.ErrorIs(t, err, construct.ErrInvalidConstruct)
}
