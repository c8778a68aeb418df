// Package stacks declares the resource and pipeline stacks of the architecture.
package stacks

import (
	"github.com/engr-lynx/cicd/internal/aws/cloudfront"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
)

// CdnStack serves the content of a bucket through a distribution.
type CdnStack struct {
	*construct.Stack

	SourceBucket *s3.Bucket
	Distribution *cloudfront.Distribution
}

// NewCdnStack declares the source bucket, the distribution and a URL output.
func NewCdnStack(scope construct.Construct, id string, props construct.StackProps) (*CdnStack, error) {
	stack, err := construct.NewStack(scope, id, props)
	if err != nil {
		return nil, err
	}
	s := &CdnStack{Stack: stack}

	s.SourceBucket, err = s3.NewBucket(s, "Bucket", s3.BucketProps{})
	if err != nil {
		return nil, err
	}

	s.Distribution, err = cloudfront.NewDistribution(s, "Distribution", cloudfront.DistributionProps{
		Origin: s.SourceBucket,
		ErrorResponses: []cloudfront.ErrorResponse{
			{HTTPStatus: 403, ResponseHTTPStatus: 200, ResponsePagePath: "/index.html"},
			{HTTPStatus: 404, ResponseHTTPStatus: 200, ResponsePagePath: "/index.html"},
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = construct.NewCfnOutput(s, "URL", construct.OutputProps{
		Value: construct.Join("", "https://", s.Distribution.DomainName(), "/"),
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// PipelineCacheStack holds the build caches of pipelines.
type PipelineCacheStack struct {
	*construct.Stack

	Bucket *s3.Bucket
}

// NewPipelineCacheStack declares the cache bucket.
func NewPipelineCacheStack(scope construct.Construct, id string, props construct.StackProps) (*PipelineCacheStack, error) {
	stack, err := construct.NewStack(scope, id, props)
	if err != nil {
		return nil, err
	}
	s := &PipelineCacheStack{Stack: stack}

	s.Bucket, err = s3.NewBucket(s, "Bucket", s3.BucketProps{})
	if err != nil {
		return nil, err
	}

	return s, nil
}
