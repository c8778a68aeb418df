// Package cloudfront declares content delivery distributions in front of buckets.
package cloudfront

import (
	"fmt"

	cfncloudfront "github.com/awslabs/goformation/v7/cloudformation/cloudfront"

	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
)

// CachePolicyCachingOptimized is the id of the managed CachingOptimized cache policy.
const CachePolicyCachingOptimized = "658327ea-f89d-4fab-a63d-7e88639e58f6"

const originID = "origin1"

// Price classes.
const (
	PriceClass100 = "PriceClass_100"
	PriceClass200 = "PriceClass_200"
	PriceClassAll = "PriceClass_All"
)

// ErrorResponse rewrites an origin error, e.g. to serve a single page application.
type ErrorResponse struct {
	HTTPStatus         int
	ResponseHTTPStatus int
	ResponsePagePath   string
}

// DistributionProps configures a Distribution.
type DistributionProps struct {
	// Origin is the bucket served by the distribution. Read access is granted to an origin access identity.
	Origin *s3.Bucket

	// DefaultRootObject defaults to index.html.
	DefaultRootObject string

	// PriceClass defaults to PriceClass100.
	PriceClass string

	Comment        string
	ErrorResponses []ErrorResponse
}

// Distribution is a CloudFront distribution with a single S3 origin.
type Distribution struct {
	construct.Base

	resource *construct.CfnResource
	identity *construct.CfnResource
}

// NewDistribution declares a distribution and the origin access identity it reads the bucket with.
func NewDistribution(scope construct.Construct, id string, props DistributionProps) (*Distribution, error) {
	if props.Origin == nil {
		return nil, fmt.Errorf("%w: distribution '%s' requires an origin bucket", construct.ErrInvalidConstruct, id)
	}

	d := &Distribution{}
	if err := d.Init(scope, id, d); err != nil {
		return nil, err
	}

	var err error
	d.identity, err = construct.NewCfnResource(d, "OriginAccessIdentity", construct.CfnResourceProps{
		Type: (&cfncloudfront.CloudFrontOriginAccessIdentity{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"CloudFrontOriginAccessIdentityConfig": map[string]any{
				"Comment": fmt.Sprintf("Identity for %s", d.Node().Path()),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	err = props.Origin.AddToResourcePolicy(iam.PolicyStatement{
		Actions:    []string{"s3:GetObject"},
		Resources:  []any{props.Origin.ArnForObjects("*")},
		Principals: map[string]any{"CanonicalUser": d.identity.GetAtt("S3CanonicalUserId")},
	})
	if err != nil {
		return nil, err
	}

	rootObject := props.DefaultRootObject
	if rootObject == "" {
		rootObject = "index.html"
	}
	priceClass := props.PriceClass
	if priceClass == "" {
		priceClass = PriceClass100
	}

	config := map[string]any{
		"Enabled":           true,
		"DefaultRootObject": rootObject,
		"HttpVersion":       "http2",
		"IPV6Enabled":       true,
		"PriceClass":        priceClass,
		"Origins": []any{
			map[string]any{
				"Id":         originID,
				"DomainName": props.Origin.RegionalDomainName(),
				"S3OriginConfig": map[string]any{
					"OriginAccessIdentity": construct.Join("", "origin-access-identity/cloudfront/", d.identity.Ref()),
				},
			},
		},
		"DefaultCacheBehavior": map[string]any{
			"TargetOriginId":       originID,
			"ViewerProtocolPolicy": "redirect-to-https",
			"CachePolicyId":        CachePolicyCachingOptimized,
			"Compress":             true,
		},
	}
	if props.Comment != "" {
		config["Comment"] = props.Comment
	}
	if len(props.ErrorResponses) > 0 {
		responses := make([]any, len(props.ErrorResponses))
		for i, r := range props.ErrorResponses {
			responses[i] = map[string]any{
				"ErrorCode":        r.HTTPStatus,
				"ResponseCode":     r.ResponseHTTPStatus,
				"ResponsePagePath": r.ResponsePagePath,
			}
		}
		config["CustomErrorResponses"] = responses
	}

	d.resource, err = construct.NewCfnResource(d, "Resource", construct.CfnResourceProps{
		Type:       (&cfncloudfront.Distribution{}).AWSCloudFormationType(),
		Properties: map[string]any{"DistributionConfig": config},
	})
	if err != nil {
		return nil, err
	}

	return d, nil
}

// DistributionID returns the id of the distribution.
func (d *Distribution) DistributionID() construct.Token {
	return d.resource.Ref()
}

// DomainName returns the domain name of the distribution.
func (d *Distribution) DomainName() construct.Token {
	return d.resource.GetAtt("DomainName")
}

// Arn returns the ARN of the distribution. Distributions are global, the ARN has no region.
func (d *Distribution) Arn() construct.Token {
	return construct.FormatArn(d.resource.Stack(), construct.ArnComponents{
		Service:      "cloudfront",
		Resource:     "distribution",
		ResourceName: d.DistributionID(),
		OmitRegion:   true,
	})
}

// Resource returns the underlying distribution resource.
func (d *Distribution) Resource() *construct.CfnResource {
	return d.resource
}

// Identity returns the origin access identity resource.
func (d *Distribution) Identity() *construct.CfnResource {
	return d.identity
}
