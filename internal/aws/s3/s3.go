// Package s3 declares storage buckets.
package s3

import (
	"github.com/awslabs/goformation/v7/cloudformation"
	cfns3 "github.com/awslabs/goformation/v7/cloudformation/s3"

	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/construct"
)

var (
	readActions  = []string{"s3:GetObject*", "s3:GetBucket*", "s3:List*"}
	writeActions = []string{"s3:DeleteObject*", "s3:PutObject", "s3:PutObjectLegalHold", "s3:PutObjectRetention", "s3:PutObjectTagging", "s3:PutObjectVersionTagging", "s3:Abort*"}
)

// BucketProps configures a Bucket.
type BucketProps struct {
	// BucketName is the physical name. A generated name is used when empty.
	BucketName string

	Versioned bool

	// Retain keeps the bucket when it is removed from its stack.
	Retain bool
}

// Bucket is an encrypted bucket that blocks public access.
type Bucket struct {
	construct.Base

	name     string
	resource *construct.CfnResource
	policy   *construct.CfnResource
	stmts    []iam.PolicyStatement
}

// NewBucket declares a bucket.
func NewBucket(scope construct.Construct, id string, props BucketProps) (*Bucket, error) {
	b := &Bucket{name: props.BucketName}
	if err := b.Init(scope, id, b); err != nil {
		return nil, err
	}

	encryption, err := construct.PropertyValue(&cfns3.Bucket_BucketEncryption{
		ServerSideEncryptionConfiguration: []cfns3.Bucket_ServerSideEncryptionRule{
			{ServerSideEncryptionByDefault: &cfns3.Bucket_ServerSideEncryptionByDefault{SSEAlgorithm: "AES256"}},
		},
	})
	if err != nil {
		return nil, err
	}
	publicAccess, err := construct.PropertyValue(&cfns3.Bucket_PublicAccessBlockConfiguration{
		BlockPublicAcls:       cloudformation.Bool(true),
		BlockPublicPolicy:     cloudformation.Bool(true),
		IgnorePublicAcls:      cloudformation.Bool(true),
		RestrictPublicBuckets: cloudformation.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	properties := map[string]any{
		"BucketEncryption":               encryption,
		"PublicAccessBlockConfiguration": publicAccess,
	}
	if props.BucketName != "" {
		properties["BucketName"] = props.BucketName
	}
	if props.Versioned {
		versioning, err := construct.PropertyValue(&cfns3.Bucket_VersioningConfiguration{Status: "Enabled"})
		if err != nil {
			return nil, err
		}
		properties["VersioningConfiguration"] = versioning
	}

	b.resource, err = construct.NewCfnResource(b, "Resource", construct.CfnResourceProps{
		Type:       (&cfns3.Bucket{}).AWSCloudFormationType(),
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}

	if props.Retain {
		b.resource.SetDeletionPolicy(construct.DeletionPolicyRetain)
	} else {
		b.resource.SetDeletionPolicy(construct.DeletionPolicyDelete)
	}

	return b, nil
}

// BucketName returns the name of the bucket. Named buckets return the literal name.
func (b *Bucket) BucketName() any {
	if b.name != "" {
		return b.name
	}
	return b.resource.Ref()
}

// Arn returns the ARN of the bucket.
func (b *Bucket) Arn() any {
	if b.name != "" {
		return construct.Join("", "arn:", construct.Pseudo(construct.AwsPartition), ":s3:::", b.name)
	}
	return b.resource.GetAtt("Arn")
}

// ArnForObjects returns the ARN of the objects matching pattern, e.g. "*".
func (b *Bucket) ArnForObjects(pattern string) construct.Token {
	return construct.Join("", b.Arn(), "/", pattern)
}

// RegionalDomainName returns the regional domain name of the bucket.
func (b *Bucket) RegionalDomainName() construct.Token {
	return b.resource.GetAtt("RegionalDomainName")
}

// Resource returns the underlying bucket resource.
func (b *Bucket) Resource() *construct.CfnResource {
	return b.resource
}

// Policy returns the bucket policy resource, nil until a statement is added.
func (b *Bucket) Policy() *construct.CfnResource {
	return b.policy
}

// GrantRead allows role to read objects.
func (b *Bucket) GrantRead(role *iam.Role) error {
	return b.grant(role, readActions)
}

// GrantReadWrite allows role to read, write and delete objects.
func (b *Bucket) GrantReadWrite(role *iam.Role) error {
	return b.grant(role, append(append([]string{}, readActions...), writeActions...))
}

func (b *Bucket) grant(role *iam.Role, actions []string) error {
	return role.AddToPolicy(iam.PolicyStatement{
		Actions:   actions,
		Resources: []any{b.Arn(), b.ArnForObjects("*")},
	})
}

// AddToResourcePolicy adds a statement to the bucket policy, declaring the policy on first use.
func (b *Bucket) AddToResourcePolicy(statement iam.PolicyStatement) error {
	if b.policy == nil {
		policy, err := construct.NewCfnResource(b, "Policy", construct.CfnResourceProps{
			Type: (&cfns3.BucketPolicy{}).AWSCloudFormationType(),
			Properties: map[string]any{
				"Bucket": b.resource.Ref(),
				"PolicyDocument": iam.PolicyDocument(func() []iam.PolicyStatement {
					return b.stmts
				}),
			},
		})
		if err != nil {
			return err
		}
		b.policy = policy
	}

	b.stmts = append(b.stmts, statement)
	return nil
}
