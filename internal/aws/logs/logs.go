// Package logs declares CloudWatch log groups.
package logs

import (
	"errors"
	"fmt"
	"slices"

	cfnlogs "github.com/awslabs/goformation/v7/cloudformation/logs"

	"github.com/engr-lynx/cicd/internal/construct"
)

// ErrInvalidRetention indicates a retention period CloudWatch does not offer.
var ErrInvalidRetention = errors.New("invalid log retention")

// DefaultRetentionDays is used when a log group does not set a retention.
const DefaultRetentionDays = 731

var retentionDays = []int{1, 3, 5, 7, 14, 30, 60, 90, 120, 150, 180, 365, 400, 545, 731, 1096, 1827, 2192, 2557, 2922, 3288, 3653}

// LogGroupProps configures a LogGroup.
type LogGroupProps struct {
	// LogGroupName may be a token. A generated name is used when nil.
	LogGroupName any

	// RetentionDays defaults to DefaultRetentionDays.
	RetentionDays int
}

// LogGroup is a CloudWatch log group.
type LogGroup struct {
	construct.Base

	resource *construct.CfnResource
}

// NewLogGroup declares a log group.
func NewLogGroup(scope construct.Construct, id string, props LogGroupProps) (*LogGroup, error) {
	days := props.RetentionDays
	if days == 0 {
		days = DefaultRetentionDays
	}
	if !slices.Contains(retentionDays, days) {
		return nil, fmt.Errorf("%w: %d days (log group '%s')", ErrInvalidRetention, days, id)
	}

	g := &LogGroup{}
	if err := g.Init(scope, id, g); err != nil {
		return nil, err
	}

	properties := map[string]any{"RetentionInDays": days}
	if props.LogGroupName != nil {
		properties["LogGroupName"] = props.LogGroupName
	}

	var err error
	g.resource, err = construct.NewCfnResource(g, "Resource", construct.CfnResourceProps{
		Type:       (&cfnlogs.LogGroup{}).AWSCloudFormationType(),
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}
	g.resource.SetDeletionPolicy(construct.DeletionPolicyRetain)

	return g, nil
}

// LogGroupName returns the name of the log group.
func (g *LogGroup) LogGroupName() construct.Token {
	return g.resource.Ref()
}

// Arn returns the ARN of the log group.
func (g *LogGroup) Arn() construct.Token {
	return g.resource.GetAtt("Arn")
}

// Resource returns the underlying log group resource.
func (g *LogGroup) Resource() *construct.CfnResource {
	return g.resource
}
