package construct

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Deletion policies supported by CloudFormation.
const (
	DeletionPolicyDelete = "Delete"
	DeletionPolicyRetain = "Retain"
)

// CfnResource is a single CloudFormation resource.
type CfnResource struct {
	Base

	stack          *Stack
	logicalID      string
	resourceType   string
	properties     map[string]any
	dependsOn      []*CfnResource
	deletionPolicy string
}

// CfnResourceProps configures a CfnResource.
type CfnResourceProps struct {
	// Type is the CloudFormation resource type, e.g. AWS::S3::Bucket.
	Type string

	// Properties may contain tokens, which are resolved at synthesis.
	Properties map[string]any
}

// PropertyValue converts a typed property, such as a goformation property type, to the generic
// form held by resources. Fields with json tags "-" are dropped.
func PropertyValue(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvable, err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvable, err)
	}
	return out, nil
}

// NewCfnResource declares a resource under scope, which must be within a stack.
func NewCfnResource(scope Construct, id string, props CfnResourceProps) (*CfnResource, error) {
	if !strings.Contains(props.Type, "::") {
		return nil, fmt.Errorf("%w: resource '%s' has invalid type '%s'", ErrInvalidConstruct, id, props.Type)
	}

	r := &CfnResource{
		resourceType: props.Type,
		properties:   map[string]any{},
	}
	for k, v := range props.Properties {
		r.properties[k] = v
	}

	if err := r.Init(scope, id, r); err != nil {
		return nil, err
	}

	stack, err := StackOf(r)
	if err != nil {
		return nil, err
	}
	r.stack = stack

	r.logicalID, err = stack.register(r, pathBelow(stack, r.Node()))
	if err != nil {
		return nil, err
	}

	return r, nil
}

// LogicalID returns the id of the resource within its template.
func (r *CfnResource) LogicalID() string {
	return r.logicalID
}

// Type returns the CloudFormation resource type.
func (r *CfnResource) Type() string {
	return r.resourceType
}

// Stack returns the stack the resource belongs to.
func (r *CfnResource) Stack() *Stack {
	return r.stack
}

// Ref returns a token resolving to the Ref of the resource.
func (r *CfnResource) Ref() Token {
	return &reference{target: r}
}

// GetAtt returns a token resolving to an attribute of the resource.
func (r *CfnResource) GetAtt(attribute string) Token {
	return &reference{target: r, attribute: attribute}
}

// SetProperty sets a top-level property, replacing any previous value.
func (r *CfnResource) SetProperty(key string, value any) {
	r.properties[key] = value
}

// Property returns a top-level property.
func (r *CfnResource) Property(key string) (any, bool) {
	v, ok := r.properties[key]
	return v, ok
}

// SetDeletionPolicy sets the deletion and update-replace policy of the resource.
func (r *CfnResource) SetDeletionPolicy(policy string) {
	r.deletionPolicy = policy
}

// AddDependsOn makes r depend on other. A resource of another stack turns into a stack dependency.
func (r *CfnResource) AddDependsOn(other *CfnResource) error {
	if other == nil || other == r {
		return nil
	}
	if other.stack != r.stack {
		return r.stack.AddDependency(other.stack)
	}
	if !slices.Contains(r.dependsOn, other) {
		r.dependsOn = append(r.dependsOn, other)
	}
	return nil
}

func (r *CfnResource) render(rc *ResolveContext) (ResourceDefinition, error) {
	props, err := Resolve(rc, r.properties)
	if err != nil {
		return ResourceDefinition{}, fmt.Errorf("resource '%s': %w", r.Node().Path(), err)
	}

	def := ResourceDefinition{
		Type:                r.resourceType,
		DeletionPolicy:      r.deletionPolicy,
		UpdateReplacePolicy: r.deletionPolicy,
	}
	if m, ok := props.(map[string]any); ok && len(m) > 0 {
		def.Properties = m
	}

	for _, d := range r.dependsOn {
		def.DependsOn = append(def.DependsOn, d.logicalID)
	}
	slices.Sort(def.DependsOn)

	return def, nil
}

// OutputProps configures a stack output.
type OutputProps struct {
	Value       any
	Description string

	// ExportName publishes the value for cross-stack imports under the given name.
	ExportName string
}

// CfnOutput is a value published by a stack.
type CfnOutput struct {
	Base

	logicalID string
	props     OutputProps
}

// NewCfnOutput declares an output under scope, which must be within a stack.
func NewCfnOutput(scope Construct, id string, props OutputProps) (*CfnOutput, error) {
	if props.Value == nil {
		return nil, fmt.Errorf("%w: output '%s' requires a value", ErrInvalidConstruct, id)
	}

	o := &CfnOutput{props: props}
	if err := o.Init(scope, id, o); err != nil {
		return nil, err
	}

	stack, err := StackOf(o)
	if err != nil {
		return nil, err
	}

	o.logicalID, err = stack.register(o, pathBelow(stack, o.Node()))
	if err != nil {
		return nil, err
	}

	return o, nil
}

// LogicalID returns the id of the output within its template.
func (o *CfnOutput) LogicalID() string {
	return o.logicalID
}

func (o *CfnOutput) render(rc *ResolveContext) (OutputDefinition, error) {
	v, err := Resolve(rc, o.props.Value)
	if err != nil {
		return OutputDefinition{}, fmt.Errorf("output '%s': %w", o.Node().Path(), err)
	}

	def := OutputDefinition{
		Description: o.props.Description,
		Value:       v,
	}
	if o.props.ExportName != "" {
		def.Export = &OutputExport{Name: o.props.ExportName}
	}
	return def, nil
}
