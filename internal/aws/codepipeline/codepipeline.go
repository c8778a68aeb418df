// Package codepipeline declares pipelines made of stages of actions.
package codepipeline

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	cfncodepipeline "github.com/awslabs/goformation/v7/cloudformation/codepipeline"

	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
)

// ErrInvalidPipeline indicates a pipeline the managed service would reject.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// ActionCategory groups actions by what they do.
type ActionCategory string

const (
	CategorySource   ActionCategory = "Source"
	CategoryBuild    ActionCategory = "Build"
	CategoryTest     ActionCategory = "Test"
	CategoryApproval ActionCategory = "Approval"
	CategoryDeploy   ActionCategory = "Deploy"
	CategoryInvoke   ActionCategory = "Invoke"
)

// Action owners.
const (
	OwnerAWS        = "AWS"
	OwnerThirdParty = "ThirdParty"
)

var artifactNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,100}$`)

// Artifact is a named bundle of files passed between actions.
// An artifact without a name is named after the action producing it.
type Artifact struct {
	name string
}

// NewArtifact returns an artifact; name may be empty.
func NewArtifact(name string) *Artifact {
	return &Artifact{name: name}
}

// Name returns the artifact name, empty until the producing action is added to a pipeline.
func (a *Artifact) Name() string {
	return a.name
}

// NameToken returns a token resolving to the artifact name at synthesis.
func (a *Artifact) NameToken() construct.Token {
	return construct.Lazy(func() (any, error) {
		if a.name == "" {
			return nil, fmt.Errorf("%w: artifact is not produced by any action", ErrInvalidPipeline)
		}
		return a.name, nil
	})
}

// AtPath returns a reference to a file within the artifact, e.g. for template paths.
func (a *Artifact) AtPath(file string) construct.Token {
	return construct.Join("::", a.NameToken(), file)
}

// ActionProperties describe an action independently of the pipeline it belongs to.
type ActionProperties struct {
	ActionName string
	Category   ActionCategory
	Owner      string
	Provider   string

	// Version defaults to "1".
	Version string

	Inputs  []*Artifact
	Outputs []*Artifact

	// RunOrder defaults to 1. Actions of a stage with the same run order run in parallel.
	RunOrder int

	// Region runs the action in another region than the pipeline.
	Region string
}

// ActionBindOptions are handed to actions when they are added to a pipeline.
type ActionBindOptions struct {
	// Role is the pipeline role. Actions add the permissions they need to it.
	Role *iam.Role

	// Bucket is the artifact store of the pipeline.
	Bucket *s3.Bucket

	StageName string
}

// ActionConfig is the provider specific configuration returned by Bind.
type ActionConfig struct {
	Configuration map[string]any

	// RoleArn is assumed to run the action instead of the pipeline role.
	RoleArn any
}

// Action is a single step of a pipeline stage.
type Action interface {
	ActionProperties() ActionProperties

	// Bind declares the resources and permissions the action needs within scope.
	Bind(scope construct.Construct, opts ActionBindOptions) (ActionConfig, error)
}

// StageProps describe a stage of a pipeline.
type StageProps struct {
	StageName string
	Actions   []Action
}

type boundAction struct {
	props  ActionProperties
	config ActionConfig
}

type stage struct {
	name    string
	actions []boundAction
}

// PipelineProps configures a Pipeline.
type PipelineProps struct {
	PipelineName string
	Stages       []StageProps

	RestartExecutionOnUpdate bool

	// ArtifactBucket is declared by the pipeline when nil.
	ArtifactBucket *s3.Bucket

	// CrossRegionArtifactBuckets maps a region to the name of the artifact bucket used by
	// actions in that region. Actions in other regions than the pipeline's need an entry.
	CrossRegionArtifactBuckets map[string]string
}

// Pipeline is a CodePipeline pipeline.
type Pipeline struct {
	construct.Base

	resource    *construct.CfnResource
	role        *iam.Role
	bucket      *s3.Bucket
	stages      []*stage
	crossRegion map[string]string
}

// NewPipeline declares a pipeline, its role and, unless given, its artifact bucket.
func NewPipeline(scope construct.Construct, id string, props PipelineProps) (*Pipeline, error) {
	p := &Pipeline{bucket: props.ArtifactBucket, crossRegion: map[string]string{}}
	for region, name := range props.CrossRegionArtifactBuckets {
		p.crossRegion[region] = name
	}

	if err := p.Init(scope, id, p); err != nil {
		return nil, err
	}

	var err error
	if p.bucket == nil {
		p.bucket, err = s3.NewBucket(p, "ArtifactsBucket", s3.BucketProps{Retain: true})
		if err != nil {
			return nil, err
		}
	}

	p.role, err = iam.NewRole(p, "Role", iam.RoleProps{AssumedBy: "codepipeline.amazonaws.com"})
	if err != nil {
		return nil, err
	}
	if err := p.bucket.GrantReadWrite(p.role); err != nil {
		return nil, err
	}

	properties := map[string]any{
		"RoleArn":                  p.role.Arn(),
		"Stages":                   construct.Lazy(p.renderStages),
		"RestartExecutionOnUpdate": props.RestartExecutionOnUpdate,
	}
	if props.PipelineName != "" {
		properties["Name"] = props.PipelineName
	}

	p.resource, err = construct.NewCfnResource(p, "Resource", construct.CfnResourceProps{
		Type:       (&cfncodepipeline.Pipeline{}).AWSCloudFormationType(),
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}
	p.resource.SetProperty("ArtifactStore", construct.Lazy(p.renderArtifactStore(false)))
	p.resource.SetProperty("ArtifactStores", construct.Lazy(p.renderArtifactStore(true)))

	p.Node().AddValidation(func() error {
		if err := p.role.DependOnPolicy(p.resource); err != nil {
			return err
		}
		return p.Validate()
	})

	for _, s := range props.Stages {
		if err := p.AddStage(s); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// AddStage binds the actions of s and appends the stage.
func (p *Pipeline) AddStage(s StageProps) error {
	if strings.TrimSpace(s.StageName) == "" {
		return fmt.Errorf("%w: stage name cannot be empty", ErrInvalidPipeline)
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("%w: stage '%s' has no actions", ErrInvalidPipeline, s.StageName)
	}

	st := &stage{name: s.StageName}
	scope, err := p.stageScope(s.StageName)
	if err != nil {
		return err
	}

	for _, action := range s.Actions {
		props := action.ActionProperties()
		if props.Version == "" {
			props.Version = "1"
		}
		if props.RunOrder == 0 {
			props.RunOrder = 1
		}

		for _, out := range props.Outputs {
			if out.name == "" {
				out.name = sanitizeArtifactName("Artifact_" + s.StageName + "_" + props.ActionName)
			}
		}

		if props.Region != "" {
			if err := p.requireRegion(props.Region); err != nil {
				return fmt.Errorf("action '%s' of stage '%s': %w", props.ActionName, s.StageName, err)
			}
		}

		config, err := action.Bind(scope, ActionBindOptions{Role: p.role, Bucket: p.bucket, StageName: s.StageName})
		if err != nil {
			return fmt.Errorf("binding action '%s' of stage '%s': %w", props.ActionName, s.StageName, err)
		}

		st.actions = append(st.actions, boundAction{props: props, config: config})
	}

	p.stages = append(p.stages, st)
	return nil
}

func (p *Pipeline) stageScope(name string) (construct.Construct, error) {
	id := sanitizeArtifactName(name)
	if c, ok := p.Node().TryFindChild(id); ok {
		return c, nil
	}
	return newScope(p, id)
}

func (p *Pipeline) requireRegion(region string) error {
	if region == p.resource.Stack().Environment().Region {
		return nil
	}
	name, ok := p.crossRegion[region]
	if !ok {
		return fmt.Errorf("%w: no artifact bucket for region '%s'", ErrInvalidPipeline, region)
	}

	arn := construct.Join("", "arn:", construct.Pseudo(construct.AwsPartition), ":s3:::", name)
	return p.role.AddToPolicy(iam.PolicyStatement{
		Actions:   []string{"s3:GetObject*", "s3:GetBucket*", "s3:List*", "s3:PutObject", "s3:Abort*"},
		Resources: []any{arn, construct.Join("", arn, "/*")},
	})
}

// crossRegionInUse returns the regions of actions running outside the pipeline region.
func (p *Pipeline) crossRegionInUse() []string {
	home := p.resource.Stack().Environment().Region
	var regions []string
	for _, st := range p.stages {
		for _, a := range st.actions {
			if a.props.Region != "" && a.props.Region != home && !slices.Contains(regions, a.props.Region) {
				regions = append(regions, a.props.Region)
			}
		}
	}
	slices.Sort(regions)
	return regions
}

func (p *Pipeline) renderArtifactStore(multiRegion bool) func() (any, error) {
	return func() (any, error) {
		regions := p.crossRegionInUse()
		home := map[string]any{"Type": "S3", "Location": p.bucket.BucketName()}

		if len(regions) == 0 {
			if multiRegion {
				return nil, nil
			}
			return home, nil
		}
		if !multiRegion {
			return nil, nil
		}

		stores := []any{map[string]any{"Region": p.resource.Stack().Region(), "ArtifactStore": home}}
		for _, r := range regions {
			stores = append(stores, map[string]any{
				"Region":        r,
				"ArtifactStore": map[string]any{"Type": "S3", "Location": p.crossRegion[r]},
			})
		}
		return stores, nil
	}
}

func (p *Pipeline) renderStages() (any, error) {
	stages := make([]any, len(p.stages))
	for i, st := range p.stages {
		actions := make([]any, len(st.actions))
		for j, a := range st.actions {
			action := map[string]any{
				"Name": a.props.ActionName,
				"ActionTypeId": map[string]any{
					"Category": string(a.props.Category),
					"Owner":    a.props.Owner,
					"Provider": a.props.Provider,
					"Version":  a.props.Version,
				},
				"RunOrder": a.props.RunOrder,
			}
			if len(a.config.Configuration) > 0 {
				action["Configuration"] = a.config.Configuration
			}
			if len(a.props.Inputs) > 0 {
				action["InputArtifacts"] = artifactRefs(a.props.Inputs)
			}
			if len(a.props.Outputs) > 0 {
				action["OutputArtifacts"] = artifactRefs(a.props.Outputs)
			}
			if a.config.RoleArn != nil {
				action["RoleArn"] = a.config.RoleArn
			}
			if a.props.Region != "" {
				action["Region"] = a.props.Region
			}
			actions[j] = action
		}
		stages[i] = map[string]any{"Name": st.name, "Actions": actions}
	}
	return stages, nil
}

func artifactRefs(artifacts []*Artifact) []any {
	refs := make([]any, len(artifacts))
	for i, a := range artifacts {
		refs[i] = map[string]any{"Name": a.NameToken()}
	}
	return refs
}

// Validate checks the rules the managed service enforces on pipeline structure.
func (p *Pipeline) Validate() error {
	var errs []error

	if len(p.stages) < 2 {
		errs = append(errs, fmt.Errorf("%w: pipeline must have at least two stages", ErrInvalidPipeline))
	}

	stageNames := map[string]struct{}{}
	produced := map[*Artifact]struct{}{}
	outputNames := map[string]struct{}{}

	for i, st := range p.stages {
		if _, dup := stageNames[st.name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate stage name '%s'", ErrInvalidPipeline, st.name))
		}
		stageNames[st.name] = struct{}{}

		actionNames := map[string]struct{}{}
		// Outputs of an action are visible to later run orders only.
		order := slices.Clone(st.actions)
		slices.SortStableFunc(order, func(a, b boundAction) int { return a.props.RunOrder - b.props.RunOrder })

		pending := map[*Artifact]struct{}{}
		lastOrder := 0
		for _, a := range order {
			if a.props.RunOrder != lastOrder {
				for art := range pending {
					produced[art] = struct{}{}
				}
				clear(pending)
				lastOrder = a.props.RunOrder
			}

			name := a.props.ActionName
			if _, dup := actionNames[name]; dup {
				errs = append(errs, fmt.Errorf("%w: duplicate action name '%s' in stage '%s'", ErrInvalidPipeline, name, st.name))
			}
			actionNames[name] = struct{}{}

			isSource := a.props.Category == CategorySource
			if i == 0 && !isSource {
				errs = append(errs, fmt.Errorf("%w: first stage '%s' may only contain source actions, found '%s'", ErrInvalidPipeline, st.name, name))
			}
			if i > 0 && isSource {
				errs = append(errs, fmt.Errorf("%w: source action '%s' must be in the first stage", ErrInvalidPipeline, name))
			}
			if isSource && len(a.props.Inputs) > 0 {
				errs = append(errs, fmt.Errorf("%w: source action '%s' cannot have inputs", ErrInvalidPipeline, name))
			}

			for _, in := range a.props.Inputs {
				if _, ok := produced[in]; !ok {
					errs = append(errs, fmt.Errorf(
						"%w: input artifact '%s' of action '%s' is not produced by an earlier action",
						ErrInvalidPipeline, in.name, name,
					))
				}
			}

			for _, out := range a.props.Outputs {
				if !artifactNamePattern.MatchString(out.name) {
					errs = append(errs, fmt.Errorf("%w: invalid artifact name '%s'", ErrInvalidPipeline, out.name))
				}
				if _, dup := outputNames[out.name]; dup {
					errs = append(errs, fmt.Errorf("%w: artifact '%s' is produced more than once", ErrInvalidPipeline, out.name))
				}
				outputNames[out.name] = struct{}{}
				pending[out] = struct{}{}
			}
		}
		for art := range pending {
			produced[art] = struct{}{}
		}
	}

	return errors.Join(errs...)
}

// StageNames returns the names of the stages in order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.name
	}
	return names
}

// ActionNames returns the names of the actions of the named stage in order.
func (p *Pipeline) ActionNames(stageName string) []string {
	for _, st := range p.stages {
		if st.name != stageName {
			continue
		}
		names := make([]string, len(st.actions))
		for i, a := range st.actions {
			names[i] = a.props.ActionName
		}
		return names
	}
	return nil
}

// Role returns the role of the pipeline.
func (p *Pipeline) Role() *iam.Role {
	return p.role
}

// ArtifactBucket returns the artifact store of the pipeline.
func (p *Pipeline) ArtifactBucket() *s3.Bucket {
	return p.bucket
}

// PipelineName returns the name of the pipeline.
func (p *Pipeline) PipelineName() construct.Token {
	return p.resource.Ref()
}

// PipelineArn returns the ARN of the pipeline.
func (p *Pipeline) PipelineArn() construct.Token {
	stack := p.resource.Stack()
	return construct.Join("",
		"arn:", stack.Partition(), ":codepipeline:", stack.Region(), ":", stack.Account(), ":", p.resource.Ref(),
	)
}

// Resource returns the underlying pipeline resource.
func (p *Pipeline) Resource() *construct.CfnResource {
	return p.resource
}

func sanitizeArtifactName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// scope is a plain construct grouping the resources declared by the actions of one stage.
type scope struct {
	construct.Base
}

func newScope(parent construct.Construct, id string) (*scope, error) {
	s := &scope{}
	if err := s.Init(parent, id, s); err != nil {
		return nil, err
	}
	return s, nil
}
