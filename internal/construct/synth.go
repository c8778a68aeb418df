package construct

import (
	"errors"
	"fmt"

	"github.com/engr-lynx/cicd/internal/dag"
)

// Template is a synthesized CloudFormation template.
type Template struct {
	Description string                        `json:"Description,omitempty" yaml:"Description,omitempty"`
	Resources   map[string]ResourceDefinition `json:"Resources"             yaml:"Resources"`
	Outputs     map[string]OutputDefinition   `json:"Outputs,omitempty"     yaml:"Outputs,omitempty"`
}

// ResourceDefinition is a resource entry of a template.
type ResourceDefinition struct {
	Type                string         `json:"Type"                          yaml:"Type"`
	Properties          map[string]any `json:"Properties,omitempty"          yaml:"Properties,omitempty"`
	DependsOn           []string       `json:"DependsOn,omitempty"           yaml:"DependsOn,omitempty"`
	DeletionPolicy      string         `json:"DeletionPolicy,omitempty"      yaml:"DeletionPolicy,omitempty"`
	UpdateReplacePolicy string         `json:"UpdateReplacePolicy,omitempty" yaml:"UpdateReplacePolicy,omitempty"`
}

// OutputDefinition is an output entry of a template.
type OutputDefinition struct {
	Description string        `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any           `json:"Value"                 yaml:"Value"`
	Export      *OutputExport `json:"Export,omitempty"      yaml:"Export,omitempty"`
}

// OutputExport names an exported output.
type OutputExport struct {
	Name string `json:"Name" yaml:"Name"`
}

// StackArtifact is a synthesized stack.
type StackArtifact struct {
	ID           string
	StackName    string
	DisplayName  string
	TemplateFile string
	Environment  Environment

	// Dependencies are the artifact ids of the stacks this one must be deployed after.
	Dependencies []string

	// Level is the deployment wave of the stack within its assembly, starting at 0.
	Level int

	Template *Template
}

// CloudAssembly is the synthesized output of a stage.
type CloudAssembly struct {
	// ID is empty for the root assembly.
	ID string

	// Stacks are ordered so that every stack follows its dependencies.
	Stacks []*StackArtifact

	Nested []*CloudAssembly
}

// Stack finds a stack of this assembly by artifact id or construct path.
func (a *CloudAssembly) Stack(name string) (*StackArtifact, bool) {
	for _, s := range a.Stacks {
		if s.ID == name || s.DisplayName == name {
			return s, true
		}
	}
	return nil, false
}

// AllStacks returns the stacks of this assembly followed by those of nested assemblies.
func (a *CloudAssembly) AllStacks() []*StackArtifact {
	stacks := append([]*StackArtifact{}, a.Stacks...)
	for _, n := range a.Nested {
		stacks = append(stacks, n.AllStacks()...)
	}
	return stacks
}

// Levels groups the stacks by deployment wave.
func (a *CloudAssembly) Levels() [][]*StackArtifact {
	var levels [][]*StackArtifact
	for _, s := range a.Stacks {
		for len(levels) <= s.Level {
			levels = append(levels, nil)
		}
		levels[s.Level] = append(levels[s.Level], s)
	}
	return levels
}

func synthesize(s *Stage) (*CloudAssembly, error) {
	if errs := validateStage(s); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, errors.Join(errs...))
	}

	stacks := s.Stacks()
	templates := make([]*Template, len(stacks))
	for i, st := range stacks {
		tmpl, err := st.render()
		if err != nil {
			return nil, err
		}
		templates[i] = tmpl
	}

	// Rendering any stack may register exports on the stacks it references.
	for i, st := range stacks {
		if err := st.renderExports(templates[i]); err != nil {
			return nil, err
		}
	}

	artifacts, err := orderStacks(stacks, templates)
	if err != nil {
		return nil, err
	}

	asm := &CloudAssembly{
		ID:     s.ArtifactID(),
		Stacks: artifacts,
	}

	for _, nested := range s.nestedStages() {
		n, err := nested.Synth()
		if err != nil {
			return nil, err
		}
		asm.Nested = append(asm.Nested, n)
	}

	return asm, nil
}

func validateStage(s *Stage) []error {
	var errs []error
	s.Node().walk(func(n *Node) bool {
		if n != s.Node() {
			if _, ok := n.self.(assemblyOwner); ok {
				return false
			}
		}
		errs = append(errs, n.validate()...)
		return true
	})
	return errs
}

func orderStacks(stacks []*Stack, templates []*Template) ([]*StackArtifact, error) {
	graph := dag.NewDirectedAcyclicGraph[string]()
	byID := make(map[string]*StackArtifact, len(stacks))

	for i, st := range stacks {
		if err := graph.AddVertex(st.ArtifactID(), i); err != nil {
			return nil, fmt.Errorf("%w: stack name '%s' is used more than once", ErrDuplicateID, st.ArtifactID())
		}

		art := &StackArtifact{
			ID:           st.ArtifactID(),
			StackName:    st.StackName(),
			DisplayName:  st.Node().Path(),
			TemplateFile: st.TemplateFile(),
			Environment:  st.Environment(),
			Template:     templates[i],
		}
		for _, d := range st.dependencies {
			art.Dependencies = append(art.Dependencies, d.ArtifactID())
		}
		byID[art.ID] = art
	}

	for _, st := range stacks {
		art := byID[st.ArtifactID()]
		if err := graph.AddDependencies(art.ID, art.Dependencies); err != nil {
			if cycle := dag.AsCycleError[string](err); cycle != nil {
				return nil, fmt.Errorf("%w: %w", ErrDependencyCycle, err)
			}
			return nil, err
		}
	}

	levels, err := graph.TopologicalSortLevels()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDependencyCycle, err)
	}

	var ordered []*StackArtifact
	for level, ids := range levels {
		for _, id := range ids {
			art := byID[id]
			art.Level = level
			ordered = append(ordered, art)
		}
	}

	return ordered, nil
}

func (s *Stack) render() (*Template, error) {
	rc := NewResolveContext(s)
	tmpl := &Template{
		Description: s.description,
		Resources:   map[string]ResourceDefinition{},
	}

	for _, el := range s.elements {
		switch e := el.(type) {
		case *CfnResource:
			def, err := e.render(rc)
			if err != nil {
				return nil, err
			}
			tmpl.Resources[e.logicalID] = def
		case *CfnOutput:
			def, err := e.render(rc)
			if err != nil {
				return nil, err
			}
			if tmpl.Outputs == nil {
				tmpl.Outputs = map[string]OutputDefinition{}
			}
			tmpl.Outputs[e.logicalID] = def
		}
	}

	return tmpl, nil
}

func (s *Stack) renderExports(tmpl *Template) error {
	rc := NewResolveContext(s)
	for _, id := range s.exportOrder {
		ex := s.exports[id]
		if _, exists := tmpl.Outputs[id]; exists {
			return fmt.Errorf("%w: output '%s' of stack '%s'", ErrDuplicateLogicalID, id, s.Node().Path())
		}

		v, err := Resolve(rc, ex.value)
		if err != nil {
			return err
		}

		if tmpl.Outputs == nil {
			tmpl.Outputs = map[string]OutputDefinition{}
		}
		tmpl.Outputs[id] = OutputDefinition{
			Value:  v,
			Export: &OutputExport{Name: ex.name},
		}
	}
	return nil
}
