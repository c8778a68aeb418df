package construct

import (
	"fmt"
	"slices"
	"strings"
)

// Stack is the unit of deployment: it synthesizes into one template.
type Stack struct {
	Base

	env         Environment
	stackName   string
	description string

	elements     []element
	logicalIDs   map[string]string
	exports      map[string]*export
	exportOrder  []string
	dependencies []*Stack
}

// StackProps configures a Stack.
type StackProps struct {
	// Env overrides the environment inherited from the enclosing stage.
	Env Environment

	// StackName overrides the name derived from the construct path.
	StackName string

	Description string
}

// element is a template entry (resource or output) owned by a stack.
type element interface {
	Construct
	LogicalID() string
}

type export struct {
	outputID string
	name     string
	value    Token
}

// NewStack creates a Stack under scope. Stacks cannot be nested within other stacks.
func NewStack(scope Construct, id string, props StackProps) (*Stack, error) {
	if scope != nil && scope.Node() != nil {
		if parent, _ := enclosingStack(scope.Node()); parent != nil {
			return nil, fmt.Errorf("%w: stack '%s' cannot be nested within stack '%s'", ErrInvalidConstruct, id, parent.Node().Path())
		}
	}

	s := &Stack{
		env:         props.Env,
		description: props.Description,
		logicalIDs:  map[string]string{},
		exports:     map[string]*export{},
	}
	if err := s.Init(scope, id, s); err != nil {
		return nil, err
	}

	s.stackName = props.StackName
	if s.stackName == "" {
		s.stackName = s.defaultStackName()
	}

	return s, nil
}

func (s *Stack) defaultStackName() string {
	var components []string
	for n := s.Node(); n != nil; n = n.scope {
		if _, ok := n.self.(assemblyOwner); ok {
			break
		}
		components = append(components, n.id)
	}
	slices.Reverse(components)

	if name := s.Stage().Name(); name != "" {
		components = append([]string{name}, components...)
	}

	return strings.Join(components, "-")
}

// StackName returns the deployed name of the stack.
func (s *Stack) StackName() string {
	return s.stackName
}

// ArtifactID returns the identifier of the stack within its cloud assembly.
func (s *Stack) ArtifactID() string {
	return s.stackName
}

// TemplateFile returns the file name of the synthesized template.
func (s *Stack) TemplateFile() string {
	return s.ArtifactID() + ".template.json"
}

// Stage returns the stage whose cloud assembly contains the stack.
func (s *Stack) Stage() *Stage {
	return StageOf(s)
}

// Environment returns the environment of the stack, with empty fields inherited from the stage.
func (s *Stack) Environment() Environment {
	env := s.env
	if st := s.Stage(); st != nil {
		env = env.inherit(st.Environment())
	}
	return env
}

// Region returns the concrete region, or the region pseudo parameter when unknown.
func (s *Stack) Region() any {
	if r := s.Environment().Region; r != "" {
		return r
	}
	return Pseudo(AwsRegion)
}

// Account returns the concrete account, or the account pseudo parameter when unknown.
func (s *Stack) Account() any {
	if a := s.Environment().Account; a != "" {
		return a
	}
	return Pseudo(AwsAccountID)
}

// Partition returns the partition pseudo parameter.
func (s *Stack) Partition() any {
	return Pseudo(AwsPartition)
}

// URLSuffix returns the URL suffix pseudo parameter.
func (s *Stack) URLSuffix() any {
	return Pseudo(AwsURLSuffix)
}

// AddDependency makes s deploy after target. Both stacks must belong to the same stage.
func (s *Stack) AddDependency(target *Stack) error {
	if target == nil || target == s {
		return nil
	}
	if target.Stage() != s.Stage() {
		return fmt.Errorf(
			"%w: stack '%s' cannot depend on stack '%s' of another stage",
			ErrCrossStageReference,
			s.Node().Path(),
			target.Node().Path(),
		)
	}
	if slices.Contains(s.dependencies, target) {
		return nil
	}
	s.dependencies = append(s.dependencies, target)
	return nil
}

// Dependencies returns the stacks s depends on, in the order they were added.
func (s *Stack) Dependencies() []*Stack {
	return slices.Clone(s.dependencies)
}

func (s *Stack) register(el element, path []string) (string, error) {
	logicalID := makeUniqueID(path)
	if owner, exists := s.logicalIDs[logicalID]; exists {
		return "", fmt.Errorf("%w: '%s' is used by '%s' and '%s'", ErrDuplicateLogicalID, logicalID, owner, el.Node().Path())
	}
	s.logicalIDs[logicalID] = el.Node().Path()
	s.elements = append(s.elements, el)
	return logicalID, nil
}

// exportValue registers an export of the referenced value and returns its export name.
func (s *Stack) exportValue(ref *reference) string {
	attr := ref.attribute
	kind := "FnGetAtt"
	if attr == "" {
		kind = "Ref"
	}

	outputID := "ExportsOutput" + kind + ref.target.LogicalID() + removeNonAlphanumeric(attr)
	if ex, ok := s.exports[outputID]; ok {
		return ex.name
	}

	ex := &export{
		outputID: outputID,
		name:     s.stackName + ":" + outputID,
		value:    ref.local(),
	}
	s.exports[outputID] = ex
	s.exportOrder = append(s.exportOrder, outputID)
	return ex.name
}

// importReference wires a reference to a resource of another stack through an export.
func (s *Stack) importReference(ref *reference) (any, error) {
	producer := ref.target.stack

	if producer.Stage() != s.Stage() {
		return nil, fmt.Errorf(
			"%w: '%s' references '%s'",
			ErrCrossStageReference,
			s.Node().Path(),
			ref.target.Node().Path(),
		)
	}

	if !producer.Environment().compatible(s.Environment()) {
		return nil, fmt.Errorf(
			"%w: stack '%s' (%s) references '%s' (%s)",
			ErrCrossEnvironmentReference,
			s.Node().Path(),
			s.Environment(),
			ref.target.Node().Path(),
			producer.Environment(),
		)
	}

	name := producer.exportValue(ref)
	if err := s.AddDependency(producer); err != nil {
		return nil, err
	}

	return map[string]any{"Fn::ImportValue": name}, nil
}

// StackOf returns the stack enclosing c.
func StackOf(c Construct) (*Stack, error) {
	if c == nil || c.Node() == nil {
		return nil, ErrNoStack
	}
	if s, ok := c.(*Stack); ok {
		return s, nil
	}
	s, boundary := enclosingStack(c.Node())
	if s == nil {
		return nil, fmt.Errorf("%w: '%s' (nearest stage: '%s')", ErrNoStack, c.Node().Path(), boundary)
	}
	return s, nil
}

// enclosingStack walks up from n until it finds a stack or crosses a stage.
func enclosingStack(n *Node) (*Stack, string) {
	for cur := n; cur != nil; cur = cur.scope {
		switch v := cur.self.(type) {
		case *Stack:
			return v, ""
		case assemblyOwner:
			return nil, v.stage().displayName()
		}
	}
	return nil, ""
}
