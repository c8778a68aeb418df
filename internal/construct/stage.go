package construct

import (
	"fmt"
	"strings"
)

// Stage groups stacks that are deployed together and synthesized into their own cloud assembly.
type Stage struct {
	Base

	env      Environment
	assembly *CloudAssembly
}

// StageProps configures a Stage.
type StageProps struct {
	// Env is the default environment of the stacks in the stage.
	// Empty fields are inherited from the enclosing stage.
	Env Environment
}

// App is the root of a construct tree.
type App struct {
	Stage
}

// AppProps configures an App.
type AppProps struct {
	Env Environment
}

// assemblyOwner is implemented by Stage and, through embedding, App.
type assemblyOwner interface {
	Construct
	stage() *Stage
}

// NewApp returns the root of a new construct tree.
func NewApp(props AppProps) *App {
	app := &App{}
	app.node = newRootNode(app)
	app.env = props.Env
	return app
}

// NewStage creates a Stage under scope.
func NewStage(scope Construct, id string, props StageProps) (*Stage, error) {
	s := &Stage{env: props.Env}
	if err := s.Init(scope, id, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stage) stage() *Stage {
	return s
}

// Environment returns the stage environment, with empty fields inherited from enclosing stages.
func (s *Stage) Environment() Environment {
	env := s.env
	if parent := StageOf(s.Node().Scope()); parent != nil {
		env = env.inherit(parent.Environment())
	}
	return env
}

// Name returns the path of the stage joined with '-'. The root stage has an empty name.
func (s *Stage) Name() string {
	return strings.Join(s.Node().pathComponents(), "-")
}

// ArtifactID returns the identifier of the nested cloud assembly of the stage.
// The root stage has an empty ArtifactID.
func (s *Stage) ArtifactID() string {
	if s.Node().Scope() == nil {
		return ""
	}
	return "assembly-" + s.Name()
}

// Stacks returns the stacks that belong to this stage, in creation order.
// Stacks of nested stages are excluded.
func (s *Stage) Stacks() []*Stack {
	var stacks []*Stack
	s.Node().walk(func(n *Node) bool {
		if n == s.Node() {
			return true
		}
		if _, ok := n.self.(assemblyOwner); ok {
			return false
		}
		if st, ok := n.self.(*Stack); ok {
			stacks = append(stacks, st)
		}
		return true
	})
	return stacks
}

// nestedStages returns the stages whose nearest enclosing stage is s.
func (s *Stage) nestedStages() []*Stage {
	var stages []*Stage
	s.Node().walk(func(n *Node) bool {
		if n == s.Node() {
			return true
		}
		if owner, ok := n.self.(assemblyOwner); ok {
			stages = append(stages, owner.stage())
			return false
		}
		return true
	})
	return stages
}

// Synth synthesizes the stage into a cloud assembly.
// The result is memoized, and the subtree of the stage cannot be modified afterwards.
func (s *Stage) Synth() (*CloudAssembly, error) {
	if s.assembly != nil {
		return s.assembly, nil
	}

	asm, err := synthesize(s)
	if err != nil {
		return nil, fmt.Errorf("synthesizing '%s': %w", s.displayName(), err)
	}

	s.Node().lock()
	s.assembly = asm
	return asm, nil
}

func (s *Stage) displayName() string {
	if s.Node().Scope() == nil {
		return "app"
	}
	return s.Node().Path()
}

// StageOf returns the nearest stage enclosing c, including c itself.
// It returns nil when c is nil.
func StageOf(c Construct) *Stage {
	if c == nil {
		return nil
	}
	for n := c.Node(); n != nil; n = n.scope {
		if owner, ok := n.self.(assemblyOwner); ok {
			return owner.stage()
		}
	}
	return nil
}
