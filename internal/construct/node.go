package construct

import (
	"fmt"
	"slices"
	"strings"
)

// PathSeparator separates construct ids in a construct path.
const PathSeparator = "/"

// Construct is implemented by every element of the construct tree.
type Construct interface {
	Node() *Node
}

// Base is embedded by constructs to hold their tree node.
type Base struct {
	node *Node
}

// Node returns the tree node of the construct.
func (b *Base) Node() *Node {
	return b.node
}

// Init attaches self to scope under id.
// It must be called exactly once, before the construct is used.
func (b *Base) Init(scope Construct, id string, self Construct) error {
	if b.node != nil {
		return fmt.Errorf("%w: construct '%s' is already initialised", ErrInvalidConstruct, id)
	}

	node, err := newNode(scope, id, self)
	if err != nil {
		return err
	}

	b.node = node
	return nil
}

// Node is the position of a construct within the tree.
// Each node exclusively owns its children.
type Node struct {
	id          string
	scope       *Node
	self        Construct
	children    []*Node
	byID        map[string]*Node
	validations []func() error
	locked      bool
}

func newRootNode(self Construct) *Node {
	return &Node{
		self: self,
		byID: map[string]*Node{},
	}
}

func newNode(scope Construct, id string, self Construct) (*Node, error) {
	if scope == nil {
		return nil, fmt.Errorf("%w: scope is required for construct '%s'", ErrInvalidConstruct, id)
	}

	parent := scope.Node()
	if parent == nil {
		return nil, fmt.Errorf("%w: scope of construct '%s' is not initialised", ErrInvalidConstruct, id)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty (scope: '%s')", ErrInvalidID, parent.Path())
	}
	if strings.Contains(id, PathSeparator) {
		return nil, fmt.Errorf("%w: id '%s' cannot contain '%s'", ErrInvalidID, id, PathSeparator)
	}

	if parent.isLocked() {
		return nil, fmt.Errorf("%w: cannot add '%s' to '%s'", ErrLocked, id, parent.Path())
	}

	if _, exists := parent.byID[id]; exists {
		return nil, fmt.Errorf("%w: there is already a construct with id '%s' in '%s'", ErrDuplicateID, id, parent.Path())
	}

	n := &Node{
		id:    id,
		scope: parent,
		self:  self,
		byID:  map[string]*Node{},
	}
	parent.children = append(parent.children, n)
	parent.byID[id] = n

	return n, nil
}

// ID returns the id of the construct within its scope.
func (n *Node) ID() string {
	return n.id
}

// Path returns the ids from the root to this construct, joined by PathSeparator.
func (n *Node) Path() string {
	return strings.Join(n.pathComponents(), PathSeparator)
}

func (n *Node) pathComponents() []string {
	var components []string
	for cur := n; cur != nil; cur = cur.scope {
		if cur.id != "" {
			components = append(components, cur.id)
		}
	}
	slices.Reverse(components)
	return components
}

// Scope returns the parent construct, nil for the root.
func (n *Node) Scope() Construct {
	if n.scope == nil {
		return nil
	}
	return n.scope.self
}

// Self returns the construct that owns this node.
func (n *Node) Self() Construct {
	return n.self
}

// Children returns the direct children in creation order.
func (n *Node) Children() []Construct {
	children := make([]Construct, len(n.children))
	for i, c := range n.children {
		children[i] = c.self
	}
	return children
}

// TryFindChild returns the direct child with the given id.
func (n *Node) TryFindChild(id string) (Construct, bool) {
	c, ok := n.byID[id]
	if !ok {
		return nil, false
	}
	return c.self, true
}

// Scopes returns every construct from the root down to and including this one.
func (n *Node) Scopes() []Construct {
	var scopes []Construct
	for cur := n; cur != nil; cur = cur.scope {
		scopes = append(scopes, cur.self)
	}
	slices.Reverse(scopes)
	return scopes
}

// FindAll returns this construct and all of its descendants in pre-order.
func (n *Node) FindAll() []Construct {
	var all []Construct
	n.walk(func(c *Node) bool {
		all = append(all, c.self)
		return true
	})
	return all
}

// walk visits nodes in pre-order; returning false skips the subtree below the visited node.
func (n *Node) walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.walk(fn)
	}
}

// Root returns the root construct of the tree.
func (n *Node) Root() Construct {
	cur := n
	for cur.scope != nil {
		cur = cur.scope
	}
	return cur.self
}

// AddValidation registers a check executed when the enclosing stage is synthesized.
func (n *Node) AddValidation(fn func() error) {
	n.validations = append(n.validations, fn)
}

func (n *Node) validate() []error {
	var errs []error
	for _, fn := range n.validations {
		if err := fn(); err != nil {
			errs = append(errs, fmt.Errorf("[%s] %w", n.Path(), err))
		}
	}
	return errs
}

func (n *Node) lock() {
	n.locked = true
}

func (n *Node) isLocked() bool {
	for cur := n; cur != nil; cur = cur.scope {
		if cur.locked {
			return true
		}
	}
	return false
}
