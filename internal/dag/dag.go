// Package dag provides a directed acyclic graph used to order stacks for deployment.
package dag

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrVertexExists   = errors.New("vertex already exists")
	ErrVertexNotFound = errors.New("vertex not found")
	ErrSelfReference  = errors.New("vertex cannot depend on itself")
)

// Vertex is a node of the graph.
// Order records insertion order and is used to keep sorting stable.
type Vertex[T cmp.Ordered] struct {
	ID        T
	Order     int
	DependsOn map[T]struct{}
}

// DirectedAcyclicGraph holds vertices and their dependencies.
type DirectedAcyclicGraph[T cmp.Ordered] struct {
	Vertices map[T]*Vertex[T]
}

// CycleError is returned when the graph contains a cycle.
type CycleError[T cmp.Ordered] struct {
	Cycle []T
}

func (e *CycleError[T]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, v := range e.Cycle {
		parts[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// AsCycleError returns the CycleError wrapped by err, or nil.
func AsCycleError[T cmp.Ordered](err error) *CycleError[T] {
	var cycleErr *CycleError[T]
	if errors.As(err, &cycleErr) {
		return cycleErr
	}
	return nil
}

// NewDirectedAcyclicGraph returns an empty graph.
func NewDirectedAcyclicGraph[T cmp.Ordered]() *DirectedAcyclicGraph[T] {
	return &DirectedAcyclicGraph[T]{
		Vertices: make(map[T]*Vertex[T]),
	}
}

// AddVertex adds a vertex with the given ordering hint.
func (d *DirectedAcyclicGraph[T]) AddVertex(id T, order int) error {
	if _, exists := d.Vertices[id]; exists {
		return fmt.Errorf("%w: %v", ErrVertexExists, id)
	}

	d.Vertices[id] = &Vertex[T]{
		ID:        id,
		Order:     order,
		DependsOn: make(map[T]struct{}),
	}
	return nil
}

// AddDependencies records that id depends on every vertex in dependencies.
// The edges are rolled back if they would introduce a cycle.
func (d *DirectedAcyclicGraph[T]) AddDependencies(id T, dependencies []T) error {
	vertex, ok := d.Vertices[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrVertexNotFound, id)
	}

	var added []T
	for _, dep := range dependencies {
		if dep == id {
			return fmt.Errorf("%w: %v", ErrSelfReference, id)
		}
		if _, ok := d.Vertices[dep]; !ok {
			return fmt.Errorf("%w: %v (dependency of %v)", ErrVertexNotFound, dep, id)
		}
		if _, ok := vertex.DependsOn[dep]; ok {
			continue
		}
		vertex.DependsOn[dep] = struct{}{}
		added = append(added, dep)
	}

	if cyclic, cycle := d.hasCycle(); cyclic {
		for _, dep := range added {
			delete(vertex.DependsOn, dep)
		}
		return &CycleError[T]{Cycle: cycle}
	}

	return nil
}

// TopologicalSort returns the vertices so that every vertex comes after its dependencies.
func (d *DirectedAcyclicGraph[T]) TopologicalSort() ([]T, error) {
	levels, err := d.TopologicalSortLevels()
	if err != nil {
		return nil, err
	}

	order := make([]T, 0, len(d.Vertices))
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// TopologicalSortLevels groups vertices into levels. Vertices of one level only depend on
// vertices of earlier levels; within a level the insertion order is kept.
func (d *DirectedAcyclicGraph[T]) TopologicalSortLevels() ([][]T, error) {
	if cyclic, cycle := d.hasCycle(); cyclic {
		return nil, &CycleError[T]{Cycle: cycle}
	}

	done := make(map[T]struct{}, len(d.Vertices))
	remaining := d.sortedVertices()

	var levels [][]T
	for len(remaining) > 0 {
		var level []T
		var next []*Vertex[T]
		for _, v := range remaining {
			if dependenciesMet(v, done) {
				level = append(level, v.ID)
			} else {
				next = append(next, v)
			}
		}
		for _, id := range level {
			done[id] = struct{}{}
		}
		levels = append(levels, level)
		remaining = next
	}

	return levels, nil
}

func dependenciesMet[T cmp.Ordered](v *Vertex[T], done map[T]struct{}) bool {
	for dep := range v.DependsOn {
		if _, ok := done[dep]; !ok {
			return false
		}
	}
	return true
}

func (d *DirectedAcyclicGraph[T]) sortedVertices() []*Vertex[T] {
	vertices := make([]*Vertex[T], 0, len(d.Vertices))
	for _, v := range d.Vertices {
		vertices = append(vertices, v)
	}
	slices.SortFunc(vertices, func(a, b *Vertex[T]) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return vertices
}

// hasCycle reports whether the graph has a cycle, and one such cycle.
func (d *DirectedAcyclicGraph[T]) hasCycle() (bool, []T) {
	const (
		unvisited = iota
		visiting
		visited
	)

	state := make(map[T]int, len(d.Vertices))
	var path []T

	var visit func(id T) []T
	visit = func(id T) []T {
		state[id] = visiting
		path = append(path, id)

		deps := make([]T, 0, len(d.Vertices[id].DependsOn))
		for dep := range d.Vertices[id].DependsOn {
			deps = append(deps, dep)
		}
		slices.Sort(deps)

		for _, dep := range deps {
			switch state[dep] {
			case visiting:
				start := slices.Index(path, dep)
				cycle := slices.Clone(path[start:])
				return append(cycle, dep)
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		state[id] = visited
		return nil
	}

	for _, v := range d.sortedVertices() {
		if state[v.ID] != unvisited {
			continue
		}
		if cycle := visit(v.ID); cycle != nil {
			return true, cycle
		}
	}

	return false, nil
}
