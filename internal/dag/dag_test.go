package dag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T, nodes string, edges string) *DirectedAcyclicGraph[string] {
	t.Helper()

	d := NewDirectedAcyclicGraph[string]()
	for i, node := range strings.Split(nodes, ",") {
		require.NoError(t, d.AddVertex(node, i))
	}

	if edges == "" {
		return d
	}

	for _, edge := range strings.Split(edges, ",") {
		tokens := strings.SplitN(edge, "->", 2)
		require.NoError(t, d.AddDependencies(tokens[1], []string{tokens[0]}), "adding edge %q", edge)
	}

	return d
}

func TestDAG_AddVertex(t *testing.T) {
	t.Parallel()

	d := NewDirectedAcyclicGraph[string]()
	require.NoError(t, d.AddVertex("A", 1))

	err := d.AddVertex("A", 1)
	require.ErrorIs(t, err, ErrVertexExists)
	require.Len(t, d.Vertices, 1)
}

func TestDAG_AddDependencies(t *testing.T) {
	t.Parallel()

	d := buildGraph(t, "A,B", "")

	require.NoError(t, d.AddDependencies("A", []string{"B"}))
	require.ErrorIs(t, d.AddDependencies("A", []string{"C"}), ErrVertexNotFound)
	require.ErrorIs(t, d.AddDependencies("C", []string{"A"}), ErrVertexNotFound)
	require.ErrorIs(t, d.AddDependencies("A", []string{"A"}), ErrSelfReference)
}

func TestDAG_AddDependencies_RejectsCycle(t *testing.T) {
	t.Parallel()

	d := buildGraph(t, "A,B,C", "A->B,B->C")
	cyclic, _ := d.hasCycle()
	require.False(t, cyclic)

	err := d.AddDependencies("A", []string{"C"})
	require.Error(t, err)
	cycleErr := AsCycleError[string](err)
	require.NotNil(t, cycleErr)
	require.NotEmpty(t, cycleErr.Cycle)

	// The rejected edge must not linger.
	_, found := d.Vertices["A"].DependsOn["C"]
	require.False(t, found)
}

func TestDAG_TopologicalSort_DetectsCycle(t *testing.T) {
	t.Parallel()

	d := buildGraph(t, "A,B,C", "A->B,B->C")
	d.Vertices["A"].DependsOn["C"] = struct{}{}

	_, err := d.TopologicalSort()
	require.Error(t, err)
	require.NotNil(t, AsCycleError[string](err))
	require.Contains(t, err.Error(), "dependency cycle detected")
}

func TestDAG_TopologicalSort(t *testing.T) {
	t.Parallel()

	grid := []struct {
		nodes string
		edges string
		want  string
	}{
		{nodes: "A,B", want: "A,B"},
		{nodes: "A,B", edges: "A->B", want: "A,B"},
		{nodes: "A,B", edges: "B->A", want: "B,A"},
		{nodes: "A,B,C,D,E,F", want: "A,B,C,D,E,F"},
		{nodes: "A,B,C,D,E,F", edges: "C->D", want: "A,B,C,E,F,D"},
		{nodes: "A,B,C,D,E,F", edges: "D->C", want: "A,B,D,E,F,C"},
		{nodes: "A,B,C,D,E,F", edges: "F->A,F->B,B->A", want: "C,D,E,F,B,A"},
		{nodes: "A,B,C,D,E,F", edges: "B->A,C->A,D->B,D->C,F->E,A->E", want: "D,F,B,C,A,E"},
	}

	for i, g := range grid {
		t.Run(fmt.Sprintf("[%d] nodes=%s,edges=%s", i, g.nodes, g.edges), func(t *testing.T) {
			t.Parallel()

			d := buildGraph(t, g.nodes, g.edges)
			order, err := d.TopologicalSort()
			require.NoError(t, err)
			require.Equal(t, g.want, strings.Join(order, ","))

			pos := make(map[string]int, len(order))
			for i, node := range order {
				pos[node] = i
			}
			for _, node := range order {
				for dep := range d.Vertices[node].DependsOn {
					require.Less(t, pos[dep], pos[node], "%s must come after %s", node, dep)
				}
			}
		})
	}
}

func TestDAG_TopologicalSortLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		nodes  string
		edges  string
		levels [][]string
	}{
		{
			name:   "simple chain",
			nodes:  "A,B,C",
			edges:  "A->B,B->C",
			levels: [][]string{{"A"}, {"B"}, {"C"}},
		},
		{
			name:   "parallel vertices",
			nodes:  "A,B,C",
			edges:  "A->C,B->C",
			levels: [][]string{{"A", "B"}, {"C"}},
		},
		{
			name:   "diamond",
			nodes:  "A,B,C,D",
			edges:  "A->B,A->C,B->D,C->D",
			levels: [][]string{{"A"}, {"B", "C"}, {"D"}},
		},
		{
			name:   "no dependencies",
			nodes:  "A,B,C",
			levels: [][]string{{"A", "B", "C"}},
		},
		{
			name:   "insertion order kept within level",
			nodes:  "Z,Y,X,W,V,U",
			edges:  "Z->U,Y->U,X->U",
			levels: [][]string{{"Z", "Y", "X", "W", "V"}, {"U"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := buildGraph(t, tc.nodes, tc.edges)
			levels, err := d.TopologicalSortLevels()
			require.NoError(t, err)
			require.Equal(t, tc.levels, levels)
		})
	}
}
