package graphtraversal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/model"
)

// fakeGraph is a tiny in-memory adjacency list used to test traversal
// algorithms without a real relationship store.
type fakeGraph struct {
	edges map[string][]string
}

func (f *fakeGraph) Neighbors(ctx context.Context, id string, relType model.RelationType, dir model.Direction) ([]string, error) {
	return f.edges[id], nil
}

func (f *fakeGraph) NeighborsAllTypes(ctx context.Context, id string, dir model.Direction) ([]string, error) {
	return f.edges[id], nil
}

// a -> b -> c -> d
// a -> d directly too, for a shortcut path
func buildGraph() *fakeGraph {
	return &fakeGraph{edges: map[string][]string{
		"a": {"b", "d"},
		"b": {"c"},
		"c": {"d"},
		"d": {},
	}}
}

func TestCollectZeroDepthReturnsOnlyStartNode(t *testing.T) {
	tr := New(buildGraph())

	nodes, err := tr.Collect(context.Background(), "a", Query{MaxDepth: 0})
	require.NoError(t, err)
	assert.Equal(t, []Node{{ID: "a", Depth: 0}}, nodes)
}

func TestCollectBFSRespectsDepth(t *testing.T) {
	tr := New(buildGraph())

	nodes, err := tr.Collect(context.Background(), "a", Query{MaxDepth: 1})
	require.NoError(t, err)
	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{"b", "d"}, ids)

	nodes, err = tr.Collect(context.Background(), "a", Query{MaxDepth: 3})
	require.NoError(t, err)
	ids = nil
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{"b", "c", "d"}, ids)
}

func TestShortestFindsMinimumHopPath(t *testing.T) {
	tr := New(buildGraph())

	path, err := tr.Shortest(context.Background(), "a", "d", Query{MaxDepth: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d"}, path)
}

func TestPathFindsAllSimplePaths(t *testing.T) {
	tr := New(buildGraph())

	result, err := tr.Path(context.Background(), "a", "d", Query{MaxDepth: 5})
	require.NoError(t, err)
	require.Len(t, result.Paths, 2)
	assert.ElementsMatch(t, [][]string{{"a", "d"}, {"a", "b", "c", "d"}}, result.Paths)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, result.Nodes)
}

func TestPathUnreachableReturnsNoPaths(t *testing.T) {
	tr := New(buildGraph())

	result, err := tr.Path(context.Background(), "d", "a", Query{MaxDepth: 5})
	require.NoError(t, err)
	assert.Empty(t, result.Paths)
}

func TestShortestUnreachableReturnsGraphUnreachable(t *testing.T) {
	tr := New(buildGraph())

	path, err := tr.Shortest(context.Background(), "d", "a", Query{MaxDepth: 5})
	assert.Nil(t, path)
	assert.True(t, amperr.Is(err, amperr.KindGraphUnreachable))
}

func TestCollectSameStartReturnsNoSelfNode(t *testing.T) {
	tr := New(buildGraph())

	nodes, err := tr.Collect(context.Background(), "d", Query{MaxDepth: 3})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
