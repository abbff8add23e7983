// Package graphtraversal implements C6: iterative graph algorithms over the
// relationship store. Every algorithm here is explicitly non-recursive —
// traversal depth is bounded by caller-supplied maxDepth, not by Go's call
// stack, so a pathological cycle or a very deep dependency chain cannot
// blow the stack.
package graphtraversal

import (
	"context"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/metrics"
	"github.com/amp-memory/amp/internal/model"
)

// neighborLister is the minimal dependency this package needs from the
// relationship store, kept narrow so traversal code is trivially testable
// with an in-memory fake.
type neighborLister interface {
	Neighbors(ctx context.Context, objectID string, relType model.RelationType, dir model.Direction) ([]string, error)
	NeighborsAllTypes(ctx context.Context, objectID string, dir model.Direction) ([]string, error)
}

// Traverser runs BFS/DFS queries over a relationship store.
type Traverser struct {
	store neighborLister
}

// New builds a Traverser over store.
func New(store neighborLister) *Traverser {
	return &Traverser{store: store}
}

// Query narrows a traversal to a single relation type, or all types when
// RelType is empty.
type Query struct {
	RelType   model.RelationType
	Direction model.Direction
	MaxDepth  int
}

func (t *Traverser) neighbors(ctx context.Context, id string, q Query) ([]string, error) {
	if q.RelType == "" {
		return t.store.NeighborsAllTypes(ctx, id, q.Direction)
	}
	return t.store.Neighbors(ctx, id, q.RelType, q.Direction)
}

// Node is one result of a Collect call: a reachable object ID and the hop
// count it took to reach it.
type Node struct {
	ID    string
	Depth int
}

// Collect performs an iterative breadth-first search from startID,
// visiting every node reachable within q.MaxDepth hops exactly once.
// q.MaxDepth == 0 is a valid boundary meaning "don't hop at all" — it
// returns just the start node, not its 1-hop neighbors.
func (t *Traverser) Collect(ctx context.Context, startID string, q Query) ([]Node, error) {
	if q.MaxDepth < 0 {
		q.MaxDepth = 0
	}
	defer metrics.TraversalHops.WithLabelValues("collect").Observe(float64(q.MaxDepth))

	if q.MaxDepth == 0 {
		return []Node{{ID: startID, Depth: 0}}, nil
	}

	visited := map[string]bool{startID: true}
	type frame struct {
		id    string
		depth int
	}
	queue := []frame{{startID, 0}}

	var out []Node
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth > 0 {
			out = append(out, Node{ID: cur.id, Depth: cur.depth})
		}
		if cur.depth >= q.MaxDepth {
			continue
		}

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		neighbors, err := t.neighbors(ctx, cur.id, q)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			queue = append(queue, frame{n, cur.depth + 1})
		}
	}
	return out, nil
}

// PathResult is path's return shape: every simple path found from fromID to
// toID, plus the union of every node appearing in any of them.
type PathResult struct {
	Paths [][]string
	Nodes []string
}

// Path performs an iterative depth-first search enumerating every simple
// path (no node repeated within a path) from fromID to toID within
// q.MaxDepth hops. The "no-repeat-in-path" rule, rather than a global
// visited set, is what keeps this terminating on cyclic graphs while still
// finding every simple path, not just the first.
func (t *Traverser) Path(ctx context.Context, fromID, toID string, q Query) (PathResult, error) {
	if q.MaxDepth <= 0 {
		q.MaxDepth = 10
	}
	if fromID == toID {
		return PathResult{Paths: [][]string{{fromID}}, Nodes: []string{fromID}}, nil
	}

	type frame struct {
		id      string
		path    []string
		inPath  map[string]bool
	}
	start := frame{id: fromID, path: []string{fromID}, inPath: map[string]bool{fromID: true}}
	stack := []frame{start}

	var result PathResult
	nodeSet := make(map[string]bool)

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(cur.path)-1 >= q.MaxDepth {
			continue
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		neighbors, err := t.neighbors(ctx, cur.id, q)
		if err != nil {
			return result, err
		}
		for _, n := range neighbors {
			if n == toID {
				found := append(append([]string{}, cur.path...), n)
				result.Paths = append(result.Paths, found)
				for _, id := range found {
					nodeSet[id] = true
				}
				continue
			}
			if cur.inPath[n] {
				continue
			}
			nextPath := append(append([]string{}, cur.path...), n)
			nextInPath := make(map[string]bool, len(cur.inPath)+1)
			for id := range cur.inPath {
				nextInPath[id] = true
			}
			nextInPath[n] = true
			stack = append(stack, frame{id: n, path: nextPath, inPath: nextInPath})
		}
	}

	result.Nodes = make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		result.Nodes = append(result.Nodes, id)
	}
	return result, nil
}

// Shortest performs an iterative breadth-first search for the minimum-hop
// path from fromID to toID within maxDepth hops. BFS visits nodes in hop
// order, so the first time toID is reached is guaranteed shortest. If toID
// is not reachable within q.MaxDepth hops, it returns a KindGraphUnreachable
// error rather than an empty path.
func (t *Traverser) Shortest(ctx context.Context, fromID, toID string, q Query) ([]string, error) {
	if q.MaxDepth <= 0 {
		q.MaxDepth = 10
	}
	if fromID == toID {
		return []string{fromID}, nil
	}

	parent := map[string]string{fromID: ""}
	queue := []string{fromID}
	depth := map[string]int{fromID: 0}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if depth[cur] >= q.MaxDepth {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		neighbors, err := t.neighbors(ctx, cur, q)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, seen := parent[n]; seen {
				continue
			}
			parent[n] = cur
			depth[n] = depth[cur] + 1
			if n == toID {
				return reconstructPath(parent, toID), nil
			}
			queue = append(queue, n)
		}
	}
	return nil, amperr.GraphUnreachable("graphtraversal.Shortest", "target "+toID+" not reachable from "+fromID+" within max_depth")
}

func reconstructPath(parent map[string]string, target string) []string {
	var rev []string
	cur := target
	for {
		rev = append(rev, cur)
		p, ok := parent[cur]
		if !ok || p == "" {
			break
		}
		cur = p
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}
