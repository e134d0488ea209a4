// Package taskgraph implements the task graph builder (C2): it links
// parsed tasks by dependency id into a DAG rooted at a synthetic root,
// and reports missing dependencies or cycles.
package taskgraph

import (
	"fmt"

	pkgerrors "github.com/fuzoj/jobrunner/pkg/errors"
	"github.com/fuzoj/jobrunner/internal/model"
)

// RootID is the synthetic root node's task id.
const RootID = ""

// NodeState is the lifecycle state of a task node inside the graph.
type NodeState int

const (
	Pending NodeState = iota
	Ready
	Done
	Skipped
)

// Node is one task graph vertex. Children are referenced by task id
// into the Graph.Nodes map rather than by owning pointers.
type Node struct {
	Meta     model.TaskMeta
	Children []string
	Indegree int
	State    NodeState
	Result   *model.TaskResult
}

// Graph is the task DAG keyed by task_id, including the synthetic root.
type Graph struct {
	Nodes map[string]*Node
	Order []string // descriptor order, root excluded
}

// Build links tasks into a DAG. It returns a GraphError (via
// pkg/errors) for a missing dependency or a cycle.
func Build(job *model.JobMeta) (*Graph, error) {
	g := &Graph{Nodes: map[string]*Node{}}

	g.Nodes[RootID] = &Node{
		Meta: model.TaskMeta{TaskID: RootID, Priority: 0},
	}

	for _, t := range job.Tasks {
		if _, exists := g.Nodes[t.TaskID]; exists {
			return nil, pkgerrors.Newf(pkgerrors.GraphMissingDependency,
				"duplicate task id %q", t.TaskID)
		}
		g.Nodes[t.TaskID] = &Node{Meta: t}
		g.Order = append(g.Order, t.TaskID)
	}

	// Link dependency edges; track original indegree before the
	// synthetic root is attached so zero-indegree tasks can be found.
	originalIndegree := map[string]int{}
	for _, id := range g.Order {
		originalIndegree[id] = 0
	}

	for _, id := range g.Order {
		node := g.Nodes[id]
		for _, dep := range node.Meta.Dependencies {
			depNode, ok := g.Nodes[dep]
			if !ok {
				return nil, pkgerrors.Newf(pkgerrors.GraphMissingDependency,
					"task %q depends on undefined task %q", id, dep)
			}
			depNode.Children = append(depNode.Children, id)
			originalIndegree[id]++
		}
	}

	for _, id := range g.Order {
		node := g.Nodes[id]
		node.Indegree = originalIndegree[id]
		if node.Indegree == 0 {
			g.Nodes[RootID].Children = append(g.Nodes[RootID].Children, id)
			node.Indegree = 1 // edge from the synthetic root
		}
	}

	if err := checkAcyclic(g); err != nil {
		return nil, err
	}

	for _, node := range g.Nodes {
		node.State = Pending
	}

	return g, nil
}

// checkAcyclic runs a Kahn reduction over a scratch copy of indegrees;
// any node left with indegree > 0 afterward is part of a cycle.
func checkAcyclic(g *Graph) error {
	indegree := make(map[string]int, len(g.Nodes))
	for id, node := range g.Nodes {
		indegree[id] = node.Indegree
	}

	queue := []string{RootID}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, child := range g.Nodes[id].Children {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if visited != len(g.Nodes) {
		return pkgerrors.New(pkgerrors.GraphCycle).
			WithMessage(fmt.Sprintf("task graph has a cycle: %d of %d nodes unreachable from root", len(g.Nodes)-visited, len(g.Nodes)))
	}
	return nil
}

// Descendants returns the set of task ids reachable from id via
// Children, excluding id itself — used by the execution driver for
// skip-propagation (BFS from the failing node).
func (g *Graph) Descendants(id string) []string {
	seen := map[string]bool{id: true}
	var out []string
	queue := append([]string(nil), g.Nodes[id].Children...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, g.Nodes[cur].Children...)
	}
	return out
}
