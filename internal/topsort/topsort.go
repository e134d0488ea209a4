// Package topsort implements the priority topological sorter (C3):
// Kahn's algorithm driven by a max-heap keyed by (priority desc,
// insertion-index asc), so that among tasks ready in the same wave the
// higher-priority one runs first and ties preserve descriptor order.
package topsort

import (
	"container/heap"

	pkgerrors "github.com/fuzoj/jobrunner/pkg/errors"
	"github.com/fuzoj/jobrunner/internal/taskgraph"
)

type readyItem struct {
	id       string
	priority uint64
	order    int
}

// readyHeap orders by priority descending, then insertion order
// ascending — mirrors jobHeap.Less in the priority-queue reference
// this is grounded on.
type readyHeap []readyItem

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].order < h[j].order
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x interface{}) {
	*h = append(*h, x.(readyItem))
}

func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Sort produces the linear execution order for g, with the synthetic
// root emitted first and then stripped before being returned to the
// caller (the execution driver never sees the root id).
func Sort(g *taskgraph.Graph) ([]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	for id, node := range g.Nodes {
		indegree[id] = node.Indegree
	}

	insertionOrder := make(map[string]int, len(g.Order))
	for i, id := range g.Order {
		insertionOrder[id] = i
	}

	h := &readyHeap{}
	heap.Init(h)
	heap.Push(h, readyItem{id: taskgraph.RootID, priority: 0, order: -1})

	var order []string
	for h.Len() > 0 {
		item := heap.Pop(h).(readyItem)
		order = append(order, item.id)
		node := g.Nodes[item.id]
		for _, child := range node.Children {
			indegree[child]--
			if indegree[child] == 0 {
				heap.Push(h, readyItem{
					id:       child,
					priority: g.Nodes[child].Meta.Priority,
					order:    insertionOrder[child],
				})
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, pkgerrors.New(pkgerrors.GraphCycle).
			WithMessage("topological sort did not cover every node; graph has a cycle")
	}

	// Drop the synthetic root; it is position 0 by construction.
	return order[1:], nil
}
