// Package graph builds a validated Workflow DAG from a bare, ordered list
// of step instances, inferring edges from the catalog's adjacency rules.
//
// This mirrors the teacher's WorkflowGraph (forward/reverse adjacency maps,
// DFS cycle detection, BFS reachability) adapted from a string-node-id graph
// to the spec's index-addressed node sequence, and generalizes its
// edge-construction step to the declarative, bidirectional adjacency rule
// used here instead of an explicit edge list supplied by the client.
package graph

import (
	"fmt"
	"log/slog"

	"github.com/smilemakc/printflow/internal/catalog"
)

// Node is a step value plus the indices of its predecessors and successors
// within the enclosing Workflow's node sequence. Indices are stable for the
// lifetime of the Workflow value.
type Node struct {
	Step catalog.Step
	Prev []int
	Next []int
}

// Workflow is a validated DAG of step instances.
type Workflow struct {
	Title string
	Nodes []Node
}

// InvalidWorkflow collapses every Graph Builder failure mode into the
// single error the boundary surfaces as 422.
type InvalidWorkflow struct {
	Cause error
}

func (e *InvalidWorkflow) Error() string {
	return fmt.Sprintf("graph: invalid workflow: %v", e.Cause)
}

func (e *InvalidWorkflow) Unwrap() error { return e.Cause }

// Sentinel-shaped failure modes, each wrapped into InvalidWorkflow at the
// Build boundary.
var (
	ErrEmptyWorkflow = fmt.Errorf("graph: workflow has no steps")
	ErrCycle         = fmt.Errorf("graph: workflow contains a cycle")
	ErrDisconnected  = fmt.Errorf("graph: workflow is not weakly connected")
)

// IllegalSource is returned when a node with no incoming edges has a kind
// that isn't allowed to be a source.
type IllegalSource struct{ Index int }

func (e *IllegalSource) Error() string {
	return fmt.Sprintf("graph: node %d has no predecessor but its kind may not be a source", e.Index)
}

// IllegalSink is returned when a node with no outgoing edges has a kind
// that isn't allowed to be a sink.
type IllegalSink struct{ Index int }

func (e *IllegalSink) Error() string {
	return fmt.Sprintf("graph: node %d has no successor but its kind may not be a sink", e.Index)
}

// Build infers edges for an ordered list of step instances and validates
// the result against I1-I5 (spec.md §3), returning InvalidWorkflow wrapping
// the first failure mode encountered.
func Build(title string, steps []catalog.Step) (*Workflow, error) {
	if len(steps) == 0 {
		slog.Default().Warn("graph: rejected workflow", "title", title, "reason", ErrEmptyWorkflow)
		return nil, &InvalidWorkflow{Cause: ErrEmptyWorkflow}
	}

	for _, s := range steps {
		if err := catalog.ValidateParameter(s); err != nil {
			slog.Default().Warn("graph: rejected workflow", "title", title, "reason", err)
			return nil, &InvalidWorkflow{Cause: err}
		}
	}

	nodes, err := inferEdges(steps)
	if err != nil {
		slog.Default().Warn("graph: rejected workflow", "title", title, "reason", err)
		return nil, &InvalidWorkflow{Cause: err}
	}

	wf := &Workflow{Title: title, Nodes: nodes}

	if err := checkAcyclic(wf); err != nil {
		slog.Default().Warn("graph: rejected workflow", "title", title, "reason", err)
		return nil, &InvalidWorkflow{Cause: err}
	}
	if err := checkConnected(wf); err != nil {
		slog.Default().Warn("graph: rejected workflow", "title", title, "reason", err)
		return nil, &InvalidWorkflow{Cause: err}
	}
	if err := checkSourcesAndSinks(wf); err != nil {
		slog.Default().Warn("graph: rejected workflow", "title", title, "reason", err)
		return nil, &InvalidWorkflow{Cause: err}
	}

	slog.Default().Debug("graph: built workflow", "title", title, "nodes", len(nodes))
	return wf, nil
}

// inferEdges adds edge i->j for every ordered pair (i,j), i != j, where
// both sides of the adjacency rule agree: kind(steps[j]) is a valid
// successor of kind(steps[i]) AND kind(steps[i]) is a valid predecessor of
// kind(steps[j]). prev/next are emitted in ascending index order, making
// Build a pure, deterministic function of its input (P4).
func inferEdges(steps []catalog.Step) ([]Node, error) {
	nodes := make([]Node, len(steps))
	for i, s := range steps {
		nodes[i].Step = s
	}

	validNextCache := make(map[catalog.KindId]map[catalog.KindId]bool)
	validPrevCache := make(map[catalog.KindId]map[catalog.KindId]bool)
	ruleSetFor := func(cache map[catalog.KindId]map[catalog.KindId]bool, kind catalog.KindId, lookup func(catalog.KindId) (map[catalog.KindId]bool, error)) (map[catalog.KindId]bool, error) {
		if set, ok := cache[kind]; ok {
			return set, nil
		}
		set, err := lookup(kind)
		if err != nil {
			return nil, err
		}
		cache[kind] = set
		return set, nil
	}

	for i := range steps {
		for j := range steps {
			if i == j {
				continue
			}
			kindI := catalog.KindOf(steps[i])
			kindJ := catalog.KindOf(steps[j])

			iValidNext, err := ruleSetFor(validNextCache, kindI, catalog.ValidNext)
			if err != nil {
				return nil, err
			}
			jValidPrev, err := ruleSetFor(validPrevCache, kindJ, catalog.ValidPrev)
			if err != nil {
				return nil, err
			}

			if iValidNext[kindJ] && jValidPrev[kindI] {
				nodes[i].Next = append(nodes[i].Next, j)
				nodes[j].Prev = append(nodes[j].Prev, i)
			}
		}
	}

	return nodes, nil
}

// checkAcyclic verifies I1 with a DFS guarded by a recursion-stack marker;
// a back-edge into the current recursion stack fails the check.
func checkAcyclic(wf *Workflow) error {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make([]int, len(wf.Nodes))

	var visit func(i int) error
	visit = func(i int) error {
		state[i] = inStack
		for _, j := range wf.Nodes[i].Next {
			switch state[j] {
			case inStack:
				return ErrCycle
			case unvisited:
				if err := visit(j); err != nil {
					return err
				}
			}
		}
		state[i] = done
		return nil
	}

	for i := range wf.Nodes {
		if state[i] == unvisited {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkConnected verifies I2: every node is reachable from some source via
// a forward BFS, and every node reaches some sink via a reverse BFS.
func checkConnected(wf *Workflow) error {
	n := len(wf.Nodes)

	forwardReached := bfs(n, sourcesOf(wf), func(i int) []int { return wf.Nodes[i].Next })
	for i := 0; i < n; i++ {
		if !forwardReached[i] {
			return ErrDisconnected
		}
	}

	backwardReached := bfs(n, sinksOf(wf), func(i int) []int { return wf.Nodes[i].Prev })
	for i := 0; i < n; i++ {
		if !backwardReached[i] {
			return ErrDisconnected
		}
	}

	return nil
}

func sourcesOf(wf *Workflow) []int {
	var sources []int
	for i, node := range wf.Nodes {
		if len(node.Prev) == 0 {
			sources = append(sources, i)
		}
	}
	return sources
}

func sinksOf(wf *Workflow) []int {
	var sinks []int
	for i, node := range wf.Nodes {
		if len(node.Next) == 0 {
			sinks = append(sinks, i)
		}
	}
	return sinks
}

func bfs(n int, starts []int, neighbors func(int) []int) []bool {
	reached := make([]bool, n)
	queue := make([]int, 0, len(starts))
	for _, s := range starts {
		if !reached[s] {
			reached[s] = true
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range neighbors(cur) {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	return reached
}

// checkSourcesAndSinks verifies I3: a node with no predecessor must have a
// kind whose NoPrevValid is true; a node with no successor must have a kind
// whose NoNextValid is true.
func checkSourcesAndSinks(wf *Workflow) error {
	for i, node := range wf.Nodes {
		if len(node.Prev) == 0 {
			attrs, err := catalog.AttributesOf(catalog.KindOf(node.Step))
			if err != nil {
				return err
			}
			if !attrs.NoPrevValid {
				return &IllegalSource{Index: i}
			}
		}
		if len(node.Next) == 0 {
			attrs, err := catalog.AttributesOf(catalog.KindOf(node.Step))
			if err != nil {
				return err
			}
			if !attrs.NoNextValid {
				return &IllegalSink{Index: i}
			}
		}
	}
	return nil
}
