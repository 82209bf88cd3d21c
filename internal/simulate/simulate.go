// Package simulate computes, for a validated Workflow and a PrintJob, the
// per-node completion time and critical-path total time, traversing the
// DAG cooperatively concurrently.
//
// The traversal shape (visit-once via a guarded marker, recurse through
// Prev then Next, fan out with goroutines and join before continuing) is
// the same one the original Rust implementation's simulation.rs used
// (RwLock<SearchData> + join_all over prev/next), adapted to Go's
// sync.WaitGroup/goroutine idiom the way the teacher fans out node
// execution within a wave (internal/application/executor/engine.go's
// executeWave: one goroutine per unit of work, a WaitGroup join, a single
// guard over shared result state).
package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smilemakc/printflow/internal/catalog"
	"github.com/smilemakc/printflow/internal/graph"
)

// PrintJob is the minimal view of a print job the simulator needs.
type PrintJob struct {
	PageCount uint32
}

// SimulationError wraps any failure encountered while costing a node. The
// traversal unwinds and no partial result is usable once this occurs.
type SimulationError struct {
	NodeIndex int
	Cause     error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulate: node %d: %v", e.NodeIndex, e.Cause)
}

func (e *SimulationError) Unwrap() error { return e.Cause }

// Result is the simulator's output: the critical-path total time and the
// per-kind aggregate time across all nodes of that kind in the run.
type Result struct {
	TotalTime     uint64
	StepTimesByID map[catalog.KindId]uint64
}

// searchState is the single guarded cell shared by every cooperative task
// within one Simulate call (spec.md §5). One mutex protects the whole
// block; visited is a check-then-set critical section so each node's cost
// is computed exactly once even under concurrent re-entry from multiple
// predecessors/successors.
type searchState struct {
	mu         sync.Mutex
	visited    []bool
	cumulative []uint64
	perKind    map[catalog.KindId]uint64
	total      uint64
}

func newSearchState(n int) *searchState {
	return &searchState{
		visited:    make([]bool, n),
		cumulative: make([]uint64, n),
		perKind:    make(map[catalog.KindId]uint64),
	}
}

// claim marks index as visited, returning true the first time (and only
// the first time) it's called for a given index.
func (s *searchState) claim(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[index] {
		return false
	}
	s.visited[index] = true
	return true
}

func (s *searchState) addKindTime(kind catalog.KindId, delta uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perKind[kind] += delta
}

func (s *searchState) setCumulative(index int, t uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cumulative[index] = t
	if t > s.total {
		s.total = t
	}
}

// getCumulative reads cumulative[index]. Callers only ever read an index
// after having awaited the goroutine that wrote it (the traversal's
// recursion into Prev completes before step 3 runs), so the guard here is
// only defending against concurrent unrelated writes, not ordering.
func (s *searchState) getCumulative(index int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cumulative[index]
}

func (s *searchState) snapshot() ([]uint64, map[catalog.KindId]uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perKind := make(map[catalog.KindId]uint64, len(s.perKind))
	for k, v := range s.perKind {
		perKind[k] = v
	}
	return s.cumulative, perKind, s.total
}

// Simulate traverses wf starting at node 0, computing cost(v) for every
// node and the critical-path total. Because a validated Workflow is weakly
// connected and acyclic, recursion through Prev then Next reaches every
// node exactly once. Failures inside a node cost computation abort the
// whole traversal and are returned wrapped in SimulationError.
func Simulate(ctx context.Context, wf *graph.Workflow, job PrintJob) (Result, error) {
	if len(wf.Nodes) == 0 {
		slog.Default().Debug("simulate: empty workflow, nothing to traverse", "workflow", wf.Title)
		return Result{StepTimesByID: map[catalog.KindId]uint64{}}, nil
	}

	state := newSearchState(len(wf.Nodes))
	t := &traversal{ctx: ctx, wf: wf, job: job, state: state}

	if err := t.visit(0); err != nil {
		slog.Default().Warn("simulate: traversal aborted", "workflow", wf.Title, "page_count", job.PageCount, "error", err)
		return Result{}, err
	}

	_, perKind, total := state.snapshot()
	slog.Default().Debug("simulate: traversal complete", "workflow", wf.Title, "page_count", job.PageCount, "total_time", total)
	return Result{TotalTime: total, StepTimesByID: perKind}, nil
}

type traversal struct {
	ctx   context.Context
	wf    *graph.Workflow
	job   PrintJob
	state *searchState
}

// visit implements the five traversal steps of spec.md §4.4 for node index.
func (t *traversal) visit(index int) error {
	if !t.state.claim(index) {
		return nil
	}

	if err := t.fanOut(t.wf.Nodes[index].Prev); err != nil {
		return err
	}

	node := t.wf.Nodes[index]
	cost, err := nodeCost(node.Step, t.job)
	if err != nil {
		slog.Default().Warn("simulate: node cost computation failed", "node_index", index, "kind", node.Step.Kind, "error", err)
		return &SimulationError{NodeIndex: index, Cause: err}
	}
	t.state.addKindTime(catalog.KindOf(node.Step), cost)

	maxPrev := uint64(0)
	for _, p := range node.Prev {
		if pt := t.state.getCumulative(p); pt > maxPrev {
			maxPrev = pt
		}
	}
	t.state.setCumulative(index, cost+maxPrev)

	if err := t.fanOut(t.wf.Nodes[index].Next); err != nil {
		return err
	}

	return nil
}

// fanOut concurrently traverses every index in indices and awaits all
// completions, propagating the first failure encountered.
func (t *traversal) fanOut(indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	if len(indices) == 1 {
		return t.visit(indices[0])
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(indices))
	for _, i := range indices {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := t.visit(idx); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

// nodeCost computes the time to process job at a node of the given step,
// per spec.md §4.4's node cost function. All arithmetic is performed in
// 64-bit intermediates to stay clear of 32-bit overflow for documented
// input bounds.
func nodeCost(s catalog.Step, job PrintJob) (uint64, error) {
	attrs, err := catalog.AttributesOf(catalog.KindOf(s))
	if err != nil {
		return 0, err
	}

	pages := uint64(job.PageCount)
	setup := uint64(attrs.SetupTime)
	perPage := uint64(attrs.TimePerPage)

	if s.Kind != catalog.KindRasterization {
		return pages*perPage + setup, nil
	}

	if s.NumCores < catalog.MinCores {
		return 0, &catalog.OutOfRangeParameter{Kind: s.Kind, Field: "num_cores", Value: s.NumCores, Min: catalog.MinCores, Max: catalog.MaxCores}
	}
	cores := uint64(s.NumCores)
	pagesPerCore := (pages + cores - 1) / cores // ceil(pages/cores)
	return pagesPerCore*perPage + setup, nil
}
