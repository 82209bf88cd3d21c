package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/printflow/internal/catalog"
)

func linearSteps(numCores int) []catalog.Step {
	return []catalog.Step{
		{Kind: catalog.KindDownloadFile},
		{Kind: catalog.KindPreflight},
		{Kind: catalog.KindImpose},
		{Kind: catalog.KindAnalyzer},
		{Kind: catalog.KindColorSetup},
		{Kind: catalog.KindRasterization, NumCores: numCores},
		{Kind: catalog.KindLoader},
	}
}

func TestBuild_LinearWorkflow(t *testing.T) {
	wf, err := Build("linear", linearSteps(1))
	require.NoError(t, err)
	require.Len(t, wf.Nodes, 7)

	for i := 0; i < 6; i++ {
		assert.Equal(t, []int{i + 1}, wf.Nodes[i].Next, "node %d", i)
	}
	assert.Empty(t, wf.Nodes[6].Next)
	assert.Empty(t, wf.Nodes[0].Prev)
	for i := 1; i < 7; i++ {
		assert.Equal(t, []int{i - 1}, wf.Nodes[i].Prev, "node %d", i)
	}
}

func TestBuild_ParallelFanOutAfterLoader(t *testing.T) {
	steps := append(linearSteps(2), catalog.Step{Kind: catalog.KindCutting}, catalog.Step{Kind: catalog.KindLaminating})
	wf, err := Build("fanout", steps)
	require.NoError(t, err)

	loaderIdx := 6
	cuttingIdx := 7
	laminatingIdx := 8
	// Loader feeds both Cutting and Laminating; Cutting also legally
	// precedes Laminating per the adjacency rule, so Laminating ends up
	// with two predecessors (the fan-in Loader/Cutting/Laminating/Metrics
	// rules permit, per spec.md §9's note that the rule table is a
	// permission set, not a construction grammar).
	assert.Equal(t, []int{cuttingIdx, laminatingIdx}, wf.Nodes[loaderIdx].Next)
	assert.Equal(t, []int{loaderIdx}, wf.Nodes[cuttingIdx].Prev)
	assert.Equal(t, []int{loaderIdx, cuttingIdx}, wf.Nodes[laminatingIdx].Prev)
	assert.Equal(t, []int{laminatingIdx}, wf.Nodes[cuttingIdx].Next)
	assert.Empty(t, wf.Nodes[laminatingIdx].Next)
}

func TestBuild_EmptyWorkflow(t *testing.T) {
	_, err := Build("empty", nil)
	var invalid *InvalidWorkflow
	require.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, ErrEmptyWorkflow)
}

func TestBuild_OutOfRangeParameter(t *testing.T) {
	_, err := Build("bad-cores", linearSteps(0))
	var invalid *InvalidWorkflow
	require.ErrorAs(t, err, &invalid)
	var oor *catalog.OutOfRangeParameter
	assert.ErrorAs(t, err, &oor)
}

func TestBuild_IllegalSource(t *testing.T) {
	// Preflight as the very first node has no predecessor, but Preflight
	// may not be a source.
	steps := []catalog.Step{
		{Kind: catalog.KindPreflight},
		{Kind: catalog.KindImpose},
	}
	_, err := Build("illegal-source", steps)
	var invalid *InvalidWorkflow
	require.ErrorAs(t, err, &invalid)
	var illegalSource *IllegalSource
	assert.ErrorAs(t, err, &illegalSource)
}

func TestBuild_IllegalSink(t *testing.T) {
	// DownloadFile as the last node has no successor, but DownloadFile may
	// not be a sink.
	steps := []catalog.Step{
		{Kind: catalog.KindDownloadFile},
	}
	_, err := Build("illegal-sink", steps)
	var invalid *InvalidWorkflow
	require.ErrorAs(t, err, &invalid)
	var illegalSink *IllegalSink
	assert.ErrorAs(t, err, &illegalSink)
}

func TestBuild_RejectsDisjointSteps(t *testing.T) {
	// DownloadFile/Preflight here dead-ends (Preflight has no legal next
	// step present), and Cutting/Metrics forms a cycle between themselves.
	// Either defect alone is enough to reject the workflow.
	steps := []catalog.Step{
		{Kind: catalog.KindDownloadFile},
		{Kind: catalog.KindPreflight},
		{Kind: catalog.KindCutting},
		{Kind: catalog.KindMetrics},
	}
	_, err := Build("disjoint", steps)
	var invalid *InvalidWorkflow
	require.ErrorAs(t, err, &invalid)
}

func TestBuild_Deterministic(t *testing.T) {
	steps := linearSteps(3)
	wf1, err1 := Build("det", steps)
	wf2, err2 := Build("det", steps)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, wf1.Nodes, wf2.Nodes)
}

func TestBuild_EdgeRuleAgreementBothDirections(t *testing.T) {
	wf, err := Build("linear", linearSteps(1))
	require.NoError(t, err)
	for _, node := range wf.Nodes {
		for _, j := range node.Next {
			iKind := catalog.KindOf(node.Step)
			jKind := catalog.KindOf(wf.Nodes[j].Step)
			validNext, err := catalog.ValidNext(iKind)
			require.NoError(t, err)
			validPrev, err := catalog.ValidPrev(jKind)
			require.NoError(t, err)
			assert.True(t, validNext[jKind])
			assert.True(t, validPrev[iKind])
		}
	}
}

func TestBuild_PrevNextConsistency(t *testing.T) {
	steps := append(linearSteps(2), catalog.Step{Kind: catalog.KindCutting}, catalog.Step{Kind: catalog.KindLaminating})
	wf, err := Build("consistency", steps)
	require.NoError(t, err)
	for i, node := range wf.Nodes {
		for _, j := range node.Next {
			assert.Contains(t, wf.Nodes[j].Prev, i)
		}
		for _, j := range node.Prev {
			assert.Contains(t, wf.Nodes[j].Next, i)
		}
	}
}
