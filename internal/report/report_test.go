package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smilemakc/printflow/internal/catalog"
	"github.com/smilemakc/printflow/internal/simulate"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestAssemble_PackagesSimulatorOutput(t *testing.T) {
	clock := fixedClock{at: time.Unix(1_700_000_000, 0)}
	result := simulate.Result{
		TotalTime:     642,
		StepTimesByID: map[catalog.KindId]uint64{catalog.KindDownloadFile: 10},
	}

	rep := Assemble(clock, "job-7", "workflow-9", result)

	assert.Equal(t, "job-7", rep.PrintJobID)
	assert.Equal(t, "workflow-9", rep.WorkflowID)
	assert.EqualValues(t, 1_700_000_000, rep.CreationTime)
	assert.EqualValues(t, 642, rep.TotalTimeTaken)
	assert.Equal(t, result.StepTimesByID, rep.StepTimes)
	assert.Zero(t, rep.ID)
}
