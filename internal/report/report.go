// Package report assembles a SimulationReport value from a simulator run.
// The only impurity is a wall-clock read for the creation timestamp.
package report

import (
	"log/slog"
	"time"

	"github.com/smilemakc/printflow/internal/catalog"
	"github.com/smilemakc/printflow/internal/simulate"
)

// SimulationReport packages the result of one simulate call against a
// PrintJob and a Workflow. PrintJobID/WorkflowID/ID are the external uuid
// identifiers assigned by the storage layer.
type SimulationReport struct {
	ID             string
	PrintJobID     string
	WorkflowID     string
	CreationTime   int64 // seconds since epoch
	TotalTimeTaken uint64
	StepTimes      map[catalog.KindId]uint64
}

// Clock abstracts the wall-clock read so report assembly stays testable
// without depending on the real time package in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Assemble packages a simulator Result into a SimulationReport. ID is left
// empty; the storage layer assigns it on insert.
func Assemble(clock Clock, printJobID, workflowID string, result simulate.Result) SimulationReport {
	rep := SimulationReport{
		PrintJobID:     printJobID,
		WorkflowID:     workflowID,
		CreationTime:   clock.Now().Unix(),
		TotalTimeTaken: result.TotalTime,
		StepTimes:      result.StepTimesByID,
	}
	slog.Default().Debug("report: assembled simulation report",
		"print_job_id", printJobID, "workflow_id", workflowID, "total_time", rep.TotalTimeTaken)
	return rep
}
