// Package ports declares the interfaces the core depends on (persistence,
// request-layer collaborators) without binding to any concrete
// implementation. internal/storage satisfies these against Postgres;
// tests satisfy them with in-memory fakes.
package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/smilemakc/printflow/internal/catalog"
)

// NotFound is returned by any lookup whose id doesn't resolve to a row.
type NotFound struct {
	Resource string
	ID       string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("ports: %s %s not found", e.Resource, e.ID)
}

// PrintJob is the persisted print job record (spec.md §3). Immutable once
// created.
type PrintJob struct {
	ID                     string
	Title                  string
	PageCount              uint32
	RasterizationProfileID string
	CreationTime           time.Time
}

// RasterizationProfile is an opaque, immutable profile payload referenced
// by a PrintJob.
type RasterizationProfile struct {
	ID      string
	Title   string
	Payload []byte
}

// WorkflowRecord is the persisted shape of a built Workflow: a title plus
// one row per node (kind id, optional parameter, prev/next indices),
// already edge-validated at creation time.
type WorkflowRecord struct {
	ID    string
	Title string
	Nodes []WorkflowNodeRecord
}

type WorkflowNodeRecord struct {
	Kind     catalog.KindId
	NumCores int
	Prev     []int
	Next     []int
}

// CatalogMismatch is returned by FindWorkflow when a persisted node
// references a kind id the in-code step catalog does not recognize.
type CatalogMismatch struct {
	WorkflowID string
	Kind       catalog.KindId
}

func (e *CatalogMismatch) Error() string {
	return fmt.Sprintf("ports: workflow %s references unknown kind %d", e.WorkflowID, e.Kind)
}

// SimulationReportRecord is the persisted shape of a report, matching
// report.SimulationReport but addressed by string ids at the storage
// boundary.
type SimulationReportRecord struct {
	ID             string
	PrintJobID     string
	WorkflowID     string
	CreationTime   int64
	TotalTimeTaken uint64
	StepTimes      map[catalog.KindId]uint64
}

// PrintJobStore resolves print jobs by id and supports the supplemented
// PrintJob CRUD surface.
type PrintJobStore interface {
	FindPrintJob(ctx context.Context, id string) (PrintJob, error)
	InsertPrintJob(ctx context.Context, job PrintJob) (string, error)
	DeletePrintJob(ctx context.Context, id string) error
}

// RasterizationProfileStore backs the supplemented RasterizationProfile
// CRUD surface.
type RasterizationProfileStore interface {
	FindRasterizationProfile(ctx context.Context, id string) (RasterizationProfile, error)
	InsertRasterizationProfile(ctx context.Context, profile RasterizationProfile) (string, error)
	DeleteRasterizationProfile(ctx context.Context, id string) error
}

// WorkflowStore resolves and persists Workflow DAGs.
type WorkflowStore interface {
	// FindWorkflow reconstructs a WorkflowRecord, checking each node's kind
	// id against the in-code step catalog (not the bootstrapped registry); a
	// node referencing an unknown kind id yields CatalogMismatch. The stored
	// prev/next indices are returned as persisted; edges are not re-inferred.
	FindWorkflow(ctx context.Context, id string) (WorkflowRecord, error)
	InsertWorkflow(ctx context.Context, wf WorkflowRecord) (string, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// SimulationReportStore persists simulation results.
type SimulationReportStore interface {
	InsertSimulationReport(ctx context.Context, rep SimulationReportRecord) (string, error)
	FindSimulationReport(ctx context.Context, id string) (SimulationReportRecord, error)
	DeleteSimulationReport(ctx context.Context, id string) error
}

// ErrorLogEntry records a boundary failure for operability, grounded on
// original_source's ErrorDetailed/`/Log/Error` route.
type ErrorLogEntry struct {
	Domain    string
	Request   string
	Method    string
	Response  string
	Status    int
	Timestamp time.Time
}

// ErrorLogStore persists boundary failures. A supplemented feature beyond
// the core's contract: the core never calls it directly, only internal/
// httpapi's Server.fail error path does.
type ErrorLogStore interface {
	InsertErrorLog(ctx context.Context, entry ErrorLogEntry) error
}
