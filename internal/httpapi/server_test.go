package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/printflow/internal/catalog"
	"github.com/smilemakc/printflow/internal/ports"
)

type fakePrintJobStore struct {
	jobs map[string]ports.PrintJob
}

func newFakePrintJobStore() *fakePrintJobStore { return &fakePrintJobStore{jobs: map[string]ports.PrintJob{}} }

func (f *fakePrintJobStore) FindPrintJob(ctx context.Context, id string) (ports.PrintJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return ports.PrintJob{}, &ports.NotFound{Resource: "PrintJob", ID: id}
	}
	return job, nil
}

func (f *fakePrintJobStore) InsertPrintJob(ctx context.Context, job ports.PrintJob) (string, error) {
	id := "job-1"
	f.jobs[id] = job
	return id, nil
}

func (f *fakePrintJobStore) DeletePrintJob(ctx context.Context, id string) error {
	delete(f.jobs, id)
	return nil
}

type fakeWorkflowStore struct {
	workflows map[string]ports.WorkflowRecord
	nextID    int
}

func newFakeWorkflowStore() *fakeWorkflowStore {
	return &fakeWorkflowStore{workflows: map[string]ports.WorkflowRecord{}}
}

func (f *fakeWorkflowStore) FindWorkflow(ctx context.Context, id string) (ports.WorkflowRecord, error) {
	wf, ok := f.workflows[id]
	if !ok {
		return ports.WorkflowRecord{}, &ports.NotFound{Resource: "Workflow", ID: id}
	}
	return wf, nil
}

func (f *fakeWorkflowStore) InsertWorkflow(ctx context.Context, wf ports.WorkflowRecord) (string, error) {
	f.nextID++
	id := "wf-" + string(rune('0'+f.nextID))
	wf.ID = id
	f.workflows[id] = wf
	return id, nil
}

func (f *fakeWorkflowStore) DeleteWorkflow(ctx context.Context, id string) error {
	delete(f.workflows, id)
	return nil
}

type fakeReportStore struct {
	reports map[string]ports.SimulationReportRecord
	nextID  int
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: map[string]ports.SimulationReportRecord{}}
}

func (f *fakeReportStore) InsertSimulationReport(ctx context.Context, rep ports.SimulationReportRecord) (string, error) {
	f.nextID++
	id := "report-" + string(rune('0'+f.nextID))
	rep.ID = id
	f.reports[id] = rep
	return id, nil
}

func (f *fakeReportStore) FindSimulationReport(ctx context.Context, id string) (ports.SimulationReportRecord, error) {
	rep, ok := f.reports[id]
	if !ok {
		return ports.SimulationReportRecord{}, &ports.NotFound{Resource: "SimulationReport", ID: id}
	}
	return rep, nil
}

func (f *fakeReportStore) DeleteSimulationReport(ctx context.Context, id string) error {
	delete(f.reports, id)
	return nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func newTestServer() (*Server, *fakePrintJobStore, *fakeWorkflowStore, *fakeReportStore) {
	jobs := newFakePrintJobStore()
	workflows := newFakeWorkflowStore()
	reports := newFakeReportStore()
	core := Core{
		PrintJobs: jobs,
		Workflows: workflows,
		Reports:   reports,
		Clock:     fixedClock{at: time.Unix(1_700_000_000, 0)},
	}
	return NewServer(core, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))), jobs, workflows, reports
}

func linearStepRecords(numCores int) []catalog.Record {
	cores := numCores
	return []catalog.Record{
		{ID: catalog.KindDownloadFile},
		{ID: catalog.KindPreflight},
		{ID: catalog.KindImpose},
		{ID: catalog.KindAnalyzer},
		{ID: catalog.KindColorSetup},
		{ID: catalog.KindRasterization, NumCores: &cores},
		{ID: catalog.KindLoader},
	}
}

func TestHandleCreateWorkflow_Valid(t *testing.T) {
	server, _, workflows, _ := newTestServer()

	body, err := json.Marshal(workflowCreateRequest{Title: "linear", Steps: linearStepRecords(1)})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/Workflow", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, 201, rec.Code)
	assert.Len(t, workflows.workflows, 1)
}

func TestHandleCreateWorkflow_EmptyStepsRejected(t *testing.T) {
	server, _, _, _ := newTestServer()

	body, err := json.Marshal(workflowCreateRequest{Title: "empty", Steps: nil})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/Workflow", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, 422, rec.Code)
}

func TestHandleCreateWorkflow_UnknownFieldRejected(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest("POST", "/Workflow", bytes.NewReader([]byte(`{"title":"x","steps":[],"extra":true}`)))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, 422, rec.Code)
}

func TestHandleCreateSimulationReport_EndToEnd(t *testing.T) {
	server, jobs, workflows, reports := newTestServer()

	jobID, err := jobs.InsertPrintJob(context.Background(), ports.PrintJob{Title: "job", PageCount: 10})
	require.NoError(t, err)

	wfID, err := workflows.InsertWorkflow(context.Background(), ports.WorkflowRecord{
		Title: "linear",
		Nodes: []ports.WorkflowNodeRecord{
			{Kind: catalog.KindDownloadFile, Next: []int{1}},
			{Kind: catalog.KindPreflight, Prev: []int{0}, Next: []int{2}},
			{Kind: catalog.KindImpose, Prev: []int{1}, Next: []int{3}},
			{Kind: catalog.KindAnalyzer, Prev: []int{2}, Next: []int{4}},
			{Kind: catalog.KindColorSetup, Prev: []int{3}, Next: []int{5}},
			{Kind: catalog.KindRasterization, NumCores: 1, Prev: []int{4}, Next: []int{6}},
			{Kind: catalog.KindLoader, Prev: []int{5}},
		},
	})
	require.NoError(t, err)

	body, err := json.Marshal(simulationReportCreateRequest{PrintJobID: jobID, WorkflowID: wfID})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/SimulationReport", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, 201, rec.Code)
	require.Len(t, reports.reports, 1)
	for _, rep := range reports.reports {
		assert.EqualValues(t, 642, rep.TotalTimeTaken)
		assert.EqualValues(t, 1_700_000_000, rep.CreationTime)
	}
}

func TestHandleCreateSimulationReport_UnknownPrintJob(t *testing.T) {
	server, _, workflows, _ := newTestServer()

	wfID, err := workflows.InsertWorkflow(context.Background(), ports.WorkflowRecord{
		Title: "single",
		Nodes: []ports.WorkflowNodeRecord{{Kind: catalog.KindDownloadFile, Next: []int{}}},
	})
	require.NoError(t, err)

	body, err := json.Marshal(simulationReportCreateRequest{PrintJobID: "missing", WorkflowID: wfID})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/SimulationReport", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestHandleListStepKinds(t *testing.T) {
	server, _, _, _ := newTestServer()

	req := httptest.NewRequest("GET", "/WorkflowStep", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	var records []catalog.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 10)
}
