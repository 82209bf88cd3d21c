// Package httpapi is the thin net/http surface over the core: request
// parsing, routing, and error-taxonomy-to-status-code mapping (spec.md
// §6/§7). It carries none of the core's algorithmic design — every
// handler below is a translation layer around internal/catalog,
// internal/graph, internal/simulate, internal/report and internal/ports.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/smilemakc/printflow/internal/catalog"
	"github.com/smilemakc/printflow/internal/graph"
	"github.com/smilemakc/printflow/internal/ports"
	"github.com/smilemakc/printflow/internal/registry"
	"github.com/smilemakc/printflow/internal/report"
	"github.com/smilemakc/printflow/internal/simulate"
)

// Core is everything a handler needs: the bootstrapped registry and the
// C6 collaborators. Server holds one Core for its lifetime.
type Core struct {
	Registry  *registry.Registry
	PrintJobs ports.PrintJobStore
	Profiles  ports.RasterizationProfileStore
	Workflows ports.WorkflowStore
	Reports   ports.SimulationReportStore
	ErrorLogs ports.ErrorLogStore
	Clock     report.Clock
}

type Server struct {
	core   Core
	mux    *http.ServeMux
	logger *slog.Logger
}

func NewServer(core Core, logger *slog.Logger) *Server {
	s := &Server{core: core, mux: http.NewServeMux(), logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /WorkflowStep", s.handleListStepKinds)

	s.mux.HandleFunc("POST /PrintJob", s.handleCreatePrintJob)
	s.mux.HandleFunc("GET /PrintJob/{id}", s.handleGetPrintJob)
	s.mux.HandleFunc("DELETE /PrintJob/{id}", s.handleDeletePrintJob)

	s.mux.HandleFunc("POST /RasterizationProfile", s.handleCreateRasterizationProfile)
	s.mux.HandleFunc("GET /RasterizationProfile/{id}", s.handleGetRasterizationProfile)
	s.mux.HandleFunc("DELETE /RasterizationProfile/{id}", s.handleDeleteRasterizationProfile)

	s.mux.HandleFunc("POST /Workflow", s.handleCreateWorkflow)
	s.mux.HandleFunc("GET /Workflow/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("DELETE /Workflow/{id}", s.handleDeleteWorkflow)

	s.mux.HandleFunc("POST /SimulationReport", s.handleCreateSimulationReport)
	s.mux.HandleFunc("GET /SimulationReport/{id}", s.handleGetSimulationReport)
	s.mux.HandleFunc("DELETE /SimulationReport/{id}", s.handleDeleteSimulationReport)
	s.mux.HandleFunc("GET /SimulationReport/{id}/WorkflowStep/Time", s.handleGetSimulationReportStepTimes)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := loggingMiddleware(s.logger, corsMiddleware(contentTypeMiddleware(recoveryMiddleware(s.logger, s.mux))))
	handler.ServeHTTP(w, r)
}

// statusFor maps the error taxonomy of spec.md §7 onto an HTTP status
// code.
func statusFor(err error) int {
	var notFound *ports.NotFound
	var invalidWorkflow *graph.InvalidWorkflow
	var invalidStep *catalog.InvalidStep
	var catalogMismatch *ports.CatalogMismatch
	var simErr *simulate.SimulationError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalidWorkflow), errors.As(err, &invalidStep), errors.As(err, &catalogMismatch):
		return http.StatusUnprocessableEntity
	case errors.As(err, &simErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	writeErr(w, s.logger, status, err.Error())
	if s.core.ErrorLogs != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		_ = s.core.ErrorLogs.InsertErrorLog(ctx, ports.ErrorLogEntry{
			Domain:    "httpapi",
			Request:   r.URL.Path,
			Method:    r.Method,
			Response:  err.Error(),
			Status:    status,
			Timestamp: time.Now(),
		})
	}
}

// workflowCreateRequest/workflowStepWire carry catalog.Record over the
// wire (spec.md §6's StepAttributes record plus the variant field).
type workflowCreateRequest struct {
	Title string           `json:"title"`
	Steps []catalog.Record `json:"steps"`
}

type workflowStepWire struct {
	Data catalog.Record `json:"data"`
	Prev []int          `json:"prev"`
	Next []int          `json:"next"`
}

type workflowResponse struct {
	ID    string             `json:"id"`
	Title string             `json:"title"`
	Steps []workflowStepWire `json:"steps"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowCreateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeErr(w, s.logger, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	steps := make([]catalog.Step, len(req.Steps))
	for i, rec := range req.Steps {
		step, err := catalog.Deserialize(rec)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		steps[i] = step
	}

	wf, err := graph.Build(req.Title, steps)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id, err := s.core.Workflows.InsertWorkflow(r.Context(), toWorkflowRecord(req.Title, wf))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, id)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.core.Workflows.FindWorkflow(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, toWorkflowResponse(rec))
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.core.Workflows.DeleteWorkflow(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, nil)
}

func (s *Server) handleListStepKinds(w http.ResponseWriter, r *http.Request) {
	kinds := catalog.AllKinds()
	out := make([]catalog.Record, 0, len(kinds))
	for _, kind := range kinds {
		rec, err := catalog.Serialize(catalog.Step{Kind: kind})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out = append(out, rec)
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

type printJobCreateRequest struct {
	Title                  string `json:"title"`
	PageCount              uint32 `json:"page_count"`
	RasterizationProfileID string `json:"rasterization_profile_id"`
}

func (s *Server) handleCreatePrintJob(w http.ResponseWriter, r *http.Request) {
	var req printJobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, s.logger, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	id, err := s.core.PrintJobs.InsertPrintJob(r.Context(), ports.PrintJob{
		Title: req.Title, PageCount: req.PageCount, RasterizationProfileID: req.RasterizationProfileID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, id)
}

func (s *Server) handleGetPrintJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.core.PrintJobs.FindPrintJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, job)
}

func (s *Server) handleDeletePrintJob(w http.ResponseWriter, r *http.Request) {
	if err := s.core.PrintJobs.DeletePrintJob(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, nil)
}

type profileCreateRequest struct {
	Title   string `json:"title"`
	Payload []byte `json:"payload"`
}

func (s *Server) handleCreateRasterizationProfile(w http.ResponseWriter, r *http.Request) {
	var req profileCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, s.logger, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	id, err := s.core.Profiles.InsertRasterizationProfile(r.Context(), ports.RasterizationProfile{Title: req.Title, Payload: req.Payload})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, id)
}

func (s *Server) handleGetRasterizationProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.core.Profiles.FindRasterizationProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, profile)
}

func (s *Server) handleDeleteRasterizationProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Profiles.DeleteRasterizationProfile(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, nil)
}

type simulationReportCreateRequest struct {
	PrintJobID string `json:"PrintJobID"`
	WorkflowID string `json:"WorkflowID"`
}

func (s *Server) handleCreateSimulationReport(w http.ResponseWriter, r *http.Request) {
	var req simulationReportCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, s.logger, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	job, err := s.core.PrintJobs.FindPrintJob(r.Context(), req.PrintJobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wfRecord, err := s.core.Workflows.FindWorkflow(r.Context(), req.WorkflowID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	wf := fromWorkflowRecord(wfRecord)
	result, err := simulate.Simulate(r.Context(), wf, simulate.PrintJob{PageCount: job.PageCount})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rep := report.Assemble(s.core.Clock, req.PrintJobID, req.WorkflowID, result)
	id, err := s.core.Reports.InsertSimulationReport(r.Context(), toReportRecord(rep))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, id)
}

func (s *Server) handleGetSimulationReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.core.Reports.FindSimulationReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, rec)
}

func (s *Server) handleDeleteSimulationReport(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Reports.DeleteSimulationReport(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, nil)
}

func (s *Server) handleGetSimulationReportStepTimes(w http.ResponseWriter, r *http.Request) {
	rec, err := s.core.Reports.FindSimulationReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, rec.StepTimes)
}
