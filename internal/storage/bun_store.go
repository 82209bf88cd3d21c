// Package storage is the bun/Postgres-backed implementation of
// internal/ports and internal/registry.CatalogStore, adapted from the
// teacher's internal/infrastructure/storage/bun_store.go: a thin BunStore
// wrapping *bun.DB, one model per table, and RunInTx for any write that
// touches more than one table.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/printflow/internal/catalog"
	"github.com/smilemakc/printflow/internal/ports"
	"github.com/smilemakc/printflow/internal/registry"
)

type BunStore struct {
	db *bun.DB
}

func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []interface{}{
		(*PrintJobModel)(nil),
		(*RasterizationProfileModel)(nil),
		(*WorkflowModel)(nil),
		(*WorkflowNodeModel)(nil),
		(*CatalogKindModel)(nil),
		(*SimulationReportModel)(nil),
		(*SimulationReportStepTimeModel)(nil),
		(*ErrorLogModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *BunStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *BunStore) Close() error                   { return s.db.Close() }

// PrintJob

type PrintJobModel struct {
	bun.BaseModel `bun:"table:print_jobs,alias:pj"`

	ID                     uuid.UUID `bun:"id,pk"`
	Title                  string    `bun:"title"`
	PageCount              uint32    `bun:"page_count"`
	RasterizationProfileID uuid.UUID `bun:"rasterization_profile_id"`
	CreatedAt              time.Time `bun:"created_at"`
}

func (m *PrintJobModel) toPort() ports.PrintJob {
	return ports.PrintJob{
		ID:                     m.ID.String(),
		Title:                  m.Title,
		PageCount:              m.PageCount,
		RasterizationProfileID: m.RasterizationProfileID.String(),
		CreationTime:           m.CreatedAt,
	}
}

func (s *BunStore) FindPrintJob(ctx context.Context, id string) (ports.PrintJob, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ports.PrintJob{}, &ports.NotFound{Resource: "PrintJob", ID: id}
	}
	model := new(PrintJobModel)
	if err := s.db.NewSelect().Model(model).Where("id = ?", parsed).Scan(ctx); err != nil {
		return ports.PrintJob{}, &ports.NotFound{Resource: "PrintJob", ID: id}
	}
	return model.toPort(), nil
}

func (s *BunStore) InsertPrintJob(ctx context.Context, job ports.PrintJob) (string, error) {
	profileID, err := uuid.Parse(job.RasterizationProfileID)
	if err != nil {
		return "", err
	}
	id := uuid.New()
	model := &PrintJobModel{
		ID:                     id,
		Title:                  job.Title,
		PageCount:              job.PageCount,
		RasterizationProfileID: profileID,
		CreatedAt:              time.Now(),
	}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *BunStore) DeletePrintJob(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return &ports.NotFound{Resource: "PrintJob", ID: id}
	}
	_, err = s.db.NewDelete().Model((*PrintJobModel)(nil)).Where("id = ?", parsed).Exec(ctx)
	return err
}

// RasterizationProfile

type RasterizationProfileModel struct {
	bun.BaseModel `bun:"table:rasterization_profiles,alias:rp"`

	ID      uuid.UUID `bun:"id,pk"`
	Title   string    `bun:"title"`
	Payload []byte    `bun:"payload"`
}

func (m *RasterizationProfileModel) toPort() ports.RasterizationProfile {
	return ports.RasterizationProfile{ID: m.ID.String(), Title: m.Title, Payload: m.Payload}
}

func (s *BunStore) FindRasterizationProfile(ctx context.Context, id string) (ports.RasterizationProfile, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ports.RasterizationProfile{}, &ports.NotFound{Resource: "RasterizationProfile", ID: id}
	}
	model := new(RasterizationProfileModel)
	if err := s.db.NewSelect().Model(model).Where("id = ?", parsed).Scan(ctx); err != nil {
		return ports.RasterizationProfile{}, &ports.NotFound{Resource: "RasterizationProfile", ID: id}
	}
	return model.toPort(), nil
}

func (s *BunStore) InsertRasterizationProfile(ctx context.Context, profile ports.RasterizationProfile) (string, error) {
	id := uuid.New()
	model := &RasterizationProfileModel{ID: id, Title: profile.Title, Payload: profile.Payload}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *BunStore) DeleteRasterizationProfile(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return &ports.NotFound{Resource: "RasterizationProfile", ID: id}
	}
	_, err = s.db.NewDelete().Model((*RasterizationProfileModel)(nil)).Where("id = ?", parsed).Exec(ctx)
	return err
}

// Workflow + WorkflowNode

type WorkflowModel struct {
	bun.BaseModel `bun:"table:workflows,alias:wf"`

	ID    uuid.UUID `bun:"id,pk"`
	Title string    `bun:"title"`
}

type WorkflowNodeModel struct {
	bun.BaseModel `bun:"table:workflow_nodes,alias:wfn"`

	ID         int64          `bun:"id,pk,autoincrement"`
	WorkflowID uuid.UUID      `bun:"workflow_id"`
	Position   int            `bun:"position"`
	Kind       catalog.KindId `bun:"kind"`
	NumCores   int            `bun:"num_cores"`
	Prev       []int          `bun:"prev,type:jsonb"`
	Next       []int          `bun:"next,type:jsonb"`
}

func (s *BunStore) FindWorkflow(ctx context.Context, id string) (ports.WorkflowRecord, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ports.WorkflowRecord{}, &ports.NotFound{Resource: "Workflow", ID: id}
	}

	wfModel := new(WorkflowModel)
	if err := s.db.NewSelect().Model(wfModel).Where("id = ?", parsed).Scan(ctx); err != nil {
		return ports.WorkflowRecord{}, &ports.NotFound{Resource: "Workflow", ID: id}
	}

	var nodeModels []WorkflowNodeModel
	if err := s.db.NewSelect().Model(&nodeModels).Where("workflow_id = ?", parsed).Order("position ASC").Scan(ctx); err != nil {
		return ports.WorkflowRecord{}, err
	}

	nodes := make([]ports.WorkflowNodeRecord, len(nodeModels))
	for i, m := range nodeModels {
		if _, err := catalog.AttributesOf(m.Kind); err != nil {
			return ports.WorkflowRecord{}, &ports.CatalogMismatch{WorkflowID: id, Kind: m.Kind}
		}
		nodes[i] = ports.WorkflowNodeRecord{Kind: m.Kind, NumCores: m.NumCores, Prev: m.Prev, Next: m.Next}
	}

	return ports.WorkflowRecord{ID: wfModel.ID.String(), Title: wfModel.Title, Nodes: nodes}, nil
}

func (s *BunStore) InsertWorkflow(ctx context.Context, wf ports.WorkflowRecord) (string, error) {
	id := uuid.New()
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		model := &WorkflowModel{ID: id, Title: wf.Title}
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return err
		}
		if len(wf.Nodes) == 0 {
			return nil
		}
		nodeModels := make([]*WorkflowNodeModel, len(wf.Nodes))
		for i, n := range wf.Nodes {
			nodeModels[i] = &WorkflowNodeModel{
				WorkflowID: id,
				Position:   i,
				Kind:       n.Kind,
				NumCores:   n.NumCores,
				Prev:       n.Prev,
				Next:       n.Next,
			}
		}
		_, err := tx.NewInsert().Model(&nodeModels).Exec(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *BunStore) DeleteWorkflow(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return &ports.NotFound{Resource: "Workflow", ID: id}
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*WorkflowNodeModel)(nil)).Where("workflow_id = ?", parsed).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*WorkflowModel)(nil)).Where("id = ?", parsed).Exec(ctx)
		return err
	})
}

// CatalogKind — backs internal/registry.CatalogStore.

type CatalogKindModel struct {
	bun.BaseModel `bun:"table:catalog_kinds,alias:ck"`

	ID catalog.KindId `bun:"id,pk"`
}

func (s *BunStore) CatalogIds(ctx context.Context) ([]catalog.KindId, error) {
	var models []CatalogKindModel
	if err := s.db.NewSelect().Model(&models).Scan(ctx); err != nil {
		return nil, err
	}
	ids := make([]catalog.KindId, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids, nil
}

func (s *BunStore) InsertCatalogId(ctx context.Context, id catalog.KindId) error {
	_, err := s.db.NewInsert().Model(&CatalogKindModel{ID: id}).Exec(ctx)
	return err
}

func (s *BunStore) RemoveCatalogId(ctx context.Context, id catalog.KindId) error {
	count, err := s.db.NewSelect().Model((*WorkflowNodeModel)(nil)).Where("kind = ?", id).Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return registry.ErrReferentialIntegrity
	}
	_, err = s.db.NewDelete().Model((*CatalogKindModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// SimulationReport

type SimulationReportModel struct {
	bun.BaseModel `bun:"table:simulation_reports,alias:sr"`

	ID             uuid.UUID `bun:"id,pk"`
	PrintJobID     uuid.UUID `bun:"print_job_id"`
	WorkflowID     uuid.UUID `bun:"workflow_id"`
	CreationTime   int64     `bun:"creation_time"`
	TotalTimeTaken uint64    `bun:"total_time_taken"`
}

type SimulationReportStepTimeModel struct {
	bun.BaseModel `bun:"table:simulation_report_step_times,alias:srst"`

	ReportID uuid.UUID      `bun:"report_id,pk"`
	Kind     catalog.KindId `bun:"kind,pk"`
	Time     uint64         `bun:"time"`
}

func (s *BunStore) InsertSimulationReport(ctx context.Context, rep ports.SimulationReportRecord) (string, error) {
	printJobID, err := uuid.Parse(rep.PrintJobID)
	if err != nil {
		return "", err
	}
	workflowID, err := uuid.Parse(rep.WorkflowID)
	if err != nil {
		return "", err
	}
	id := uuid.New()
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		model := &SimulationReportModel{
			ID:             id,
			PrintJobID:     printJobID,
			WorkflowID:     workflowID,
			CreationTime:   rep.CreationTime,
			TotalTimeTaken: rep.TotalTimeTaken,
		}
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return err
		}
		if len(rep.StepTimes) == 0 {
			return nil
		}
		stepModels := make([]*SimulationReportStepTimeModel, 0, len(rep.StepTimes))
		for kind, t := range rep.StepTimes {
			stepModels = append(stepModels, &SimulationReportStepTimeModel{ReportID: id, Kind: kind, Time: t})
		}
		_, err := tx.NewInsert().Model(&stepModels).Exec(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *BunStore) FindSimulationReport(ctx context.Context, id string) (ports.SimulationReportRecord, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ports.SimulationReportRecord{}, &ports.NotFound{Resource: "SimulationReport", ID: id}
	}

	model := new(SimulationReportModel)
	if err := s.db.NewSelect().Model(model).Where("id = ?", parsed).Scan(ctx); err != nil {
		return ports.SimulationReportRecord{}, &ports.NotFound{Resource: "SimulationReport", ID: id}
	}

	var stepModels []SimulationReportStepTimeModel
	if err := s.db.NewSelect().Model(&stepModels).Where("report_id = ?", parsed).Scan(ctx); err != nil {
		return ports.SimulationReportRecord{}, err
	}
	stepTimes := make(map[catalog.KindId]uint64, len(stepModels))
	for _, m := range stepModels {
		stepTimes[m.Kind] = m.Time
	}

	return ports.SimulationReportRecord{
		ID:             model.ID.String(),
		PrintJobID:     model.PrintJobID.String(),
		WorkflowID:     model.WorkflowID.String(),
		CreationTime:   model.CreationTime,
		TotalTimeTaken: model.TotalTimeTaken,
		StepTimes:      stepTimes,
	}, nil
}

func (s *BunStore) DeleteSimulationReport(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return &ports.NotFound{Resource: "SimulationReport", ID: id}
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*SimulationReportStepTimeModel)(nil)).Where("report_id = ?", parsed).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*SimulationReportModel)(nil)).Where("id = ?", parsed).Exec(ctx)
		return err
	})
}

// ErrorLog — supplemented, grounded on original_source's ErrorDetailed/`/Log/Error`.

type ErrorLogModel struct {
	bun.BaseModel `bun:"table:error_logs,alias:el"`

	ID        uuid.UUID `bun:"id,pk"`
	Domain    string    `bun:"domain"`
	Request   string    `bun:"request"`
	Method    string    `bun:"method"`
	Response  string    `bun:"response"`
	Status    int       `bun:"status"`
	Timestamp time.Time `bun:"timestamp"`
}

func (s *BunStore) InsertErrorLog(ctx context.Context, entry ports.ErrorLogEntry) error {
	model := &ErrorLogModel{
		ID:        uuid.New(),
		Domain:    entry.Domain,
		Request:   entry.Request,
		Method:    entry.Method,
		Response:  entry.Response,
		Status:    entry.Status,
		Timestamp: entry.Timestamp,
	}
	_, err := s.db.NewInsert().Model(model).Exec(ctx)
	return err
}
