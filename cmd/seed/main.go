package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/smilemakc/printflow/internal/applog"
	"github.com/smilemakc/printflow/internal/catalog"
	"github.com/smilemakc/printflow/internal/config"
	"github.com/smilemakc/printflow/internal/graph"
	"github.com/smilemakc/printflow/internal/ports"
	"github.com/smilemakc/printflow/internal/registry"
	"github.com/smilemakc/printflow/internal/storage"
)

var databaseDSN string

func init() {
	flag.StringVar(&databaseDSN, "database-dsn", "", "PostgreSQL DSN (overrides DATABASE_DSN env var)")
}

// main seeds a freshly-migrated database with a representative
// RasterizationProfile, one PrintJob and the linear/fan-out
// Workflows used to sanity-check a deployment by hand.
func main() {
	flag.Parse()

	cfg := config.Load()
	if databaseDSN != "" {
		cfg.DatabaseDSN = databaseDSN
	}
	if err := cfg.Validate(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := applog.Setup(cfg.LogLevel)
	log.Info("seeding printflow database", "dsn", cfg.MaskedDSN())

	store := storage.NewBunStore(cfg.DatabaseDSN)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close database connection", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := store.InitSchema(ctx); err != nil {
		log.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	reg := registry.New(store)
	if err := reg.Bootstrap(ctx); err != nil {
		log.Error("catalog registry bootstrap failed", "error", err)
		os.Exit(1)
	}

	profileID, err := store.InsertRasterizationProfile(ctx, ports.RasterizationProfile{
		Title:   "Default sRGB Profile",
		Payload: []byte("icc-profile-placeholder"),
	})
	if err != nil {
		log.Error("failed to seed rasterization profile", "error", err)
		os.Exit(1)
	}
	log.Info("seeded rasterization profile", "id", profileID)

	jobID, err := store.InsertPrintJob(ctx, ports.PrintJob{
		Title:                  "Quarterly Catalog Run",
		PageCount:              48,
		RasterizationProfileID: profileID,
		CreationTime:           time.Now(),
	})
	if err != nil {
		log.Error("failed to seed print job", "error", err)
		os.Exit(1)
	}
	log.Info("seeded print job", "id", jobID)

	linearID, err := seedWorkflow(ctx, store, "Linear Production Run", linearOneCoreSteps())
	if err != nil {
		log.Error("failed to seed linear workflow", "error", err)
		os.Exit(1)
	}
	log.Info("seeded workflow", "id", linearID, "title", "Linear Production Run")

	fanOutID, err := seedWorkflow(ctx, store, "Loader Fan-Out Run", fanOutSteps())
	if err != nil {
		log.Error("failed to seed fan-out workflow", "error", err)
		os.Exit(1)
	}
	log.Info("seeded workflow", "id", fanOutID, "title", "Loader Fan-Out Run")

	fmt.Println("seed complete")
	fmt.Println("rasterization profile:", profileID)
	fmt.Println("print job:           ", jobID)
	fmt.Println("linear workflow:     ", linearID)
	fmt.Println("fan-out workflow:    ", fanOutID)
}

func seedWorkflow(ctx context.Context, store *storage.BunStore, title string, steps []catalog.Step) (string, error) {
	wf, err := graph.Build(title, steps)
	if err != nil {
		return "", fmt.Errorf("build %q: %w", title, err)
	}
	nodes := make([]ports.WorkflowNodeRecord, len(wf.Nodes))
	for i, n := range wf.Nodes {
		nodes[i] = ports.WorkflowNodeRecord{Kind: n.Step.Kind, NumCores: n.Step.NumCores, Prev: n.Prev, Next: n.Next}
	}
	return store.InsertWorkflow(ctx, ports.WorkflowRecord{Title: title, Nodes: nodes})
}

// linearOneCoreSteps is the single-lane path from download through loading,
// with one rasterization core.
func linearOneCoreSteps() []catalog.Step {
	return []catalog.Step{
		{Kind: catalog.KindDownloadFile},
		{Kind: catalog.KindPreflight},
		{Kind: catalog.KindImpose},
		{Kind: catalog.KindAnalyzer},
		{Kind: catalog.KindColorSetup},
		{Kind: catalog.KindRasterization, NumCores: 1},
		{Kind: catalog.KindLoader},
	}
}

// fanOutSteps extends the linear path with the post-load finishing kinds.
// Cutting and Metrics are mutually exclusive in the same workflow: the
// catalog's adjacency rules permit an edge in both directions between them,
// which would make the Graph Builder's cycle check reject the workflow, so
// this seed sticks to the Cutting/Laminating pairing exercised elsewhere.
func fanOutSteps() []catalog.Step {
	return append(linearOneCoreSteps(),
		catalog.Step{Kind: catalog.KindCutting},
		catalog.Step{Kind: catalog.KindLaminating},
	)
}
