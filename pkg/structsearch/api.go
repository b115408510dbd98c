package structsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"structsearch/internal/chem"
	"structsearch/internal/config"
	"structsearch/internal/export"
	"structsearch/internal/rng"
	"structsearch/internal/search"
	"structsearch/internal/storage"
)

const (
	defaultExportsDir = "exports"
	defaultDBPath     = "structsearch.db"
	defaultRunsLimit  = 20
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	// Logger overrides the logger built from each run's configuration.
	Logger *slog.Logger
}

type Client struct {
	store      storage.Store
	logger     *slog.Logger
	exportsDir string
}

type GenerateRequest struct {
	Config config.RunConfig
	RunID  string
}

type GenerateSummary struct {
	RunID             string
	Created           int
	Rejected          int
	Unevaluable       int
	Calculations      int64
	BestOrganismID    string
	BestEnergyPerAtom float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID             string
	StartedAtUTC      string
	Seed              int64
	Creator           string
	Engine            string
	Space             string
	Created           int
	Unevaluable       int
	BestOrganismID    string
	BestEnergyPerAtom float64
}

type OrganismsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type OrganismItem struct {
	ID            string
	Rank          int
	Composition   string
	NumAtoms      int
	Density       float64
	Unevaluable   bool
	EnergyPerAtom float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type SampleRequest struct {
	SpaceTokens []string
	MinAtoms    int
	MaxAtoms    int
	Count       int
	Seed        int64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store, logger: opts.Logger, exportsDir: exportsDir}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Generate builds and evaluates one generation from req.Config and stores
// the ranked result.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateSummary, error) {
	if err := req.Config.Validate(); err != nil {
		return GenerateSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return GenerateSummary{}, err
	}

	rt, err := config.Build(req.Config, c.logger)
	if err != nil {
		return GenerateSummary{}, err
	}
	monitorCfg := rt.MonitorConfig(c.store)
	monitorCfg.RunID = req.RunID
	monitor, err := search.NewMonitor(monitorCfg)
	if err != nil {
		return GenerateSummary{}, err
	}

	result, err := monitor.Run(ctx)
	if err != nil {
		return GenerateSummary{}, err
	}
	rec := result.Record
	return GenerateSummary{
		RunID:             rec.ID,
		Created:           rec.Created,
		Rejected:          rec.Rejected,
		Unevaluable:       rec.Unevaluable,
		Calculations:      rec.Calculations,
		BestOrganismID:    rec.BestOrganismID,
		BestEnergyPerAtom: rec.BestEnergyPerAtom,
	}, nil
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, min(len(runs), req.Limit))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		r := runs[i]
		out = append(out, RunItem{
			RunID:             r.ID,
			StartedAtUTC:      r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Seed:              r.Seed,
			Creator:           r.Creator,
			Engine:            r.Engine,
			Space:             r.Space,
			Created:           r.Created,
			Unevaluable:       r.Unevaluable,
			BestOrganismID:    r.BestOrganismID,
			BestEnergyPerAtom: r.BestEnergyPerAtom,
		})
	}
	return out, nil
}

// Organisms lists the ranked organisms of one run.
func (c *Client) Organisms(ctx context.Context, req OrganismsRequest) ([]OrganismItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	records, err := c.store.ListOrganisms(ctx, runID)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[:req.Limit]
	}

	out := make([]OrganismItem, 0, len(records))
	for _, rec := range records {
		cell, err := search.CellFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, OrganismItem{
			ID:            rec.ID,
			Rank:          rec.Rank,
			Composition:   rec.Composition,
			NumAtoms:      cell.NumSites(),
			Density:       cell.Density(),
			Unevaluable:   rec.Unevaluable,
			EnergyPerAtom: rec.EnergyPerAtom,
		})
	}
	return out, nil
}

// Export writes one run's records and structures under req.OutDir.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("run not found: %s", runID)
	}
	organisms, err := c.store.ListOrganisms(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}

	dir, err := export.WriteRunArtifacts(req.OutDir, export.RunArtifacts{Run: run, Organisms: organisms})
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

// Contains reports whether formula lies in the space given by tokens.
func Contains(spaceTokens []string, formula string) (bool, error) {
	space, err := chem.NewCompositionSpaceFromTokens(spaceTokens)
	if err != nil {
		return false, err
	}
	comp, err := chem.ParseFormula(strings.TrimSpace(formula))
	if err != nil {
		return false, err
	}
	return space.Contains(comp), nil
}

// Sample draws req.Count integer compositions from the space.
func Sample(req SampleRequest) ([]string, error) {
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.MinAtoms < 1 || req.MaxAtoms < req.MinAtoms {
		return nil, fmt.Errorf("atom bounds must satisfy 1 <= min <= max, got [%d, %d]", req.MinAtoms, req.MaxAtoms)
	}
	space, err := chem.NewCompositionSpaceFromTokens(req.SpaceTokens)
	if err != nil {
		return nil, err
	}
	r := rng.New(req.Seed)
	out := make([]string, req.Count)
	for i := range out {
		out[i] = space.RandomIntegerComposition(r, req.MinAtoms, req.MaxAtoms).String()
	}
	return out, nil
}

func (c *Client) resolveRun(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[len(runs)-1].ID, nil
}
