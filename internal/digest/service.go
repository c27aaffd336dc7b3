// Package digest assembles the daily paper pipeline from its parts
// and runs it end to end: fetch candidates, filter for relevance,
// analyze survivors, and write the Markdown report.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/paperwatch/internal/analysis"
	"github.com/fyrsmithlabs/paperwatch/internal/cache"
	"github.com/fyrsmithlabs/paperwatch/internal/config"
	"github.com/fyrsmithlabs/paperwatch/internal/fetch"
	"github.com/fyrsmithlabs/paperwatch/internal/llm"
	"github.com/fyrsmithlabs/paperwatch/internal/logging"
	"github.com/fyrsmithlabs/paperwatch/internal/pipeline"
	"github.com/fyrsmithlabs/paperwatch/internal/relevance"
	"github.com/fyrsmithlabs/paperwatch/internal/report"
	"github.com/fyrsmithlabs/paperwatch/internal/telemetry"
)

// Service owns one configured pipeline and its collaborators.
type Service struct {
	cfg *config.Config
	log *logging.Logger

	fetcher     *fetch.Fetcher
	classifier  *relevance.Classifier
	agent       *analysis.Agent
	synthesizer *report.Synthesizer
	store       *cache.Store
	metrics     *pipeline.Metrics
}

// RunResult is what one pipeline run produced.
type RunResult struct {
	RunID      string                  `json:"run_id"`
	Status     pipeline.Status         `json:"status"`
	AbortStage string                  `json:"abort_stage,omitempty"`
	AbortReason string                 `json:"abort_reason,omitempty"`
	Stages     []pipeline.StageSummary `json:"stages"`
	ReportPath string                  `json:"report_path,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}

// Completed reports whether the run produced a report.
func (r RunResult) Completed() bool {
	return r.Status == pipeline.StatusCompleted
}

// NewService builds a Service from configuration. Telemetry may be a
// disabled instance; metrics then fall back to the global no-op meter.
func NewService(cfg *config.Config, log *logging.Logger, tel *telemetry.Telemetry) (*Service, error) {
	cheap, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey.Value(),
		Model:       cfg.LLM.CheapModel,
		Temperature: cfg.LLM.CheapTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cheap model client: %w", err)
	}

	expensive, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey.Value(),
		Model:       cfg.LLM.ExpensiveModel,
		Temperature: cfg.LLM.ExpensiveTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("creating expensive model client: %w", err)
	}

	sources, err := buildSources(cfg.Fetch)
	if err != nil {
		return nil, err
	}

	var store *cache.Store
	if cfg.Cache.Enabled {
		store, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
	}

	metrics, err := pipeline.NewMetrics(tel.Meter("paperwatch/pipeline"))
	if err != nil {
		return nil, fmt.Errorf("creating pipeline metrics: %w", err)
	}

	return &Service{
		cfg:         cfg,
		log:         log,
		fetcher:     fetch.NewFetcher(sources, cfg.Fetch.Window.Duration()),
		classifier:  relevance.NewClassifier(cheap),
		agent:       analysis.NewAgent(expensive),
		synthesizer: report.NewSynthesizer(report.WithTitle(cfg.Report.Title)),
		store:       store,
		metrics:     metrics,
	}, nil
}

// buildSources instantiates the configured preprint sources.
func buildSources(cfg config.FetchConfig) ([]fetch.Source, error) {
	timeout := cfg.Timeout.Duration()

	var sources []fetch.Source
	for _, name := range cfg.Sources {
		switch name {
		case "arxiv":
			sources = append(sources, fetch.NewArxivSource(cfg.ArxivCategories, cfg.MaxResults, cfg.RequestsPerSecond,
				fetch.WithArxivTimeout(timeout)))
		case "biorxiv":
			sources = append(sources, fetch.NewBiorxivSource(cfg.RequestsPerSecond, fetch.WithRxivTimeout(timeout)))
		case "medrxiv":
			sources = append(sources, fetch.NewMedrxivSource(cfg.RequestsPerSecond, fetch.WithRxivTimeout(timeout)))
		case "chemrxiv":
			sources = append(sources, fetch.NewChemrxivSource(cfg.MaxResults, cfg.RequestsPerSecond,
				fetch.WithChemrxivTimeout(timeout)))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return sources, nil
}

// Run executes one full pipeline pass and writes the report and run
// artifact to the output directory.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithLogger(ctx, s.log)
	log := s.log

	started := time.Now().UTC()
	log.Info(ctx, "starting pipeline run", zap.String("run_id", runID))

	orch := pipeline.NewOrchestrator(s.collaborators(), pipeline.Options{
		Cheap:            s.cheapProfile(),
		Expensive:        s.expensiveProfile(),
		Concurrency:      s.cfg.Pipeline.Concurrency,
		AllowEmptyReport: s.cfg.Pipeline.AllowEmptyReport,
		Metrics:          s.metrics,
	})

	outcome, state := orch.Run(ctx)

	result := RunResult{
		RunID:       runID,
		Status:      outcome.Status,
		AbortStage:  outcome.AbortStage,
		AbortReason: outcome.AbortReason,
		Stages:      state.Summary(),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
	}

	if outcome.Completed() {
		path, err := s.synthesizer.Write(s.cfg.Report.OutputDir, outcome.Report)
		if err != nil {
			return result, fmt.Errorf("saving report: %w", err)
		}
		result.ReportPath = path
		log.Info(ctx, "report written", zap.String("path", path))

		if err := s.markProcessed(ctx, state); err != nil {
			// The report exists; a stale cache only means rework
			// tomorrow. Log and keep the run successful.
			log.Error(ctx, "updating cache failed", zap.Error(err))
		}
	}

	if err := s.writeArtifact(ctx, result); err != nil {
		log.Error(ctx, "writing run artifact failed", zap.Error(err))
	}

	return result, nil
}

// collaborators adapts the domain components to the orchestrator's
// stage functions.
func (s *Service) collaborators() pipeline.Collaborators[fetch.Paper, analysis.Record] {
	return pipeline.Collaborators[fetch.Paper, analysis.Record]{
		Fetch: s.fetchCandidates,
		Classify: func(ctx context.Context, paper fetch.Paper) (bool, error) {
			verdict, err := s.classifier.Classify(ctx, paper)
			if err != nil {
				return false, err
			}
			return verdict.IsRelevant, nil
		},
		Analyze: s.agent.Analyze,
		Synthesize: func(ctx context.Context, records []analysis.Record) (string, error) {
			return s.synthesizer.Synthesize(records)
		},
	}
}

// fetchCandidates fetches the day's candidates and drops the ones the
// cache has already seen, so reruns do not re-analyze yesterday's
// papers.
func (s *Service) fetchCandidates(ctx context.Context) ([]pipeline.WorkItem[fetch.Paper], error) {
	log := logging.FromContext(ctx)

	papers, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]pipeline.WorkItem[fetch.Paper], 0, len(papers))
	skipped := 0
	for _, p := range papers {
		if s.store != nil && s.store.Contains(p.ID) {
			skipped++
			continue
		}
		items = append(items, pipeline.WorkItem[fetch.Paper]{ID: p.ID, Payload: p})
	}

	if skipped > 0 {
		log.Info(ctx, "skipped cached papers", zap.Int("skipped", skipped))
	}
	return items, nil
}

// markProcessed records successfully analyzed papers in the cache.
func (s *Service) markProcessed(ctx context.Context, state *pipeline.State) error {
	if s.store == nil {
		return nil
	}

	audit, err := state.Get(pipeline.StageAnalyze)
	if err != nil {
		// Aborted before analyze; nothing to record.
		return nil
	}

	var ids []string
	for _, item := range audit.Items {
		if item.OK {
			ids = append(ids, item.ItemID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	logging.FromContext(ctx).Debug(ctx, "caching processed papers", zap.Int("count", len(ids)))
	return s.store.Add(ids...)
}

// writeArtifact saves the run summary JSON next to the report.
func (s *Service) writeArtifact(ctx context.Context, result RunResult) error {
	if err := os.MkdirAll(s.cfg.Report.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run artifact: %w", err)
	}

	name := fmt.Sprintf("paperwatch_run_%s.json", result.StartedAt.Format("2006-01-02"))
	path := filepath.Join(s.cfg.Report.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run artifact: %w", err)
	}

	logging.FromContext(ctx).Debug(ctx, "run artifact written", zap.String("path", path))
	return nil
}

func (s *Service) cheapProfile() pipeline.Profile {
	p := pipeline.CheapProfile()
	s.applyProfile(&p, s.cfg.Pipeline.CheapTimeout)
	return p
}

func (s *Service) expensiveProfile() pipeline.Profile {
	p := pipeline.ExpensiveProfile()
	s.applyProfile(&p, s.cfg.Pipeline.ExpensiveTimeout)
	return p
}

func (s *Service) applyProfile(p *pipeline.Profile, timeout config.Duration) {
	if d := timeout.Duration(); d > 0 {
		p.Timeout = d
	}
	if n := s.cfg.Pipeline.MaxAttempts; n > 0 {
		p.MaxAttempts = n
	}
	if d := s.cfg.Pipeline.InitialBackoff.Duration(); d > 0 {
		p.InitialBackoff = d
	}
	if d := s.cfg.Pipeline.MaxBackoff.Duration(); d > 0 {
		p.MaxBackoff = d
	}
}
