package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/paperwatch/internal/logging"
)

// Stage names, in execution order.
const (
	StageFetch      = "fetch"
	StageFilter     = "filter"
	StageAnalyze    = "analyze"
	StageSynthesize = "synthesize"
)

// Abort reasons used by the orchestrator's transition rules.
const (
	ReasonNoUsableOutput = "no usable output"
	ReasonEmptyInput     = "empty input"
)

// Status is the orchestrator's state machine position.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
)

// RunOutcome is the terminal value of a run: Completed with a report,
// or Aborted with the stage that could not produce usable output.
type RunOutcome struct {
	Status      Status `json:"status"`
	Report      string `json:"-"`
	AbortStage  string `json:"abort_stage,omitempty"`
	AbortReason string `json:"abort_reason,omitempty"`
}

// Completed reports whether the run reached the terminal success state.
func (o RunOutcome) Completed() bool {
	return o.Status == StatusCompleted
}

// Collaborators are the external interfaces the orchestrator drives.
// C is the candidate type flowing out of fetch, A the analyzed record
// type flowing into synthesize. All four are treated as opaque:
// whatever happens inside analyze collapses to one success or failure
// per item at this boundary.
type Collaborators[C, A any] struct {
	// Fetch returns the day's candidates. An empty slice is valid (no
	// new items); an error means every source was unreachable.
	Fetch func(ctx context.Context) ([]WorkItem[C], error)

	// Classify decides per-item relevance under the cheap profile.
	Classify Func[C, bool]

	// Analyze runs the expensive per-item extraction sub-pipeline.
	Analyze Func[C, A]

	// Synthesize renders the final report from all successful analyses.
	Synthesize func(ctx context.Context, records []A) (string, error)
}

// Options tunes a run. The zero value gets library defaults.
type Options struct {
	// Cheap is the executor profile for the filter stage.
	Cheap Profile

	// Expensive is the executor profile for the analyze stage.
	Expensive Profile

	// Concurrency caps in-flight items within a fan-out stage.
	Concurrency int

	// AllowEmptyReport lets synthesize run with zero analyzed items
	// instead of aborting with ReasonEmptyInput. Off by default so an
	// empty report is never published silently.
	AllowEmptyReport bool

	// Metrics receives per-stage instrumentation. Nil disables it.
	Metrics *Metrics
}

// Orchestrator wires the fixed stage sequence
// fetch -> filter -> analyze -> synthesize, propagating only
// successful values forward and recording every outcome in State.
//
// Item-level failures never abort a run; they are recorded and their
// items excluded downstream. A run aborts only when a mandatory stage
// (fetch, synthesize) has zero usable output or fails outright.
// Terminal states are final: the orchestrator never retries a whole
// stage, only the executor retries individual items.
type Orchestrator[C, A any] struct {
	collab Collaborators[C, A]
	opts   Options

	mu     sync.Mutex
	status Status
}

// NewOrchestrator builds an orchestrator in the NotStarted state.
func NewOrchestrator[C, A any](collab Collaborators[C, A], opts Options) *Orchestrator[C, A] {
	return &Orchestrator[C, A]{
		collab: collab,
		opts:   opts,
		status: StatusNotStarted,
	}
}

// Status returns the current state machine position.
func (o *Orchestrator[C, A]) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator[C, A]) setStatus(s Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// Run executes one full pipeline pass. It always returns the State
// alongside the outcome, completed or aborted, so the run remains
// auditable either way. Deterministic given deterministic
// collaborators.
func (o *Orchestrator[C, A]) Run(ctx context.Context) (RunOutcome, *State) {
	log := logging.FromContext(ctx)
	state := NewState()
	o.setStatus(StatusRunning)

	// Stage 1: fetch (sequential, mandatory).
	fetchCtx := logging.WithStage(ctx, StageFetch)
	started := time.Now()
	candidates, err := o.collab.Fetch(fetchCtx)
	fetchAudit := fetchAudit(candidates, err, time.Since(started))
	o.record(fetchCtx, state, fetchAudit)
	if err != nil {
		return o.abort(fetchCtx, StageFetch, fmt.Sprintf("fetch failed: %v", err)), state
	}
	if len(candidates) == 0 {
		return o.abort(fetchCtx, StageFetch, ReasonNoUsableOutput), state
	}
	log.Info(fetchCtx, "fetch stage complete", zap.Int("candidates", len(candidates)))

	if err := ctx.Err(); err != nil {
		return o.abort(ctx, StageFilter, err.Error()), state
	}

	// Stage 2: filter (fan-out, cheap profile).
	filterCtx := logging.WithStage(ctx, StageFilter)
	started = time.Now()
	classified := FanOut(filterCtx, candidates, o.collab.Classify, o.opts.Cheap, o.opts.Concurrency)
	o.record(filterCtx, state, timed(classified.Audit(StageFilter), time.Since(started)))

	relevant := relevantItems(candidates, classified)
	log.Info(filterCtx, "filter stage complete",
		zap.Int("classified", classified.SuccessCount()),
		zap.Int("failed", classified.Len()-classified.SuccessCount()),
		zap.Int("relevant", len(relevant)))

	if err := ctx.Err(); err != nil {
		return o.abort(ctx, StageAnalyze, err.Error()), state
	}

	// Stage 3: analyze (fan-out, expensive profile).
	analyzeCtx := logging.WithStage(ctx, StageAnalyze)
	started = time.Now()
	analyzed := FanOut(analyzeCtx, relevant, o.collab.Analyze, o.opts.Expensive, o.opts.Concurrency)
	o.record(analyzeCtx, state, timed(analyzed.Audit(StageAnalyze), time.Since(started)))
	log.Info(analyzeCtx, "analyze stage complete",
		zap.Int("succeeded", analyzed.SuccessCount()),
		zap.Int("failed", analyzed.Len()-analyzed.SuccessCount()))

	if err := ctx.Err(); err != nil {
		return o.abort(ctx, StageSynthesize, err.Error()), state
	}

	// Stage 4: synthesize (sequential, mandatory). Runs with partial
	// input, but an empty input set is a policy decision.
	synthCtx := logging.WithStage(ctx, StageSynthesize)
	records := analyzed.Values()
	if len(records) == 0 && !o.opts.AllowEmptyReport {
		o.record(synthCtx, state, sequentialAudit(StageSynthesize, false, FailurePermanent, ReasonEmptyInput, 0))
		return o.abort(synthCtx, StageSynthesize, ReasonEmptyInput), state
	}

	started = time.Now()
	report, err := o.collab.Synthesize(synthCtx, records)
	if err != nil {
		o.record(synthCtx, state, sequentialAudit(StageSynthesize, false, FailurePermanent, err.Error(), time.Since(started)))
		return o.abort(synthCtx, StageSynthesize, fmt.Sprintf("synthesize failed: %v", err)), state
	}
	o.record(synthCtx, state, sequentialAudit(StageSynthesize, true, "", "", time.Since(started)))

	o.setStatus(StatusCompleted)
	o.opts.Metrics.recordRun(ctx, StatusCompleted)
	log.Info(ctx, "pipeline run completed", zap.Int("reported", len(records)))
	return RunOutcome{Status: StatusCompleted, Report: report}, state
}

// abort transitions to the terminal Aborted state. Fan-out work has
// already drained by the time this runs; nothing is recorded after it.
func (o *Orchestrator[C, A]) abort(ctx context.Context, stage, reason string) RunOutcome {
	o.setStatus(StatusAborted)
	o.opts.Metrics.recordRun(ctx, StatusAborted)
	logging.FromContext(ctx).Warn(ctx, "pipeline run aborted",
		zap.String("stage", stage),
		zap.String("reason", reason))
	return RunOutcome{Status: StatusAborted, AbortStage: stage, AbortReason: reason}
}

// record appends a stage audit and instruments it. A duplicate stage
// name is a wiring bug; the fixed stage sequence cannot produce one.
func (o *Orchestrator[C, A]) record(ctx context.Context, state *State, audit StageAudit) {
	if err := state.Record(audit); err != nil {
		logging.FromContext(ctx).DPanic(ctx, "stage recorded twice",
			zap.String("stage", audit.Stage), zap.Error(err))
		return
	}
	o.opts.Metrics.recordStage(ctx, audit)
}

// fetchAudit builds the audit for the sequential fetch stage: one
// successful outcome per fetched candidate, or an empty audit when the
// fetch itself failed or returned nothing.
func fetchAudit[C any](candidates []WorkItem[C], err error, d time.Duration) StageAudit {
	audit := StageAudit{Stage: StageFetch, Items: []ItemOutcome{}, Duration: d}
	if err != nil {
		return audit
	}
	for _, c := range candidates {
		audit.Items = append(audit.Items, ItemOutcome{ItemID: c.ID, OK: true})
	}
	return audit
}

// sequentialAudit builds a single-outcome audit for a sequential stage.
func sequentialAudit(stage string, ok bool, kind FailureKind, message string, d time.Duration) StageAudit {
	outcome := ItemOutcome{ItemID: stage, OK: ok}
	if !ok {
		outcome.Kind = kind
		outcome.Message = message
	}
	return StageAudit{Stage: stage, Items: []ItemOutcome{outcome}, Duration: d}
}

// relevantItems keeps the candidates the classifier accepted, in input
// order. Classification failures and rejections are both excluded;
// only the failures appear as such in the audit.
func relevantItems[C any](candidates []WorkItem[C], classified BatchResult[bool]) []WorkItem[C] {
	relevant := make([]WorkItem[C], 0, len(candidates))
	for i, r := range classified.Results {
		if r.OK() && r.Value {
			relevant = append(relevant, candidates[i])
		}
	}
	return relevant
}

// timed stamps a duration onto an audit.
func timed(audit StageAudit, d time.Duration) StageAudit {
	audit.Duration = d
	return audit
}
