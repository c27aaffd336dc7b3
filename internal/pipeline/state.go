package pipeline

import (
	"sync"
	"time"
)

// ItemOutcome is the type-erased audit record for one item in one
// stage. Values flow between stages in their typed form; the audit
// trail keeps only identity and outcome.
type ItemOutcome struct {
	ItemID  string      `json:"item_id"`
	OK      bool        `json:"ok"`
	Kind    FailureKind `json:"kind,omitempty"`
	Message string      `json:"message,omitempty"`
}

// StageAudit records every item outcome of one stage invocation, in
// input order.
type StageAudit struct {
	Stage    string        `json:"stage"`
	Items    []ItemOutcome `json:"items"`
	Duration time.Duration `json:"duration_ns"`
}

// FailedIDs returns the identifiers of failed items in input order.
func (a StageAudit) FailedIDs() []string {
	ids := make([]string, 0)
	for _, item := range a.Items {
		if !item.OK {
			ids = append(ids, item.ItemID)
		}
	}
	return ids
}

// SuccessCount returns the number of successful items.
func (a StageAudit) SuccessCount() int {
	n := 0
	for _, item := range a.Items {
		if item.OK {
			n++
		}
	}
	return n
}

// StageSummary is the per-stage success/failure count used for
// observability and the run artifact.
type StageSummary struct {
	Stage     string        `json:"stage"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	FailedIDs []string      `json:"failed_ids,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// State is the accumulating, append-only record of each stage's
// outcomes for one run. Entries are immutable once recorded: the
// orchestrator only appends, never rewrites. A completed run's State
// is fully reconstructable for audit: which items failed, at which
// stage, and why.
type State struct {
	mu     sync.RWMutex
	order  []string
	audits map[string]StageAudit
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		audits: make(map[string]StageAudit),
	}
}

// Record appends one stage's audit. Recording the same stage name
// twice in a run fails with DuplicateStageError.
func (s *State) Record(audit StageAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.audits[audit.Stage]; exists {
		return &DuplicateStageError{Stage: audit.Stage}
	}
	s.order = append(s.order, audit.Stage)
	s.audits[audit.Stage] = audit
	return nil
}

// Get returns the audit for a recorded stage, or StageNotFoundError if
// the stage has not run.
func (s *State) Get(stage string) (StageAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	audit, ok := s.audits[stage]
	if !ok {
		return StageAudit{}, &StageNotFoundError{Stage: stage}
	}
	return audit, nil
}

// Stages returns the recorded stage names in execution order.
func (s *State) Stages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Summary returns per-stage counts in execution order.
func (s *State) Summary() []StageSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]StageSummary, 0, len(s.order))
	for _, stage := range s.order {
		audit := s.audits[stage]
		succeeded := audit.SuccessCount()
		summaries = append(summaries, StageSummary{
			Stage:     stage,
			Total:     len(audit.Items),
			Succeeded: succeeded,
			Failed:    len(audit.Items) - succeeded,
			FailedIDs: audit.FailedIDs(),
			Duration:  audit.Duration,
		})
	}
	return summaries
}
