package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/paperwatch/internal/logging"
)

type testPaper struct {
	ID    string
	Title string
}

type testRecord struct {
	ID      string
	Summary string
}

func testCandidates(ids ...string) []WorkItem[testPaper] {
	items := make([]WorkItem[testPaper], len(ids))
	for i, id := range ids {
		items[i] = WorkItem[testPaper]{ID: id, Payload: testPaper{ID: id, Title: "paper " + id}}
	}
	return items
}

// testCollaborators returns a happy-path collaborator set that tests
// override per scenario.
func testCollaborators(candidates []WorkItem[testPaper]) Collaborators[testPaper, testRecord] {
	return Collaborators[testPaper, testRecord]{
		Fetch: func(ctx context.Context) ([]WorkItem[testPaper], error) {
			return candidates, nil
		},
		Classify: func(ctx context.Context, p testPaper) (bool, error) {
			return true, nil
		},
		Analyze: func(ctx context.Context, p testPaper) (testRecord, error) {
			return testRecord{ID: p.ID, Summary: "summary of " + p.ID}, nil
		},
		Synthesize: func(ctx context.Context, records []testRecord) (string, error) {
			parts := make([]string, len(records))
			for i, r := range records {
				parts[i] = r.ID
			}
			return "report: " + strings.Join(parts, ","), nil
		},
	}
}

func testOptions() Options {
	return Options{
		Cheap:       fastProfile(2),
		Expensive:   fastProfile(2),
		Concurrency: 4,
	}
}

func TestOrchestrator_StartsNotStarted(t *testing.T) {
	orch := NewOrchestrator(testCollaborators(nil), testOptions())
	assert.Equal(t, StatusNotStarted, orch.Status())
}

func TestOrchestrator_HappyPath(t *testing.T) {
	collab := testCollaborators(testCandidates("p1", "p2", "p3"))
	orch := NewOrchestrator(collab, testOptions())

	outcome, state := orch.Run(context.Background())

	require.True(t, outcome.Completed())
	assert.Equal(t, StatusCompleted, orch.Status())
	assert.Equal(t, "report: p1,p2,p3", outcome.Report)
	assert.Equal(t,
		[]string{StageFetch, StageFilter, StageAnalyze, StageSynthesize},
		state.Stages())
}

func TestOrchestrator_ItemFailuresNeverAbort(t *testing.T) {
	collab := testCollaborators(testCandidates("p1", "p2", "p3", "p4", "p5"))

	// p2 is rejected by the classifier, p3 fails classification
	// outright, p4 fails analysis. Only p1 and p5 reach the report.
	collab.Classify = func(ctx context.Context, p testPaper) (bool, error) {
		switch p.ID {
		case "p2":
			return false, nil
		case "p3":
			return false, errors.New("unparseable verdict")
		}
		return true, nil
	}
	collab.Analyze = func(ctx context.Context, p testPaper) (testRecord, error) {
		if p.ID == "p4" {
			return testRecord{}, errors.New("pdf download failed")
		}
		return testRecord{ID: p.ID}, nil
	}

	orch := NewOrchestrator(collab, testOptions())
	outcome, state := orch.Run(context.Background())

	require.True(t, outcome.Completed(), "item failures must not abort the run")
	assert.Equal(t, "report: p1,p5", outcome.Report)

	filter, err := state.Get(StageFilter)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, filter.FailedIDs(), "rejection is not a failure, only the error is")

	analyze, err := state.Get(StageAnalyze)
	require.NoError(t, err)
	assert.Equal(t, []string{"p4"}, analyze.FailedIDs())
	assert.Equal(t, 3, len(analyze.Items), "only relevant candidates reach analyze")
}

func TestOrchestrator_FetchErrorAborts(t *testing.T) {
	collab := testCollaborators(nil)
	collab.Fetch = func(ctx context.Context) ([]WorkItem[testPaper], error) {
		return nil, errors.New("all sources unreachable")
	}

	orch := NewOrchestrator(collab, testOptions())
	outcome, state := orch.Run(context.Background())

	require.False(t, outcome.Completed())
	assert.Equal(t, StatusAborted, orch.Status())
	assert.Equal(t, StageFetch, outcome.AbortStage)
	assert.Contains(t, outcome.AbortReason, "all sources unreachable")
	assert.Equal(t, []string{StageFetch}, state.Stages(), "fetch is still recorded on abort")
}

func TestOrchestrator_FetchEmptyAborts(t *testing.T) {
	collab := testCollaborators(nil)

	orch := NewOrchestrator(collab, testOptions())
	outcome, state := orch.Run(context.Background())

	require.False(t, outcome.Completed())
	assert.Equal(t, StageFetch, outcome.AbortStage)
	assert.Equal(t, ReasonNoUsableOutput, outcome.AbortReason)

	fetchStage, err := state.Get(StageFetch)
	require.NoError(t, err)
	assert.Empty(t, fetchStage.Items)
}

func TestOrchestrator_AllAnalysisFailedAborts(t *testing.T) {
	collab := testCollaborators(testCandidates("p1", "p2"))
	collab.Analyze = func(ctx context.Context, p testPaper) (testRecord, error) {
		return testRecord{}, errors.New("corrupt pdf")
	}

	orch := NewOrchestrator(collab, testOptions())
	outcome, state := orch.Run(context.Background())

	require.False(t, outcome.Completed())
	assert.Equal(t, StageSynthesize, outcome.AbortStage)
	assert.Equal(t, ReasonEmptyInput, outcome.AbortReason)

	// The synthesize refusal is itself recorded for audit.
	synth, err := state.Get(StageSynthesize)
	require.NoError(t, err)
	require.Len(t, synth.Items, 1)
	assert.False(t, synth.Items[0].OK)
	assert.Equal(t, ReasonEmptyInput, synth.Items[0].Message)
}

func TestOrchestrator_AllowEmptyReportCompletes(t *testing.T) {
	collab := testCollaborators(testCandidates("p1"))
	collab.Classify = func(ctx context.Context, p testPaper) (bool, error) {
		return false, nil
	}
	collab.Synthesize = func(ctx context.Context, records []testRecord) (string, error) {
		require.Empty(t, records)
		return "empty report", nil
	}

	opts := testOptions()
	opts.AllowEmptyReport = true

	orch := NewOrchestrator(collab, opts)
	outcome, _ := orch.Run(context.Background())

	require.True(t, outcome.Completed())
	assert.Equal(t, "empty report", outcome.Report)
}

func TestOrchestrator_SynthesizeErrorAborts(t *testing.T) {
	collab := testCollaborators(testCandidates("p1"))
	collab.Synthesize = func(ctx context.Context, records []testRecord) (string, error) {
		return "", errors.New("template blew up")
	}

	orch := NewOrchestrator(collab, testOptions())
	outcome, state := orch.Run(context.Background())

	require.False(t, outcome.Completed())
	assert.Equal(t, StageSynthesize, outcome.AbortStage)
	assert.Contains(t, outcome.AbortReason, "template blew up")

	synth, err := state.Get(StageSynthesize)
	require.NoError(t, err)
	assert.False(t, synth.Items[0].OK)
}

func TestOrchestrator_RelevantItemsKeepInputOrder(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%02d", i)
	}
	collab := testCollaborators(testCandidates(ids...))

	// Keep even-numbered papers only.
	collab.Classify = func(ctx context.Context, p testPaper) (bool, error) {
		var n int
		_, err := fmt.Sscanf(p.ID, "p%d", &n)
		require.NoError(t, err)
		return n%2 == 0, nil
	}

	var analyzed []string
	collab.Synthesize = func(ctx context.Context, records []testRecord) (string, error) {
		for _, r := range records {
			analyzed = append(analyzed, r.ID)
		}
		return "ok", nil
	}

	orch := NewOrchestrator(collab, testOptions())
	outcome, _ := orch.Run(context.Background())

	require.True(t, outcome.Completed())
	want := []string{"p00", "p02", "p04", "p06", "p08", "p10", "p12", "p14", "p16", "p18"}
	assert.Equal(t, want, analyzed)
}

func TestOrchestrator_DeterministicGivenDeterministicCollaborators(t *testing.T) {
	run := func() (RunOutcome, []StageSummary) {
		collab := testCollaborators(testCandidates("a", "b", "c", "d"))
		collab.Classify = func(ctx context.Context, p testPaper) (bool, error) {
			return p.ID != "c", nil
		}
		orch := NewOrchestrator(collab, testOptions())
		outcome, state := orch.Run(context.Background())

		// Wall-clock durations vary run to run; determinism is about
		// outcomes and counts.
		summary := state.Summary()
		for i := range summary {
			summary[i].Duration = 0
		}
		return outcome, summary
	}

	out1, sum1 := run()
	out2, sum2 := run()

	assert.Equal(t, out1, out2)
	assert.Equal(t, sum1, sum2)
}

func TestOrchestrator_StageNameOnContext(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	note := func(key string, ctx context.Context) {
		mu.Lock()
		seen[key] = logging.StageFromContext(ctx)
		mu.Unlock()
	}

	collab := testCollaborators(testCandidates("p1"))
	inner := collab
	collab.Fetch = func(ctx context.Context) ([]WorkItem[testPaper], error) {
		note(StageFetch, ctx)
		return inner.Fetch(ctx)
	}
	collab.Classify = func(ctx context.Context, p testPaper) (bool, error) {
		note(StageFilter, ctx)
		return inner.Classify(ctx, p)
	}
	collab.Analyze = func(ctx context.Context, p testPaper) (testRecord, error) {
		note(StageAnalyze, ctx)
		return inner.Analyze(ctx, p)
	}
	collab.Synthesize = func(ctx context.Context, records []testRecord) (string, error) {
		note(StageSynthesize, ctx)
		return inner.Synthesize(ctx, records)
	}

	outcome, _ := NewOrchestrator(collab, testOptions()).Run(context.Background())
	require.True(t, outcome.Completed())

	for _, stage := range []string{StageFetch, StageFilter, StageAnalyze, StageSynthesize} {
		assert.Equal(t, stage, seen[stage], "collaborator for %s sees its stage on the context", stage)
	}
}
