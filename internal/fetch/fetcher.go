package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/paperwatch/internal/logging"
)

// Source is one preprint server.
type Source interface {
	// Name returns the display name used in Paper.Source and logs.
	Name() string

	// Fetch returns candidates announced within the window.
	Fetch(ctx context.Context, window Window) ([]Paper, error)
}

// Fetcher aggregates candidates from several sources.
type Fetcher struct {
	sources  []Source
	lookback time.Duration
	now      func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher creates a Fetcher over the given sources, looking back
// the given duration from the current time on each fetch.
func NewFetcher(sources []Source, lookback time.Duration, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		sources:  sources,
		lookback: lookback,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch queries all sources concurrently and merges their candidates.
//
// Source failures are logged and tolerated; a failed source simply
// contributes nothing. Fetch returns ErrSourceUnavailable only when
// every source fails, so downstream can distinguish "quiet day" from
// "the network is down". Candidates sharing an ID are deduplicated,
// keeping the first occurrence in source order. Candidates missing
// required fields are dropped.
func (f *Fetcher) Fetch(ctx context.Context) ([]Paper, error) {
	log := logging.FromContext(ctx)
	window := NewWindow(f.now().UTC(), f.lookback)

	perSource := make([][]Paper, len(f.sources))
	errs := make([]error, len(f.sources))

	var g errgroup.Group
	for i, src := range f.sources {
		g.Go(func() error {
			papers, err := src.Fetch(ctx, window)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				log.Warn(ctx, "source fetch failed",
					zap.String("source", src.Name()),
					zap.Error(err))
				return nil
			}
			perSource[i] = papers
			log.Debug(ctx, "source fetch complete",
				zap.String("source", src.Name()),
				zap.Int("candidates", len(papers)))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if len(f.sources) > 0 && failed == len(f.sources) {
		return nil, fmt.Errorf("%w: %d sources failed, first error: %v",
			ErrSourceUnavailable, failed, firstError(errs))
	}

	seen := make(map[string]bool)
	var merged []Paper
	for _, papers := range perSource {
		for _, p := range papers {
			if err := p.Validate(); err != nil {
				log.Warn(ctx, "dropping malformed candidate", zap.Error(err))
				continue
			}
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}

	log.Info(ctx, "fetch complete",
		zap.Int("sources", len(f.sources)),
		zap.Int("failed_sources", failed),
		zap.Int("candidates", len(merged)))

	return merged, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// FakeSource is a scripted Source for tests.
type FakeSource struct {
	SourceName string
	Papers     []Paper
	Err        error

	mu    sync.Mutex
	calls int
}

// Name implements Source.
func (f *FakeSource) Name() string { return f.SourceName }

// Fetch implements Source.
func (f *FakeSource) Fetch(ctx context.Context, window Window) ([]Paper, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Papers, nil
}

// Calls returns how many times Fetch was invoked.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
