package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/paperwatch/internal/logging"
)

// Stages run in one of two modes:
//
//   - Sequential: a single logical call over the whole batch (fetch,
//     synthesize). The orchestrator invokes the collaborator directly;
//     failure there is run-fatal unless the stage defines a degraded
//     policy.
//   - Fan-out: FanOut applies a per-item function through the executor
//     to every input item under a bounded worker limit.
//
// A stage never mutates its input; it produces a fresh BatchResult.

// DefaultConcurrency is the fan-out worker limit when none is
// configured. Kept modest to respect external API rate limits.
const DefaultConcurrency = 8

// FanOut applies fn to every item concurrently, at most concurrency
// in-flight at once, and returns exactly one result per input item in
// input order regardless of completion order.
//
// Item IDs must be unique within the batch; the orchestrator
// guarantees this by deduplicating fetched items. FanOut always drains
// all in-flight work before returning, including when ctx is
// cancelled: cancelled items come back as transient failures rather
// than being dropped.
func FanOut[In, Out any](ctx context.Context, items []WorkItem[In], fn Func[In, Out], profile Profile, concurrency int) BatchResult[Out] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]ItemResult[Out], len(items))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, item := range items {
		g.Go(func() error {
			// Each slot is written by exactly one goroutine, so the
			// slice needs no locking. The item ID rides on the context
			// so every log line inside fn carries it.
			itemCtx := logging.WithPaperID(ctx, item.ID)
			results[i] = Execute(itemCtx, profile, item, fn)
			return nil
		})
	}
	// Execute never returns an error; Wait is pure drain.
	_ = g.Wait()

	return BatchResult[Out]{Results: results}
}
