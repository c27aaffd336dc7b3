package pipeline

// WorkItem is the unit of fan-out: an opaque payload with a stable
// identifier. The identifier must be unique within a stage's batch so
// failures can be attributed to specific items.
type WorkItem[T any] struct {
	ID      string `json:"id"`
	Payload T      `json:"-"`
}

// FailureKind classifies why an item failed.
type FailureKind string

const (
	// FailureTransient marks a retryable infrastructure issue that
	// exhausted its retry budget (network timeout, rate limit).
	FailureTransient FailureKind = "transient"

	// FailurePermanent marks a non-retryable error (malformed input,
	// 4xx-equivalent response).
	FailurePermanent FailureKind = "permanent"
)

// ItemFailure describes one item's failure within a stage.
type ItemFailure struct {
	ItemID  string      `json:"item_id"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (f *ItemFailure) Error() string {
	return string(f.Kind) + " failure for item " + f.ItemID + ": " + f.Message
}

// ItemResult is the outcome of processing a single WorkItem: either a
// value or a failure, never both.
type ItemResult[T any] struct {
	ItemID  string
	Value   T
	Failure *ItemFailure
}

// OK reports whether the item succeeded.
func (r ItemResult[T]) OK() bool {
	return r.Failure == nil
}

// Succeed builds a successful ItemResult.
func Succeed[T any](itemID string, value T) ItemResult[T] {
	return ItemResult[T]{ItemID: itemID, Value: value}
}

// Fail builds a failed ItemResult.
func Fail[T any](itemID string, kind FailureKind, message string) ItemResult[T] {
	return ItemResult[T]{
		ItemID: itemID,
		Failure: &ItemFailure{
			ItemID:  itemID,
			Kind:    kind,
			Message: message,
		},
	}
}

// BatchResult is the ordered set of per-item results for one stage
// invocation. Order always matches the stage's input order, not
// completion order, so downstream consumers and the audit trail can
// correlate results to inputs deterministically.
type BatchResult[T any] struct {
	Results []ItemResult[T]
}

// Len returns the number of item results in the batch.
func (b BatchResult[T]) Len() int {
	return len(b.Results)
}

// SuccessCount returns the number of successful items.
func (b BatchResult[T]) SuccessCount() int {
	n := 0
	for _, r := range b.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Values returns the successful values in input order. Failed items are
// excluded; they remain visible through Failures and the stage audit.
func (b BatchResult[T]) Values() []T {
	values := make([]T, 0, len(b.Results))
	for _, r := range b.Results {
		if r.OK() {
			values = append(values, r.Value)
		}
	}
	return values
}

// SuccessItems returns the successful results repackaged as WorkItems,
// ready to feed the next fan-out stage.
func (b BatchResult[T]) SuccessItems() []WorkItem[T] {
	items := make([]WorkItem[T], 0, len(b.Results))
	for _, r := range b.Results {
		if r.OK() {
			items = append(items, WorkItem[T]{ID: r.ItemID, Payload: r.Value})
		}
	}
	return items
}

// Failures returns the failed items in input order.
func (b BatchResult[T]) Failures() []ItemFailure {
	failures := make([]ItemFailure, 0)
	for _, r := range b.Results {
		if !r.OK() {
			failures = append(failures, *r.Failure)
		}
	}
	return failures
}

// Audit converts the batch into its type-erased audit form for
// recording in State.
func (b BatchResult[T]) Audit(stage string) StageAudit {
	items := make([]ItemOutcome, 0, len(b.Results))
	for _, r := range b.Results {
		outcome := ItemOutcome{ItemID: r.ItemID, OK: r.OK()}
		if r.Failure != nil {
			outcome.Kind = r.Failure.Kind
			outcome.Message = r.Failure.Message
		}
		items = append(items, outcome)
	}
	return StageAudit{Stage: stage, Items: items}
}
