package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/paperwatch/internal/logging"
)

func makeItems(n int) []WorkItem[int] {
	items := make([]WorkItem[int], n)
	for i := range items {
		items[i] = WorkItem[int]{ID: fmt.Sprintf("item-%03d", i), Payload: i}
	}
	return items
}

func TestFanOut_PreservesInputOrder(t *testing.T) {
	items := makeItems(50)

	// Random per-item latency so completion order differs from input
	// order.
	fn := func(ctx context.Context, in int) (int, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return in * 10, nil
	}

	batch := FanOut(context.Background(), items, fn, fastProfile(1), 8)

	require.Equal(t, len(items), batch.Len())
	for i, r := range batch.Results {
		require.True(t, r.OK())
		assert.Equal(t, items[i].ID, r.ItemID, "result %d out of order", i)
		assert.Equal(t, i*10, r.Value)
	}
}

func TestFanOut_OneResultPerItem(t *testing.T) {
	items := makeItems(20)

	fn := func(ctx context.Context, in int) (string, error) {
		if in%3 == 0 {
			return "", errors.New("boom")
		}
		return "ok", nil
	}

	batch := FanOut(context.Background(), items, fn, fastProfile(1), 4)

	assert.Equal(t, 20, batch.Len())
	assert.Equal(t, 13, batch.SuccessCount())
	assert.Len(t, batch.Failures(), 7)
}

func TestFanOut_FailuresDoNotAffectOtherItems(t *testing.T) {
	items := makeItems(10)

	fn := func(ctx context.Context, in int) (int, error) {
		if in == 5 {
			return 0, errors.New("bad item")
		}
		return in, nil
	}

	batch := FanOut(context.Background(), items, fn, fastProfile(2), 3)

	for i, r := range batch.Results {
		if i == 5 {
			require.False(t, r.OK())
			assert.Equal(t, FailurePermanent, r.Failure.Kind)
			continue
		}
		assert.True(t, r.OK(), "item %d should be unaffected", i)
	}
}

func TestFanOut_RespectsConcurrencyLimit(t *testing.T) {
	const limit = 3
	items := makeItems(30)

	var inFlight, peak atomic.Int32
	fn := func(ctx context.Context, in int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return in, nil
	}

	batch := FanOut(context.Background(), items, fn, fastProfile(1), limit)

	assert.Equal(t, 30, batch.SuccessCount())
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestFanOut_EmptyInput(t *testing.T) {
	fn := func(ctx context.Context, in int) (int, error) { return in, nil }

	batch := FanOut(context.Background(), nil, fn, fastProfile(1), 4)

	assert.Equal(t, 0, batch.Len())
	assert.Empty(t, batch.Values())
}

func TestFanOut_CancelledContextDrainsAllItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := makeItems(8)
	fn := func(ctx context.Context, in int) (int, error) { return in, nil }

	batch := FanOut(ctx, items, fn, fastProfile(1), 4)

	require.Equal(t, 8, batch.Len(), "cancelled items must not be dropped")
	for _, r := range batch.Results {
		require.False(t, r.OK())
		assert.Equal(t, FailureTransient, r.Failure.Kind)
	}
}

func TestBatchResult_ValuesAndSuccessItems(t *testing.T) {
	batch := BatchResult[string]{Results: []ItemResult[string]{
		Succeed("a", "alpha"),
		Fail[string]("b", FailurePermanent, "broken"),
		Succeed("c", "gamma"),
	}}

	assert.Equal(t, []string{"alpha", "gamma"}, batch.Values())

	items := batch.SuccessItems()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "gamma", items[1].Payload)
}

func TestBatchResult_Audit(t *testing.T) {
	batch := BatchResult[int]{Results: []ItemResult[int]{
		Succeed("a", 1),
		Fail[int]("b", FailureTransient, "timed out"),
	}}

	audit := batch.Audit("filter")

	assert.Equal(t, "filter", audit.Stage)
	require.Len(t, audit.Items, 2)
	assert.True(t, audit.Items[0].OK)
	assert.False(t, audit.Items[1].OK)
	assert.Equal(t, FailureTransient, audit.Items[1].Kind)
	assert.Equal(t, "timed out", audit.Items[1].Message)
	assert.Equal(t, []string{"b"}, audit.FailedIDs())
}

func TestFanOut_AttachesItemIDToContext(t *testing.T) {
	items := makeItems(10)

	fn := func(ctx context.Context, in int) (string, error) {
		return logging.PaperIDFromContext(ctx), nil
	}

	batch := FanOut(context.Background(), items, fn, fastProfile(1), 4)

	require.Equal(t, len(items), batch.Len())
	for i, r := range batch.Results {
		require.True(t, r.OK())
		assert.Equal(t, items[i].ID, r.Value)
	}
}
