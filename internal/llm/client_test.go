package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/paperwatch/internal/pipeline"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{"nil", nil, false},
		{"rate limit status", errors.New("API returned unexpected status code: 429"), true},
		{"rate limit text", errors.New("rate limit exceeded"), true},
		{"bad gateway", errors.New("502 Bad Gateway"), true},
		{"service unavailable", errors.New("503 Service Unavailable"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
		{"deadline exceeded", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"auth failure", errors.New("401 Unauthorized"), false},
		{"bad request", errors.New("400 invalid request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.wantTransient, pipeline.IsTransient(got))
		})
	}
}

func TestFakeClient_ScriptedResponses(t *testing.T) {
	fake := NewFakeClient(
		FakeResponse{Content: "first"},
		FakeResponse{Err: errors.New("boom")},
		FakeResponse{Content: "last"},
	)

	ctx := context.Background()

	out, err := fake.Complete(ctx, "sys", "user one")
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	_, err = fake.Complete(ctx, "sys", "user two")
	require.Error(t, err)

	// Last entry repeats once exhausted.
	for i := 0; i < 2; i++ {
		out, err = fake.Complete(ctx, "sys", "again")
		require.NoError(t, err)
		assert.Equal(t, "last", out)
	}

	calls := fake.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "user one", calls[0].User)
	assert.Equal(t, "sys", calls[0].System)
}

func TestFakeClient_RespectsCancellation(t *testing.T) {
	fake := NewFakeClient(FakeResponse{Content: "never"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fake.Complete(ctx, "sys", "user")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fake.CallCount())
}
