package llm

import (
	"context"
	"sync"
)

// FakeClient is a scripted Client for tests.
//
// Each call to Complete pops the next queued response (or error). When
// the queue is exhausted the last entry repeats. Calls are recorded
// for assertion.
type FakeClient struct {
	mu        sync.Mutex
	responses []FakeResponse
	calls     []FakeCall
	next      int
}

// FakeResponse is one scripted reply.
type FakeResponse struct {
	Content string
	Err     error
}

// FakeCall records the prompts of one Complete invocation.
type FakeCall struct {
	System string
	User   string
}

// NewFakeClient creates a FakeClient that replies with the given
// responses in order.
func NewFakeClient(responses ...FakeResponse) *FakeClient {
	return &FakeClient{responses: responses}
}

// Complete implements Client.
func (f *FakeClient) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, FakeCall{System: system, User: user})

	if len(f.responses) == 0 {
		return "", ErrEmptyResponse
	}
	resp := f.responses[f.next]
	if f.next < len(f.responses)-1 {
		f.next++
	}
	return resp.Content, resp.Err
}

// Calls returns the recorded invocations.
func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times Complete was invoked.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
