package relevance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/paperwatch/internal/fetch"
	"github.com/fyrsmithlabs/paperwatch/internal/llm"
)

func samplePaper() fetch.Paper {
	return fetch.Paper{
		ID:       "2608.01001v1",
		Title:    "Deep Learning for Protein Folding",
		Abstract: "We apply deep learning to protein structures.",
		PDFURL:   "https://arxiv.org/pdf/2608.01001v1",
		Source:   fetch.SourceArxiv,
	}
}

func TestClassify_Relevant(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeResponse{
		Content: `{"is_relevant": true, "reason": "applies ML to structural biology"}`,
	})
	c := NewClassifier(fake)

	verdict, err := c.Classify(context.Background(), samplePaper())

	require.NoError(t, err)
	assert.True(t, verdict.IsRelevant)
	assert.Equal(t, "applies ML to structural biology", verdict.Reason)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "AI for Science")
	assert.Contains(t, calls[0].User, "Paper Title: Deep Learning for Protein Folding")
	assert.Contains(t, calls[0].User, "Abstract: We apply deep learning to protein structures.")
}

func TestClassify_NotRelevant(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeResponse{
		Content: "```json\n{\"is_relevant\": false, \"reason\": \"pure optimization theory\"}\n```",
	})
	c := NewClassifier(fake)

	verdict, err := c.Classify(context.Background(), samplePaper())

	require.NoError(t, err)
	assert.False(t, verdict.IsRelevant)
}

func TestClassify_ClientError(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeResponse{Err: errors.New("429 too many requests")})
	c := NewClassifier(fake)

	_, err := c.Classify(context.Background(), samplePaper())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2608.01001v1")
}

func TestClassify_MalformedVerdictIsAnError(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeResponse{Content: "definitely relevant, trust me"})
	c := NewClassifier(fake)

	_, err := c.Classify(context.Background(), samplePaper())

	require.Error(t, err, "garbage output must surface as a failure, not a silent rejection")
}
