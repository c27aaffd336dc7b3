// Package relevance classifies paper candidates for topical fit using
// a cheap LLM call over title and abstract.
package relevance

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/paperwatch/internal/fetch"
	"github.com/fyrsmithlabs/paperwatch/internal/llm"
	"github.com/fyrsmithlabs/paperwatch/internal/logging"
)

const systemPrompt = "You are an expert in scientific research and AI. Your task is to determine if a paper is relevant to the field of 'AI for Science'. " +
	"This means the paper should be about applying AI, machine learning, or data science techniques to a scientific domain like physics, biology, chemistry, materials science, or medicine. " +
	"A paper that is purely about AI theory or computer science without a clear scientific application is not relevant. " +
	"Respond with a JSON object: {\"is_relevant\": <boolean>, \"reason\": \"<brief reason>\"}. Respond with JSON only."

// Verdict is the classifier's decision for one paper.
type Verdict struct {
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason"`
}

// Classifier decides whether a candidate belongs in the report.
type Classifier struct {
	client llm.Client
}

// NewClassifier creates a Classifier over the given (cheap-tier) LLM
// client.
func NewClassifier(client llm.Client) *Classifier {
	return &Classifier{client: client}
}

// Classify runs the relevance check for one paper. The verdict
// carries the model's reason alongside the boolean so it can be
// logged and audited.
//
// Malformed model output is returned as an error rather than silently
// treated as "not relevant"; the pipeline records it as an item
// failure.
func (c *Classifier) Classify(ctx context.Context, paper fetch.Paper) (Verdict, error) {
	log := logging.FromContext(ctx)

	user := fmt.Sprintf("Paper Title: %s\n\nAbstract: %s", paper.Title, paper.Abstract)

	raw, err := c.client.Complete(ctx, systemPrompt, user)
	if err != nil {
		return Verdict{}, fmt.Errorf("classifying paper %s: %w", paper.ID, err)
	}

	var verdict Verdict
	if err := llm.UnmarshalResponse(raw, &verdict); err != nil {
		return Verdict{}, fmt.Errorf("parsing verdict for paper %s: %w", paper.ID, err)
	}

	log.Debug(ctx, "relevance verdict",
		zap.Bool("relevant", verdict.IsRelevant),
		zap.String("reason", verdict.Reason))

	return verdict, nil
}
