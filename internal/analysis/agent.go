// Package analysis runs the per-paper deep read: download the PDF,
// extract its text and resource links, and ask the expensive model a
// fixed set of analytical questions.
package analysis

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/paperwatch/internal/fetch"
	"github.com/fyrsmithlabs/paperwatch/internal/llm"
	"github.com/fyrsmithlabs/paperwatch/internal/logging"
)

// Questions is the fixed analytical question set answered for every
// paper, in report order.
var Questions = []string{
	"1. What is the main research question or problem the paper addresses?",
	"2. What is the key innovation or contribution of this paper?",
	"3. What is the methodology or approach used in this paper?",
	"4. What were the main results of the experiments or analysis?",
	"5. What are the main limitations of the work described in the paper?",
	"6. How does this work compare to previous research in the field?",
	"7. What are the potential future directions for this research?",
	"8. What are the practical applications or implications of this work?",
	"9. What datasets were used in this study, and are they publicly available?",
	"10. Is the code or software used in this study available, and if so, where?",
}

const analysisSystemPrompt = "You are a highly skilled research assistant specializing in AI for Science. " +
	"Your task is to read the provided scientific paper text and perform a detailed analysis. " +
	"You must answer a specific set of questions, generate relevant keywords, and provide a concise summary. " +
	"Base your answers strictly on the content of the paper. If the paper does not provide an answer to a question, state that clearly. " +
	"Respond with a JSON object only, of the form " +
	`{"analysis_qa": [{"question": "...", "answer": "..."}], "keywords": ["..."], "summary": "..."}.`

// defaultMaxTextChars truncates extracted paper text before prompting.
const defaultMaxTextChars = 30000

// QA is one answered analytical question.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Record is the complete analysis of one paper.
type Record struct {
	Paper    fetch.Paper   `json:"paper"`
	QA       []QA          `json:"analysis_qa"`
	Keywords []string      `json:"keywords"`
	Summary  string        `json:"summary"`
	Links    ResourceLinks `json:"resource_links"`
}

// analysisResponse is the model's JSON shape.
type analysisResponse struct {
	QA       []QA     `json:"analysis_qa"`
	Keywords []string `json:"keywords"`
	Summary  string   `json:"summary"`
}

// Agent analyzes one paper at a time.
type Agent struct {
	llm          llm.Client
	client       *http.Client
	maxTextChars int

	// fetchText is the download-and-parse step, swappable in tests.
	fetchText func(ctx context.Context, pdfURL string) (string, error)
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithHTTPClient overrides the PDF download client.
func WithHTTPClient(c *http.Client) AgentOption {
	return func(a *Agent) { a.client = c }
}

// WithMaxTextChars overrides the prompt text cap.
func WithMaxTextChars(n int) AgentOption {
	return func(a *Agent) { a.maxTextChars = n }
}

// NewAgent creates an analysis Agent over the given (expensive-tier)
// LLM client.
func NewAgent(client llm.Client, opts ...AgentOption) *Agent {
	a := &Agent{
		llm:          client,
		client:       &http.Client{Timeout: 30 * time.Second},
		maxTextChars: defaultMaxTextChars,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.fetchText = a.downloadText
	return a
}

// Analyze downloads the paper's PDF, extracts links, and asks the
// model the analytical questions. Link extraction runs over the full
// text before truncation, since code links tend to sit in appendices.
func (a *Agent) Analyze(ctx context.Context, paper fetch.Paper) (Record, error) {
	log := logging.FromContext(ctx)

	text, err := a.fetchText(ctx, paper.PDFURL)
	if err != nil {
		return Record{}, fmt.Errorf("paper %s: %w", paper.ID, err)
	}

	links := extractResourceLinks(text)

	if len(text) > a.maxTextChars {
		// Back off to a rune boundary so the cut never produces
		// invalid UTF-8 in the prompt.
		limit := a.maxTextChars
		for limit > 0 && !utf8.RuneStart(text[limit]) {
			limit--
		}
		log.Warn(ctx, "truncating paper text",
			zap.Int("chars", len(text)),
			zap.Int("limit", limit))
		text = text[:limit]
	}

	user := fmt.Sprintf(
		"Please analyze the following paper text and provide the answers to the questions, keywords, and a summary.\n\n"+
			"**Paper Text:**\n\n%s\n\n**Questions to Answer:**\n%s",
		text, strings.Join(Questions, "\n"))

	raw, err := a.llm.Complete(ctx, analysisSystemPrompt, user)
	if err != nil {
		return Record{}, fmt.Errorf("analyzing paper %s: %w", paper.ID, err)
	}

	var resp analysisResponse
	if err := llm.UnmarshalResponse(raw, &resp); err != nil {
		return Record{}, fmt.Errorf("parsing analysis for paper %s: %w", paper.ID, err)
	}
	if resp.Summary == "" {
		return Record{}, fmt.Errorf("analysis for paper %s missing summary", paper.ID)
	}

	log.Info(ctx, "analysis complete",
		zap.Int("questions_answered", len(resp.QA)),
		zap.Int("keywords", len(resp.Keywords)))

	return Record{
		Paper:    paper,
		QA:       resp.QA,
		Keywords: resp.Keywords,
		Summary:  resp.Summary,
		Links:    links,
	}, nil
}
