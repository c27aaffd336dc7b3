package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/paperwatch/internal/logging"
	"github.com/fyrsmithlabs/paperwatch/internal/pipeline"
)

const defaultArxivBaseURL = "https://export.arxiv.org/api/query"

// ArxivSource fetches recent submissions from the arXiv Atom API.
type ArxivSource struct {
	baseURL    string
	categories []string
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter
	parser     *gofeed.Parser
}

// ArxivOption configures an ArxivSource.
type ArxivOption func(*ArxivSource)

// WithArxivBaseURL overrides the API endpoint (for testing).
func WithArxivBaseURL(u string) ArxivOption {
	return func(s *ArxivSource) { s.baseURL = u }
}

// WithArxivHTTPClient overrides the HTTP client.
func WithArxivHTTPClient(c *http.Client) ArxivOption {
	return func(s *ArxivSource) { s.client = c }
}

// WithArxivTimeout overrides the per-request timeout. Zero keeps the
// default.
func WithArxivTimeout(d time.Duration) ArxivOption {
	return func(s *ArxivSource) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// NewArxivSource creates a source querying the given arXiv categories,
// capped at maxResults candidates per fetch.
func NewArxivSource(categories []string, maxResults int, rps float64, opts ...ArxivOption) *ArxivSource {
	s := &ArxivSource{
		baseURL:    defaultArxivBaseURL,
		categories: categories,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = gofeed.NewParser()
	s.parser.Client = s.client
	return s
}

// Name implements Source.
func (s *ArxivSource) Name() string { return SourceArxiv }

// Fetch queries the newest submissions in the configured categories
// and keeps those published within the window.
func (s *ArxivSource) Fetch(ctx context.Context, window Window) ([]Paper, error) {
	log := logging.FromContext(ctx)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	terms := make([]string, len(s.categories))
	for i, cat := range s.categories {
		terms[i] = "cat:" + cat
	}

	q := url.Values{}
	q.Set("search_query", strings.Join(terms, " OR "))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	q.Set("max_results", fmt.Sprintf("%d", s.maxResults))

	feed, err := s.parser.ParseURLWithContext(s.baseURL+"?"+q.Encode(), ctx)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("querying arXiv: %w", err))
	}

	var papers []Paper
	for _, item := range feed.Items {
		if item.PublishedParsed == nil || !item.PublishedParsed.After(window.Since) {
			continue
		}

		// Entry link is https://arxiv.org/abs/<id>vN
		id := item.Link
		if idx := strings.LastIndex(id, "/"); idx != -1 {
			id = id[idx+1:]
		}
		if id == "" {
			log.Warn(ctx, "skipping arXiv entry without id", zap.String("title", item.Title))
			continue
		}

		papers = append(papers, Paper{
			ID:       id,
			URL:      item.Link,
			PDFURL:   strings.Replace(item.Link, "/abs/", "/pdf/", 1),
			Title:    strings.Join(strings.Fields(item.Title), " "),
			Abstract: strings.TrimSpace(item.Description),
			Authors:  authorNames(item),
			Source:   SourceArxiv,
		})
	}

	return papers, nil
}

func authorNames(item *gofeed.Item) []string {
	names := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}
