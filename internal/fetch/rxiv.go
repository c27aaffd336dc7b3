package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/paperwatch/internal/pipeline"
)

const defaultRxivBaseURL = "https://api.biorxiv.org"

// RxivSource fetches from the bioRxiv details API, which serves both
// the biorxiv and medrxiv servers.
type RxivSource struct {
	server  string // "biorxiv" or "medrxiv"
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// RxivOption configures a RxivSource.
type RxivOption func(*RxivSource)

// WithRxivBaseURL overrides the API endpoint (for testing).
func WithRxivBaseURL(u string) RxivOption {
	return func(s *RxivSource) { s.baseURL = u }
}

// WithRxivHTTPClient overrides the HTTP client.
func WithRxivHTTPClient(c *http.Client) RxivOption {
	return func(s *RxivSource) { s.client = c }
}

// WithRxivTimeout overrides the per-request timeout. Zero keeps the
// default.
func WithRxivTimeout(d time.Duration) RxivOption {
	return func(s *RxivSource) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// NewBiorxivSource creates a source for the biorxiv server.
func NewBiorxivSource(rps float64, opts ...RxivOption) *RxivSource {
	return newRxivSource("biorxiv", rps, opts...)
}

// NewMedrxivSource creates a source for the medrxiv server.
func NewMedrxivSource(rps float64, opts ...RxivOption) *RxivSource {
	return newRxivSource("medrxiv", rps, opts...)
}

func newRxivSource(server string, rps float64, opts ...RxivOption) *RxivSource {
	s := &RxivSource{
		server:  server,
		baseURL: defaultRxivBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *RxivSource) Name() string {
	if s.server == "medrxiv" {
		return SourceMedrxiv
	}
	return SourceBiorxiv
}

// rxivResponse is the details API envelope.
type rxivResponse struct {
	Collection []rxivEntry `json:"collection"`
}

type rxivEntry struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"` // semicolon-separated
	Abstract string `json:"abstract"`
	Version  string `json:"version"`
	Date     string `json:"date"`
}

// Fetch lists papers posted between the window's dates. The details
// API takes whole dates, so the window is widened to day boundaries.
func (s *RxivSource) Fetch(ctx context.Context, window Window) ([]Paper, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/details/%s/%s/%s",
		s.baseURL, s.server,
		window.Since.UTC().Format("2006-01-02"),
		window.Until.UTC().Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", s.server, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("querying %s: %w", s.server, err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, s.server); err != nil {
		return nil, err
	}

	var body rxivResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", s.server, err)
	}

	host := "www.biorxiv.org"
	if s.server == "medrxiv" {
		host = "www.medrxiv.org"
	}

	var papers []Paper
	for _, entry := range body.Collection {
		if entry.DOI == "" {
			continue
		}

		pageURL := fmt.Sprintf("https://%s/content/%s", host, entry.DOI)
		papers = append(papers, Paper{
			ID:       entry.DOI,
			URL:      pageURL,
			PDFURL:   fmt.Sprintf("%sv%s.full.pdf", pageURL, entry.Version),
			Title:    entry.Title,
			Abstract: entry.Abstract,
			Authors:  splitAuthors(entry.Authors),
			Source:   s.Name(),
		})
	}

	return papers, nil
}

// splitAuthors splits the API's "Last, F.; Last, F." author string.
func splitAuthors(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// checkStatus converts non-2xx responses into errors, marking
// rate-limit and server-side failures transient.
func checkStatus(resp *http.Response, source string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read a little of the body for error context.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s returned %d: %s", source, resp.StatusCode, strings.TrimSpace(string(snippet)))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return pipeline.Transient(err)
	}
	return err
}
