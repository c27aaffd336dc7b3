package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/paperwatch/internal/logging"
	"github.com/fyrsmithlabs/paperwatch/internal/pipeline"
)

const (
	defaultChemrxivBaseURL = "https://chemrxiv.org/engage/chemrxiv/public-api/v1"
	chemrxivPageSize       = 50
)

// ChemrxivSource fetches from the ChemRxiv public API. The API is
// paginated; Fetch walks pages until one comes back empty or the
// maxResults cap is reached.
type ChemrxivSource struct {
	baseURL    string
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter
}

// ChemrxivOption configures a ChemrxivSource.
type ChemrxivOption func(*ChemrxivSource)

// WithChemrxivBaseURL overrides the API endpoint (for testing).
func WithChemrxivBaseURL(u string) ChemrxivOption {
	return func(s *ChemrxivSource) { s.baseURL = u }
}

// WithChemrxivHTTPClient overrides the HTTP client.
func WithChemrxivHTTPClient(c *http.Client) ChemrxivOption {
	return func(s *ChemrxivSource) { s.client = c }
}

// WithChemrxivTimeout overrides the per-request timeout. Zero keeps
// the default.
func WithChemrxivTimeout(d time.Duration) ChemrxivOption {
	return func(s *ChemrxivSource) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// NewChemrxivSource creates a ChemRxiv source capped at maxResults
// candidates per fetch.
func NewChemrxivSource(maxResults int, rps float64, opts ...ChemrxivOption) *ChemrxivSource {
	s := &ChemrxivSource{
		baseURL:    defaultChemrxivBaseURL,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *ChemrxivSource) Name() string { return SourceChemrxiv }

type chemrxivResponse struct {
	ItemHits []chemrxivHit `json:"itemHits"`
}

type chemrxivHit struct {
	Item chemrxivItem `json:"item"`
}

type chemrxivItem struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Abstract string           `json:"abstract"`
	Authors  []chemrxivAuthor `json:"authors"`
	Asset    chemrxivAsset    `json:"asset"`
}

type chemrxivAuthor struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type chemrxivAsset struct {
	Original struct {
		URL string `json:"url"`
	} `json:"original"`
}

// Fetch pages through items published since the window start.
func (s *ChemrxivSource) Fetch(ctx context.Context, window Window) ([]Paper, error) {
	log := logging.FromContext(ctx)

	var papers []Paper
	for page := 0; len(papers) < s.maxResults; page++ {
		hits, err := s.fetchPage(ctx, window, page)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			break
		}

		for _, hit := range hits {
			item := hit.Item
			if item.Asset.Original.URL == "" {
				log.Warn(ctx, "skipping ChemRxiv item without pdf", zap.String("title", item.Title))
				continue
			}

			authors := make([]string, 0, len(item.Authors))
			for _, a := range item.Authors {
				if name := strings.TrimSpace(a.FirstName + " " + a.LastName); name != "" {
					authors = append(authors, name)
				}
			}

			papers = append(papers, Paper{
				ID:       item.ID,
				URL:      fmt.Sprintf("https://chemrxiv.org/engage/chemrxiv/article-details/%s", item.ID),
				PDFURL:   item.Asset.Original.URL,
				Title:    item.Title,
				Abstract: item.Abstract,
				Authors:  authors,
				Source:   SourceChemrxiv,
			})
		}
	}

	if len(papers) > s.maxResults {
		papers = papers[:s.maxResults]
	}
	return papers, nil
}

func (s *ChemrxivSource) fetchPage(ctx context.Context, window Window, page int) ([]chemrxivHit, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(chemrxivPageSize))
	q.Set("skip", strconv.Itoa(page*chemrxivPageSize))
	q.Set("searchDateFrom", window.Since.UTC().Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/items?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building ChemRxiv request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("querying ChemRxiv: %w", err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, SourceChemrxiv); err != nil {
		return nil, err
	}

	var body chemrxivResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding ChemRxiv response: %w", err)
	}
	return body.ItemHits, nil
}
