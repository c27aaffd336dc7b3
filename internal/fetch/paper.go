// Package fetch retrieves newly announced preprints from public
// academic APIs.
//
// Each preprint server is wrapped in a Source. The Fetcher fans out
// to all configured sources concurrently, rate-limits each source's
// requests, and merges the results into a deduplicated candidate
// list. A single source failing is logged and skipped; the fetch as a
// whole fails only when every source fails.
package fetch

import (
	"errors"
	"fmt"
	"time"
)

// Source names as they appear in Paper.Source and in log fields.
const (
	SourceArxiv    = "arXiv"
	SourceBiorxiv  = "bioRxiv"
	SourceMedrxiv  = "medRxiv"
	SourceChemrxiv = "chemRxiv"
)

// ErrSourceUnavailable indicates that every configured source failed.
var ErrSourceUnavailable = errors.New("all sources unavailable")

// Paper is a candidate preprint as announced by its source.
type Paper struct {
	// ID is the source-scoped identifier (arXiv ID, DOI, or item ID).
	ID string `json:"id"`

	// URL is the paper's landing page.
	URL string `json:"url"`

	// PDFURL points at the full-text PDF.
	PDFURL string `json:"pdf_url"`

	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Authors  []string `json:"authors"`

	// Source names the preprint server the paper came from.
	Source string `json:"source"`
}

// Validate checks that the candidate carries enough data to be
// analyzed downstream.
func (p Paper) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("paper missing id")
	}
	if p.Title == "" {
		return fmt.Errorf("paper %s missing title", p.ID)
	}
	if p.PDFURL == "" {
		return fmt.Errorf("paper %s missing pdf url", p.ID)
	}
	return nil
}

// Window describes the time range a fetch covers.
type Window struct {
	Since time.Time
	Until time.Time
}

// NewWindow returns the window ending now and starting the given
// duration earlier.
func NewWindow(now time.Time, lookback time.Duration) Window {
	return Window{
		Since: now.Add(-lookback),
		Until: now,
	}
}
