package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaper(id, source string) Paper {
	return Paper{
		ID:       id,
		URL:      "https://example.org/" + id,
		PDFURL:   "https://example.org/" + id + ".pdf",
		Title:    "Paper " + id,
		Abstract: "An abstract.",
		Authors:  []string{"A. Author"},
		Source:   source,
	}
}

func TestFetcher_MergesAllSources(t *testing.T) {
	fetcher := NewFetcher([]Source{
		&FakeSource{SourceName: SourceArxiv, Papers: []Paper{testPaper("a1", SourceArxiv), testPaper("a2", SourceArxiv)}},
		&FakeSource{SourceName: SourceBiorxiv, Papers: []Paper{testPaper("b1", SourceBiorxiv)}},
	}, 24*time.Hour)

	papers, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, papers, 3)
	ids := []string{papers[0].ID, papers[1].ID, papers[2].ID}
	assert.Equal(t, []string{"a1", "a2", "b1"}, ids)
}

func TestFetcher_ToleratesPartialSourceFailure(t *testing.T) {
	fetcher := NewFetcher([]Source{
		&FakeSource{SourceName: SourceArxiv, Err: errors.New("503")},
		&FakeSource{SourceName: SourceChemrxiv, Papers: []Paper{testPaper("c1", SourceChemrxiv)}},
	}, 24*time.Hour)

	papers, err := fetcher.Fetch(context.Background())

	require.NoError(t, err, "one healthy source is enough")
	require.Len(t, papers, 1)
	assert.Equal(t, "c1", papers[0].ID)
}

func TestFetcher_AllSourcesFailed(t *testing.T) {
	fetcher := NewFetcher([]Source{
		&FakeSource{SourceName: SourceArxiv, Err: errors.New("down")},
		&FakeSource{SourceName: SourceBiorxiv, Err: errors.New("also down")},
	}, 24*time.Hour)

	_, err := fetcher.Fetch(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetcher_EmptyDayIsNotAnError(t *testing.T) {
	fetcher := NewFetcher([]Source{
		&FakeSource{SourceName: SourceArxiv},
	}, 24*time.Hour)

	papers, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestFetcher_DeduplicatesByID(t *testing.T) {
	dup := testPaper("shared", SourceArxiv)
	fetcher := NewFetcher([]Source{
		&FakeSource{SourceName: SourceArxiv, Papers: []Paper{dup, testPaper("a1", SourceArxiv)}},
		&FakeSource{SourceName: SourceBiorxiv, Papers: []Paper{testPaper("shared", SourceBiorxiv)}},
	}, 24*time.Hour)

	papers, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, SourceArxiv, papers[0].Source, "first occurrence wins")
}

func TestFetcher_DropsMalformedCandidates(t *testing.T) {
	missingPDF := testPaper("broken", SourceArxiv)
	missingPDF.PDFURL = ""

	fetcher := NewFetcher([]Source{
		&FakeSource{SourceName: SourceArxiv, Papers: []Paper{missingPDF, testPaper("ok", SourceArxiv)}},
	}, 24*time.Hour)

	papers, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "ok", papers[0].ID)
}

func TestNewWindow(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	w := NewWindow(now, 24*time.Hour)

	assert.Equal(t, now.Add(-24*time.Hour), w.Since)
	assert.Equal(t, now, w.Until)
}

func TestPaper_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Paper)
		wantErr bool
	}{
		{"valid", func(p *Paper) {}, false},
		{"missing id", func(p *Paper) { p.ID = "" }, true},
		{"missing title", func(p *Paper) { p.Title = "" }, true},
		{"missing pdf", func(p *Paper) { p.PDFURL = "" }, true},
		{"missing abstract is fine", func(p *Paper) { p.Abstract = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPaper("x", SourceArxiv)
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
