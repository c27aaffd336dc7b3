package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/paperwatch/internal/analysis"
	"github.com/fyrsmithlabs/paperwatch/internal/fetch"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	}
}

func sampleRecord() analysis.Record {
	return analysis.Record{
		Paper: fetch.Paper{
			ID:      "test001",
			URL:     "http://example.com/test001",
			PDFURL:  "http://example.com/test001.pdf",
			Title:   "A Test Paper on AI for Science",
			Authors: []string{"Dr. Tester"},
			Source:  "arXiv",
		},
		QA: []analysis.QA{
			{Question: "What is the key innovation?", Answer: "A novel testing framework."},
			{Question: "What are the limitations?", Answer: "It only works in tests."},
		},
		Keywords: []string{"AI", "Testing", "Science"},
		Summary:  "This paper introduces a groundbreaking method for testing.",
		Links:    analysis.ResourceLinks{GitHub: "http://github.com/test/repo"},
	}
}

func TestSynthesize_EmptyList(t *testing.T) {
	s := NewSynthesizer(WithSynthesizerClock(fixedClock()))

	out, err := s.Synthesize(nil)

	require.NoError(t, err)
	assert.Contains(t, out, "AI4Science Daily Paper Report — 2026-08-29")
	assert.Contains(t, out, "No relevant papers found today")
}

func TestSynthesize_SinglePaper(t *testing.T) {
	s := NewSynthesizer(WithSynthesizerClock(fixedClock()))

	out, err := s.Synthesize([]analysis.Record{sampleRecord()})
	require.NoError(t, err)

	assert.Contains(t, out, "AI4Science Daily Paper Report")
	assert.Contains(t, out, "## 1. A Test Paper on AI for Science")
	assert.Contains(t, out, "**Authors:** *Dr. Tester*")
	assert.Contains(t, out, "**Source:** [arXiv](http://example.com/test001) | **PDF:** [Link](http://example.com/test001.pdf)")
	assert.Contains(t, out, "**Resources:** [GitHub](http://github.com/test/repo)")
	assert.Contains(t, out, "**Keywords:** `AI, Testing, Science`")
	assert.Contains(t, out, "### Summary\nThis paper introduces a groundbreaking method for testing.")
	assert.Contains(t, out, "<details>")
	assert.Contains(t, out, "**Q:** What is the key innovation?")
	assert.Contains(t, out, "**A:** A novel testing framework.")
	assert.NotContains(t, out, "No relevant papers found today")
}

func TestSynthesize_MultiplePapers(t *testing.T) {
	s := NewSynthesizer(WithSynthesizerClock(fixedClock()))

	second := sampleRecord()
	second.Paper.Title = "Another Test Paper"

	out, err := s.Synthesize([]analysis.Record{sampleRecord(), second})
	require.NoError(t, err)

	assert.Contains(t, out, "## 1. A Test Paper on AI for Science")
	assert.Contains(t, out, "## 2. Another Test Paper")
	assert.Equal(t, 2, strings.Count(out, "### Summary"))
	assert.Equal(t, 2, strings.Count(out, "<details>"))
}

func TestSynthesize_NoResourceLinksOmitsLine(t *testing.T) {
	s := NewSynthesizer(WithSynthesizerClock(fixedClock()))

	rec := sampleRecord()
	rec.Links = analysis.ResourceLinks{}

	out, err := s.Synthesize([]analysis.Record{rec})
	require.NoError(t, err)
	assert.NotContains(t, out, "**Resources:**")
}

func TestSynthesize_BothResourceLinks(t *testing.T) {
	s := NewSynthesizer(WithSynthesizerClock(fixedClock()))

	rec := sampleRecord()
	rec.Links.HuggingFace = "https://huggingface.co/test"

	out, err := s.Synthesize([]analysis.Record{rec})
	require.NoError(t, err)
	assert.Contains(t, out, "**Resources:** [GitHub](http://github.com/test/repo) | [Hugging Face](https://huggingface.co/test)")
}

func TestSynthesize_CustomTitle(t *testing.T) {
	s := NewSynthesizer(WithTitle("Lab Reading List"), WithSynthesizerClock(fixedClock()))

	out, err := s.Synthesize(nil)
	require.NoError(t, err)
	assert.Contains(t, out, "# Lab Reading List — 2026-08-29")
}

func TestFilename(t *testing.T) {
	s := NewSynthesizer(WithSynthesizerClock(fixedClock()))
	assert.Equal(t, "paperwatch_report_2026-08-29.md", s.Filename())
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	s := NewSynthesizer(WithSynthesizerClock(fixedClock()))

	path, err := s.Write(filepath.Join(dir, "reports"), "# hello\n")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "reports", "paperwatch_report_2026-08-29.md"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# hello\n", string(data))
}
