// Package report renders analyzed papers into the daily Markdown
// report and writes it to disk.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/fyrsmithlabs/paperwatch/internal/analysis"
)

// ErrRenderFailed indicates the report template could not be executed.
var ErrRenderFailed = errors.New("report render failed")

// DefaultTitle is the report heading used when none is configured.
const DefaultTitle = "AI4Science Daily Paper Report"

const reportTemplate = `# {{.Title}} — {{.Date}}

{{if not .Papers}}No relevant papers found today. Check back tomorrow!
{{else}}{{range $i, $p := .Papers}}## {{inc $i}}. {{$p.Paper.Title}}

**Authors:** *{{join $p.Paper.Authors ", "}}*

**Source:** [{{$p.Paper.Source}}]({{$p.Paper.URL}}) | **PDF:** [Link]({{$p.Paper.PDFURL}})
{{with resources $p}}
**Resources:** {{.}}
{{end}}
**Keywords:** ` + "`{{join $p.Keywords \", \"}}`" + `

### Summary
{{$p.Summary}}

<details>
<summary>Detailed Analysis (Q&A)</summary>
{{range $p.QA}}
**Q:** {{.Question}}
**A:** {{.Answer}}
{{end}}
</details>

---

{{end}}{{end}}`

// Synthesizer renders and saves reports.
type Synthesizer struct {
	title string
	tmpl  *template.Template
	now   func() time.Time
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithTitle overrides the report heading.
func WithTitle(title string) SynthesizerOption {
	return func(s *Synthesizer) {
		if title != "" {
			s.title = title
		}
	}
}

// WithSynthesizerClock overrides the time source (for testing).
func WithSynthesizerClock(now func() time.Time) SynthesizerOption {
	return func(s *Synthesizer) { s.now = now }
}

// NewSynthesizer creates a report Synthesizer.
func NewSynthesizer(opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		title: DefaultTitle,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
		"inc":       func(i int) int { return i + 1 },
		"join":      strings.Join,
		"resources": resourceLine,
	}).Parse(reportTemplate))

	return s
}

// resourceLine builds the Resources line, or returns "" to omit it.
func resourceLine(r analysis.Record) string {
	var parts []string
	if r.Links.GitHub != "" {
		parts = append(parts, fmt.Sprintf("[GitHub](%s)", r.Links.GitHub))
	}
	if r.Links.HuggingFace != "" {
		parts = append(parts, fmt.Sprintf("[Hugging Face](%s)", r.Links.HuggingFace))
	}
	return strings.Join(parts, " | ")
}

// Synthesize renders the Markdown report for the given papers. An
// empty slice produces the "no relevant papers" placeholder report
// rather than an error.
func (s *Synthesizer) Synthesize(papers []analysis.Record) (string, error) {
	data := struct {
		Title  string
		Date   string
		Papers []analysis.Record
	}{
		Title:  s.title,
		Date:   s.now().UTC().Format("2006-01-02"),
		Papers: papers,
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}

// Filename returns the report filename for the synthesizer's current
// date, e.g. paperwatch_report_2026-08-29.md.
func (s *Synthesizer) Filename() string {
	return fmt.Sprintf("paperwatch_report_%s.md", s.now().UTC().Format("2006-01-02"))
}

// Write saves a rendered report under dir, creating the directory if
// needed, and returns the full path.
func (s *Synthesizer) Write(dir, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	path := filepath.Join(dir, s.Filename())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
