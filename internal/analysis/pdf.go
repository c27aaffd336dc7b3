package analysis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/fyrsmithlabs/paperwatch/internal/pipeline"
)

// maxPDFBytes caps the download size; preprint PDFs beyond this are
// almost certainly scans or supplements.
const maxPDFBytes = 50 << 20 // 50MB

var whitespaceRE = regexp.MustCompile(`\s+`)

// downloadText fetches a PDF and returns its plain text, with runs of
// whitespace collapsed to single spaces.
func (a *Agent) downloadText(ctx context.Context, pdfURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", fmt.Errorf("building pdf request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", pipeline.Transient(fmt.Errorf("downloading pdf: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("pdf download returned %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", pipeline.Transient(err)
		}
		return "", err
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return "", pipeline.Transient(fmt.Errorf("reading pdf body: %w", err))
	}
	if len(content) > maxPDFBytes {
		return "", fmt.Errorf("pdf exceeds %d bytes", maxPDFBytes)
	}

	text, err := extractText(content)
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}
	return text, nil
}

// extractText parses PDF bytes into collapsed plain text.
func extractText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", err
	}

	text := strings.TrimSpace(whitespaceRE.ReplaceAllString(sb.String(), " "))
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return text, nil
}
