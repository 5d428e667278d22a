// Package receipt reads text out of uploaded receipt documents.
package receipt

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DefaultMaxPages bounds how much of a long statement is read
const DefaultMaxPages = 3

// PDFTextReader implements port.DocumentTextReader with MuPDF
type PDFTextReader struct {
	maxPages int
	logger   *zap.Logger
}

// NewPDFTextReader creates a new PDF text reader. maxPages <= 0 uses DefaultMaxPages.
func NewPDFTextReader(maxPages int, logger *zap.Logger) *PDFTextReader {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &PDFTextReader{maxPages: maxPages, logger: logger}
}

// ReadText returns the text layer of the first pages of a PDF
func (r *PDFTextReader) ReadText(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty document")
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > r.maxPages {
		pages = r.maxPages
	}

	var b strings.Builder
	for page := 0; page < pages; page++ {
		text, err := doc.Text(page)
		if err != nil {
			r.logger.Warn("Failed to read page text", zap.Int("page", page), zap.Error(err))
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	r.logger.Debug("Read receipt text", zap.Int("pages", pages), zap.Int("chars", b.Len()))
	return strings.TrimSpace(b.String()), nil
}
