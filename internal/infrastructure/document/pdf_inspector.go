// Package document inspects uploaded claim documents before they reach a carrier.
package document

import (
	"bytes"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
)

var pdfMagic = []byte("%PDF-")

// PDFInspector opens PDFs with MuPDF to confirm they are readable and count pages
type PDFInspector struct {
	maxPages int
	logger   *zap.Logger
}

// NewPDFInspector creates an inspector. maxPages <= 0 disables the page limit.
func NewPDFInspector(maxPages int, logger *zap.Logger) *PDFInspector {
	return &PDFInspector{
		maxPages: maxPages,
		logger:   logger,
	}
}

// PageCount implements port.DocumentInspector
func (i *PDFInspector) PageCount(content []byte, contentType string) (int, error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("document is empty")
	}
	if !bytes.HasPrefix(bytes.TrimLeft(content, "\x00\t\r\n "), pdfMagic) {
		return 0, fmt.Errorf("content is not a PDF (content type %q)", contentType)
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount < 1 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	if i.maxPages > 0 && pageCount > i.maxPages {
		return 0, fmt.Errorf("PDF has %d pages, limit is %d", pageCount, i.maxPages)
	}

	i.logger.Debug("Inspected PDF document",
		zap.Int("total_pages", pageCount),
		zap.Int("size_bytes", len(content)))
	return pageCount, nil
}

var _ port.DocumentInspector = (*PDFInspector)(nil)
