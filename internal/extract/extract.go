// Package extract pulls plain text out of uploaded documents.
// Libraries used: github.com/ledongthuc/pdf (PDF) and github.com/nguyenthenguyen/docx (DOCX).
package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"resumind-backend/internal/document"
)

// DefaultMaxPages bounds how many PDF pages are read.
const DefaultMaxPages = 10

// Extractor reads text from PDF and DOCX documents.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractText returns the text of doc. For PDFs only the first maxPages pages
// are read; pages beyond the cap are ignored.
func (e *Extractor) ExtractText(ctx context.Context, doc document.Document, maxPages int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if doc.Empty() {
		return "", errors.New("empty document")
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	switch mime := doc.Type(); mime {
	case document.MimePDF:
		return extractPDF(ctx, doc.Data, maxPages)
	case document.MimeDOCX:
		return extractDOCX(doc.Data)
	default:
		return "", fmt.Errorf("unsupported mime type: %s", mime)
	}
}

func extractPDF(ctx context.Context, data []byte, maxPages int) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := r.NumPage()
	if pages > maxPages {
		pages = maxPages
	}

	var buf strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()
	return stripDocxXML(r.Editable().GetContent()), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
