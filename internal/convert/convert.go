// Package convert renders the first page of a document to a PNG preview.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"resumind-backend/internal/document"
)

// DefaultDPI is the preview rendering resolution.
const DefaultDPI = 150.0

var (
	// ErrUnsupported is returned for documents of an unknown type.
	ErrUnsupported = errors.New("convert: unsupported document type")
	// ErrNoPreview is returned for supported documents that have no raster
	// form. Callers continue without a preview.
	ErrNoPreview = errors.New("convert: document has no preview")
)

// Image is an encoded preview.
type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// FitzConverter renders PDFs with MuPDF through go-fitz.
type FitzConverter struct {
	DPI float64
}

// NewFitzConverter returns a converter rendering at dpi, or DefaultDPI when dpi <= 0.
func NewFitzConverter(dpi float64) *FitzConverter {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &FitzConverter{DPI: dpi}
}

// Convert renders page one of doc as PNG.
func (c *FitzConverter) Convert(ctx context.Context, doc document.Document) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	if doc.Empty() {
		return Image{}, errors.New("convert: empty document")
	}
	switch doc.Type() {
	case document.MimePDF:
	case document.MimeDOCX:
		return Image{}, ErrNoPreview
	default:
		return Image{}, ErrUnsupported
	}

	fd, err := fitz.NewFromMemory(doc.Data)
	if err != nil {
		return Image{}, fmt.Errorf("open pdf: %w", err)
	}
	defer fd.Close()

	if fd.NumPage() == 0 {
		return Image{}, errors.New("convert: pdf has no pages")
	}

	img, err := fd.ImageDPI(0, c.DPI)
	if err != nil {
		return Image{}, fmt.Errorf("render page 1: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("encode png: %w", err)
	}
	bounds := img.Bounds()
	return Image{
		Data:        buf.Bytes(),
		ContentType: "image/png",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}
