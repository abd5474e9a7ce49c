package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
)

const (
	// renderDPI is 1.5x the 72 DPI PDF baseline, balancing extraction
	// fidelity against memory and payload size. Tunable.
	renderDPI = 108

	// jpegQuality controls page image payload size for the vision call.
	jpegQuality = 90

	// pageMIMEType is the encoding of every rendered page.
	pageMIMEType = "image/jpeg"
)

// PageImage is one rendered PDF page. Pages are 1-indexed and produced in
// ascending order. The preview URI outlives the raw data: it gets attached
// to the expense record built from this page.
type PageImage struct {
	Number     int
	Data       []byte // JPEG bytes
	MIMEType   string
	PreviewURI string // data URI for display
}

// ProgressFunc receives human-readable status updates during rasterization.
type ProgressFunc func(status string)

// Rasterizer defines the interface for PDF-to-page-images conversion.
type Rasterizer interface {
	// RasterizePDF renders every page of the document in page order.
	// Any parse or render failure fails the whole document; no partial
	// page list is returned.
	RasterizePDF(ctx context.Context, pdfData []byte, onProgress ProgressFunc) ([]PageImage, error)
}

// RasterizationError indicates the PDF could not be parsed or a page could
// not be rendered. Fatal for the whole document.
type RasterizationError struct {
	Err error
}

func (e *RasterizationError) Error() string {
	return "could not read the PDF file, it may be corrupt or unsupported"
}

func (e *RasterizationError) Unwrap() error {
	return e.Err
}

// Fitz implements Rasterizer using go-fitz (MuPDF).
type Fitz struct{}

// NewFitz creates a new Fitz rasterizer.
func NewFitz() *Fitz {
	return &Fitz{}
}

// RasterizePDF renders each page of the PDF into a JPEG PageImage.
func (f *Fitz) RasterizePDF(ctx context.Context, pdfData []byte, onProgress ProgressFunc) ([]PageImage, error) {
	if onProgress == nil {
		onProgress = func(string) {}
	}
	onProgress("Parsing PDF...")

	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, &RasterizationError{Err: fmt.Errorf("opening PDF: %w", err)}
	}
	defer doc.Close()

	numPages := doc.NumPage()
	pages := make([]PageImage, 0, numPages)
	for i := 0; i < numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &RasterizationError{Err: err}
		}
		onProgress(fmt.Sprintf("Processing page %d of %d...", i+1, numPages))

		img, err := doc.ImageDPI(i, renderDPI)
		if err != nil {
			return nil, &RasterizationError{Err: fmt.Errorf("rendering page %d: %w", i+1, err)}
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, &RasterizationError{Err: fmt.Errorf("encoding page %d: %w", i+1, err)}
		}

		data := buf.Bytes()
		pages = append(pages, PageImage{
			Number:     i + 1,
			Data:       data,
			MIMEType:   pageMIMEType,
			PreviewURI: DataURI(pageMIMEType, data),
		})
	}

	return pages, nil
}
