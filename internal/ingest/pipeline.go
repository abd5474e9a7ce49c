package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spendlens/spendlens/internal/expense"
	"github.com/spendlens/spendlens/internal/rasterize"
	"github.com/spendlens/spendlens/internal/scanning"
)

// Upload is one user-selected file handed to the pipeline.
type Upload struct {
	Filename    string
	Data        []byte
	ContentType string
}

// Draft is the result of the single-image path: a preview plus extracted
// fields awaiting user confirmation. The preview is built before the
// extraction call, so it is present even when Fields is nil because
// extraction failed; the caller can still offer manual entry over it.
type Draft struct {
	Preview string                     `json:"preview"`
	Fields  *scanning.ExtractedExpense `json:"fields,omitempty"`
}

// StatusFunc receives human-readable progress updates.
type StatusFunc func(status string)

// Pipeline orchestrates file classification, rasterization, and per-page
// extraction. It holds no state across invocations; concurrent calls are
// independent.
type Pipeline struct {
	extractor  scanning.Extractor
	rasterizer rasterize.Rasterizer
}

// NewPipeline creates a Pipeline.
func NewPipeline(extractor scanning.Extractor, rasterizer rasterize.Rasterizer) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		rasterizer: rasterizer,
	}
}

// FromImage runs the single-image path: validate the MIME type, build a
// preview, extract once. The returned draft is not committed anywhere; the
// caller owns the review/submit step. On extraction failure the draft
// (preview only) is returned together with the error.
func (p *Pipeline) FromImage(ctx context.Context, up Upload) (*Draft, error) {
	contentType := strings.ToLower(strings.TrimSpace(up.ContentType))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, &UnsupportedFileTypeError{ContentType: up.ContentType}
	}

	data, mimeType, err := rasterize.NormalizeImage(up.Data, contentType)
	if err != nil {
		return nil, &UnsupportedFileTypeError{ContentType: up.ContentType, Err: err}
	}

	draft := &Draft{Preview: rasterize.DataURI(mimeType, data)}

	fields, err := p.extractor.ExtractExpense(ctx, data, mimeType)
	if err != nil {
		return draft, err
	}
	draft.Fields = fields
	return draft, nil
}

// FromPDF runs the multi-page path: rasterize the whole document, then
// extract each page in ascending order. One page failing never aborts the
// batch; only zero successes is an error. Each returned record carries its
// originating page's preview and is ready to commit as-is (IDs are assigned
// by whoever persists the batch).
func (p *Pipeline) FromPDF(ctx context.Context, up Upload, onStatus StatusFunc) ([]expense.Expense, error) {
	if onStatus == nil {
		onStatus = func(string) {}
	}

	contentType := strings.ToLower(strings.TrimSpace(up.ContentType))
	if contentType != "application/pdf" {
		return nil, &UnsupportedFileTypeError{ContentType: up.ContentType}
	}

	pages, err := p.rasterizer.RasterizePDF(ctx, up.Data, rasterize.ProgressFunc(onStatus))
	if err != nil {
		return nil, err
	}

	records, failed := p.extractPages(ctx, pages, onStatus)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed > 0 {
		slog.Warn("Some pages failed extraction", "filename", up.Filename, "pages", len(pages), "failed", failed)
	}
	if len(records) == 0 {
		return nil, &AllPagesFailedError{Pages: len(pages)}
	}
	return records, nil
}

// extractPages folds over the rendered pages, strictly sequentially and in
// page order, collecting successes and counting failures. The
// all-or-nothing decision is the caller's.
func (p *Pipeline) extractPages(ctx context.Context, pages []rasterize.PageImage, onStatus StatusFunc) ([]expense.Expense, int) {
	records := make([]expense.Expense, 0, len(pages))
	failed := 0
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		onStatus(fmt.Sprintf("Analyzing page %d of %d...", page.Number, len(pages)))

		fields, err := p.extractor.ExtractExpense(ctx, page.Data, page.MIMEType)
		if err != nil {
			slog.Warn("Failed to extract page", "page", page.Number, "error", err)
			failed++
			continue
		}
		records = append(records, buildRecord(fields, page.PreviewURI))
	}
	return records, failed
}

// buildRecord turns extracted fields plus a page preview into an expense
// record. The ID and creation time are left for the committer.
func buildRecord(fields *scanning.ExtractedExpense, preview string) expense.Expense {
	e := expense.Expense{
		Payee:        fields.Payee,
		Amount:       scanning.DollarsToCents(fields.Amount),
		Date:         fields.Date,
		Category:     fields.Category,
		Description:  fields.Description,
		ImagePreview: preview,
	}
	for _, item := range fields.Items {
		e.Items = append(e.Items, expense.LineItem{
			Name:  item.Name,
			Price: scanning.DollarsToCents(item.Price),
		})
	}
	return e
}
