package scanning

import (
	"context"

	"github.com/spendlens/spendlens/internal/expense"
)

// ExtractedItem is one line item returned by the vision model. Price is in
// currency units as returned; conversion to cents happens at the parse
// boundary.
type ExtractedItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ExtractedExpense contains the structured fields extracted from one
// receipt image. Category is always a member of the closed set by the time
// a value leaves this package.
type ExtractedExpense struct {
	Payee       string           `json:"payee"`
	Amount      float64          `json:"amount"`
	Date        string           `json:"date"` // YYYY-MM-DD
	Category    expense.Category `json:"category"`
	Description string           `json:"description,omitempty"`
	Items       []ExtractedItem  `json:"items,omitempty"`
}

// Extractor defines the interface for receipt field extraction.
type Extractor interface {
	// ExtractExpense analyzes one receipt image and extracts expense
	// fields. A failed call, empty response, or unparseable response
	// yields an *ExtractionError.
	ExtractExpense(ctx context.Context, imageData []byte, mimeType string) (*ExtractedExpense, error)

	// Close releases the extractor's resources.
	Close() error
}

// ExtractionError indicates the vision call failed or returned data that
// could not be parsed. The message is safe to show to a user; the caller
// decides whether to retry or fall back to manual entry.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "failed to analyze the receipt, please try again or enter details manually"
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
