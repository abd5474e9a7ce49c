package expense

import (
	"fmt"
	"time"
)

// Category is the closed set of expense categories.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryGroceries     Category = "Groceries"
	CategoryUtilities     Category = "Utilities"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryHealth        Category = "Health"
	CategoryOther         Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryGroceries,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryShopping,
	CategoryHealth,
	CategoryOther,
}

// ValidCategory reports whether c is a member of the closed set.
func ValidCategory(c Category) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// NormalizeCategory coerces any value outside the closed set to Other.
// Values already in the set pass through unchanged.
func NormalizeCategory(c Category) Category {
	if ValidCategory(c) {
		return c
	}
	return CategoryOther
}

// DateLayout is the calendar-date format used everywhere in the data model.
const DateLayout = "2006-01-02"

// LineItem is one named, priced component of a receipt's total.
// Price is in cents.
type LineItem struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Expense represents a single expense record.
// Amount and item prices are stored as integer cents. Amount and the item
// prices are independently authoritative; their sum is not reconciled.
type Expense struct {
	ID           string     `json:"id"`
	Payee        string     `json:"payee"`
	Amount       int64      `json:"amount"` // Amount in cents
	Date         string     `json:"date"`   // YYYY-MM-DD
	Category     Category   `json:"category"`
	Description  string     `json:"description,omitempty"`
	Items        []LineItem `json:"items,omitempty"`
	ImagePreview string     `json:"image_preview,omitempty"` // data URI for display
	ReceiptFile  string     `json:"receipt_file,omitempty"`  // stored original upload
	CreatedAt    time.Time  `json:"created_at"`
}

// ParseDate parses a YYYY-MM-DD expense date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing expense date %q: %w", s, err)
	}
	return t, nil
}

// Validate checks the record invariants.
func (e *Expense) Validate() error {
	if e.Payee == "" {
		return fmt.Errorf("payee is required")
	}
	if e.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	if _, err := ParseDate(e.Date); err != nil {
		return fmt.Errorf("date must be a valid YYYY-MM-DD date: %w", err)
	}
	if !ValidCategory(e.Category) {
		return fmt.Errorf("unknown category: %s", e.Category)
	}
	for _, item := range e.Items {
		if item.Price < 0 {
			return fmt.Errorf("item %q has a negative price", item.Name)
		}
	}
	return nil
}
