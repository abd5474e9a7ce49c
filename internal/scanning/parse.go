package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spendlens/spendlens/internal/expense"
)

// rawExpense is the wire shape of the model response, before validation.
type rawExpense struct {
	Payee       string  `json:"payee"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Items       []struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	} `json:"items"`
}

// parseExpenseJSON parses the model response into validated expense
// fields. The schema constraint should make fences unnecessary, but models
// ignore instructions often enough that they are stripped anyway.
func parseExpenseJSON(text string, now time.Time) (*ExtractedExpense, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Keep only the outermost JSON object.
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw rawExpense
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data := &ExtractedExpense{
		Payee:       strings.TrimSpace(raw.Payee),
		Amount:      raw.Amount,
		Date:        normalizeDate(raw.Date, now),
		Category:    expense.NormalizeCategory(expense.Category(raw.Category)),
		Description: strings.TrimSpace(raw.Description),
	}
	if data.Payee == "" {
		data.Payee = "N/A"
	}
	for _, item := range raw.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		data.Items = append(data.Items, ExtractedItem{Name: name, Price: item.Price})
	}

	return data, nil
}

// normalizeDate coerces the model's date to YYYY-MM-DD, trying a few common
// formats before falling back to today.
func normalizeDate(date string, now time.Time) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return now.Format(expense.DateLayout)
	}

	if d, err := time.Parse(expense.DateLayout, date); err == nil {
		return d.Format(expense.DateLayout)
	}

	formats := []string{
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, date); err == nil {
			return d.Format(expense.DateLayout)
		}
	}
	return now.Format(expense.DateLayout)
}

// DollarsToCents converts a model-reported currency value to integer cents,
// rounding to the nearest cent.
func DollarsToCents(amount float64) int64 {
	if amount < 0 {
		amount = -amount
	}
	return int64(amount*100 + 0.5)
}
