package expense

import (
	"sort"
	"strings"
	"time"
)

// SummaryRow is one grouping key with its accumulated total in cents.
type SummaryRow struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Total int64  `json:"total"`
}

// sortByTotalDesc orders rows descending by total, keeping first-seen order
// for ties.
func sortByTotalDesc(rows []SummaryRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total > rows[j].Total
	})
}

// TotalsByCategory groups expenses by category and sums amounts.
func TotalsByCategory(expenses []Expense) []SummaryRow {
	totals := make(map[string]int)
	rows := make([]SummaryRow, 0)
	for _, e := range expenses {
		key := string(e.Category)
		idx, ok := totals[key]
		if !ok {
			totals[key] = len(rows)
			rows = append(rows, SummaryRow{Key: key, Label: key})
			idx = len(rows) - 1
		}
		rows[idx].Total += e.Amount
	}
	sortByTotalDesc(rows)
	return rows
}

// TotalsByPayee groups expenses by exact payee string and sums amounts.
func TotalsByPayee(expenses []Expense) []SummaryRow {
	totals := make(map[string]int)
	rows := make([]SummaryRow, 0)
	for _, e := range expenses {
		idx, ok := totals[e.Payee]
		if !ok {
			totals[e.Payee] = len(rows)
			rows = append(rows, SummaryRow{Key: e.Payee, Label: e.Payee})
			idx = len(rows) - 1
		}
		rows[idx].Total += e.Amount
	}
	sortByTotalDesc(rows)
	return rows
}

// TotalsByItem groups line items across all expenses by trimmed,
// case-folded name. The display label keeps the first-seen original
// (trimmed) spelling for each key; empty names are skipped.
func TotalsByItem(expenses []Expense) []SummaryRow {
	totals := make(map[string]int)
	rows := make([]SummaryRow, 0)
	for _, e := range expenses {
		for _, item := range e.Items {
			key := strings.ToLower(strings.TrimSpace(item.Name))
			if key == "" {
				continue
			}
			idx, ok := totals[key]
			if !ok {
				totals[key] = len(rows)
				rows = append(rows, SummaryRow{Key: key, Label: strings.TrimSpace(item.Name)})
				idx = len(rows) - 1
			}
			rows[idx].Total += item.Price
		}
	}
	sortByTotalDesc(rows)
	return rows
}

// CategoryBreakdown returns per-category totals in fixed category order,
// omitting categories with no spend. Used by the chart view.
func CategoryBreakdown(expenses []Expense) []SummaryRow {
	totals := make(map[Category]int64)
	for _, e := range expenses {
		totals[e.Category] += e.Amount
	}
	rows := make([]SummaryRow, 0, len(Categories))
	for _, c := range Categories {
		if totals[c] > 0 {
			rows = append(rows, SummaryRow{Key: string(c), Label: string(c), Total: totals[c]})
		}
	}
	return rows
}

// TimelineDay is one day's expenses under a formatted day header.
type TimelineDay struct {
	Label    string    `json:"label"`
	Expenses []Expense `json:"expenses"`
}

// TimelineMonth is one month's day groups under a month-year header.
type TimelineMonth struct {
	Label string        `json:"label"`
	Days  []TimelineDay `json:"days"`
}

// dayHeader formats a date for the timeline, with Today/Yesterday special
// cases relative to now.
func dayHeader(date, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return date.Format("Jan 2")
	}
}

// Timeline groups expenses hierarchically by month-year, then by day,
// sorted reverse-chronologically so headers appear newest first. Records
// whose date fails to parse are skipped.
func Timeline(expenses []Expense, now time.Time) []TimelineMonth {
	type dated struct {
		expense Expense
		date    time.Time
	}
	sorted := make([]dated, 0, len(expenses))
	for _, e := range expenses {
		d, err := ParseDate(e.Date)
		if err != nil {
			continue
		}
		sorted = append(sorted, dated{expense: e, date: d})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].date.After(sorted[j].date)
	})

	months := make([]TimelineMonth, 0)
	monthIdx := make(map[string]int)
	dayIdx := make(map[string]int)
	for _, d := range sorted {
		monthLabel := d.date.Format("January 2006")
		mi, ok := monthIdx[monthLabel]
		if !ok {
			monthIdx[monthLabel] = len(months)
			months = append(months, TimelineMonth{Label: monthLabel})
			mi = len(months) - 1
		}
		dayLabel := dayHeader(d.date, now)
		dayKey := monthLabel + "\x00" + dayLabel
		di, ok := dayIdx[dayKey]
		if !ok {
			dayIdx[dayKey] = len(months[mi].Days)
			months[mi].Days = append(months[mi].Days, TimelineDay{Label: dayLabel})
			di = len(months[mi].Days) - 1
		}
		months[mi].Days[di].Expenses = append(months[mi].Days[di].Expenses, d.expense)
	}
	return months
}

// FilterByRange returns the expenses whose date falls inside [start, end].
// Records with unparseable dates are excluded.
func FilterByRange(expenses []Expense, start, end time.Time) []Expense {
	filtered := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		d, err := ParseDate(e.Date)
		if err != nil {
			continue
		}
		if !d.Before(start) && !d.After(end) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Total sums expense amounts.
func Total(expenses []Expense) int64 {
	var sum int64
	for _, e := range expenses {
		sum += e.Amount
	}
	return sum
}
