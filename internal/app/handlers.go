package app

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spendlens/spendlens/internal/expense"
	"github.com/spendlens/spendlens/internal/ingest"
	"github.com/spendlens/spendlens/internal/rasterize"
	"github.com/spendlens/spendlens/internal/scanning"
)

// maxUploadSize caps multipart uploads; high-resolution phone photos can
// run large.
const maxUploadSize = int64(50 << 20) // 50MB

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body. Only a human-readable message goes
// to the client; internals stay in the logs.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ingestStatus maps a pipeline error to an HTTP status and a user-facing
// message.
func ingestStatus(err error) (int, string) {
	var unsupported *ingest.UnsupportedFileTypeError
	var extraction *scanning.ExtractionError
	var raster *rasterize.RasterizationError
	var allFailed *ingest.AllPagesFailedError
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType, unsupported.Error()
	case errors.As(err, &extraction):
		return http.StatusBadGateway, extraction.Error()
	case errors.As(err, &raster):
		return http.StatusUnprocessableEntity, raster.Error()
	case errors.As(err, &allFailed):
		return http.StatusUnprocessableEntity, allFailed.Error()
	default:
		return http.StatusInternalServerError, "something went wrong, please try again"
	}
}

// readUpload extracts the uploaded file from a multipart form.
func readUpload(r *http.Request) (ingest.Upload, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return ingest.Upload{}, errors.New("error parsing form, the file may be too large (max 50MB)")
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return ingest.Upload{}, errors.New("no file was selected, please choose a file to upload")
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		return ingest.Upload{}, errors.New("file is too large, maximum size is 50MB")
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.Upload{}, errors.New("error reading file, please try again")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeForFile(header.Filename)
	}

	return ingest.Upload{
		Filename:    header.Filename,
		Data:        data,
		ContentType: strings.ToLower(strings.TrimSpace(contentType)),
	}, nil
}

// periodQuery resolves the range/date query params into a filter window.
// No range (or range=all) means no filtering.
func (s *Server) periodQuery(r *http.Request) ([]expense.Expense, *expense.Period, error) {
	all := s.service.ListExpenses()

	kind := r.URL.Query().Get("range")
	if kind == "" || kind == "all" {
		return all, nil, nil
	}

	ref := s.service.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := expense.ParseDate(dateStr)
		if err != nil {
			return nil, nil, errors.New("date must be YYYY-MM-DD")
		}
		ref = parsed
	}

	period, err := expense.RangeFor(expense.RangeKind(kind), ref)
	if err != nil {
		return nil, nil, errors.New("range must be week, month, year, or all")
	}
	return expense.FilterByRange(all, period.Start, period.End), &period, nil
}

// handleIndex serves the HTML interface.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListExpenses returns expenses, optionally filtered to a period.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, period, err := s.periodQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"expenses": expenses,
		"total":    expense.Total(expenses),
		"period":   period,
	})
}

// handleAddExpense handles manual (and post-review) expense submission.
func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var e expense.Expense
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.service.AddExpense(e)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetExpense returns a single expense.
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.service.GetExpense(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleDeleteExpense removes an expense.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExpense(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetExpenseFile returns the stored original receipt for an expense.
func (s *Server) handleGetExpenseFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleIngestImage runs the single-image extraction path. The response is
// a draft for user review, not a committed expense. Extraction failures
// still return the preview so the client can fall back to manual entry.
func (s *Server) handleIngestImage(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.IngestImage(r.Context(), up)
	if err != nil {
		status, message := ingestStatus(err)
		writeJSON(w, status, map[string]any{
			"error":  message,
			"result": result,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleIngestPDF runs the multi-page path; extracted expenses are
// committed as a batch before the response is written.
func (s *Server) handleIngestPDF(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.service.IngestPDF(r.Context(), up, func(status string) {
		slog.Info("PDF ingestion progress", "filename", up.Filename, "status", status)
	})
	if err != nil {
		slog.Error("Error ingesting PDF", "filename", up.Filename, "error", err)
		status, message := ingestStatus(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expenses": records})
}

// handleCategorySummary returns per-category totals, largest first.
func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	s.summary(w, r, expense.TotalsByCategory)
}

// handlePayeeSummary returns per-payee totals, largest first.
func (s *Server) handlePayeeSummary(w http.ResponseWriter, r *http.Request) {
	s.summary(w, r, expense.TotalsByPayee)
}

// handleItemSummary returns per-line-item totals, largest first.
func (s *Server) handleItemSummary(w http.ResponseWriter, r *http.Request) {
	s.summary(w, r, expense.TotalsByItem)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request, group func([]expense.Expense) []expense.SummaryRow) {
	expenses, period, err := s.periodQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":   group(expenses),
		"total":  expense.Total(expenses),
		"period": period,
	})
}

// handleBreakdown returns chart data: per-category totals in fixed order.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	expenses, _, err := s.periodQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": expense.CategoryBreakdown(expenses)})
}

// handleTimeline returns the month/day grouped reverse-chronological view.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	expenses, _, err := s.periodQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": expense.Timeline(expenses, s.service.Now())})
}

// handlePeriod returns the boundaries and navigation state for a period.
func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	kind := expense.RangeKind(r.URL.Query().Get("range"))

	ref := s.service.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := expense.ParseDate(dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	period, err := expense.RangeFor(kind, ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, "range must be week, month, or year")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"label":         expense.FormatPeriod(kind, ref),
		"start":         period.Start.Format(expense.DateLayout),
		"end":           period.End.Format(expense.DateLayout),
		"prev":          expense.PrevPeriod(kind, ref).Format(expense.DateLayout),
		"next":          expense.NextPeriod(kind, ref).Format(expense.DateLayout),
		"next_disabled": expense.NextDisabled(kind, ref, s.service.Now()),
	})
}

// handleStaticCSS serves the CSS file.
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file.
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
