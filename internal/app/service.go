package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spendlens/spendlens/internal/expense"
	"github.com/spendlens/spendlens/internal/ingest"
)

// IDGenerator generates unique IDs for expense records.
type IDGenerator interface {
	Generate() string
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// uuidGenerator is the default IDGenerator.
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// realClock is the default Clock.
type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// ImageResult is what the single-image ingestion path hands back: the draft
// for review plus the path of the stored original upload, which the client
// echoes back when the reviewed expense is submitted.
type ImageResult struct {
	Draft       *ingest.Draft `json:"draft"`
	ReceiptFile string        `json:"receipt_file,omitempty"`
}

// Service owns the expense list. The list is loaded once at construction
// and every mutation is applied in memory first, then serialized back to
// the store; store write failures are logged and never fail the operation.
type Service struct {
	mu       sync.Mutex
	expenses []expense.Expense

	store    expense.Store
	files    FileStore
	pipeline *ingest.Pipeline
	ids      IDGenerator
	clock    Clock
}

// NewService creates a Service with default ID generator and clock.
func NewService(store expense.Store, files FileStore, pipeline *ingest.Pipeline) *Service {
	return NewServiceWithDeps(store, files, pipeline, &uuidGenerator{}, &realClock{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(store expense.Store, files FileStore, pipeline *ingest.Pipeline, ids IDGenerator, clock Clock) *Service {
	expenses, err := store.Load()
	if err != nil {
		slog.Error("Failed to load expenses, starting empty", "error", err)
		expenses = make([]expense.Expense, 0)
	}
	return &Service{
		expenses: expenses,
		store:    store,
		files:    files,
		pipeline: pipeline,
		ids:      ids,
		clock:    clock,
	}
}

// commit assigns IDs and creation times, prepends the records to the
// in-memory list, and persists the whole list. Persistence failure is
// non-fatal.
func (s *Service) commit(records []expense.Expense) []expense.Expense {
	now := s.clock.Now()
	for i := range records {
		records[i].ID = s.ids.Generate()
		records[i].CreatedAt = now
	}

	s.mu.Lock()
	updated := make([]expense.Expense, 0, len(records)+len(s.expenses))
	updated = append(updated, records...)
	updated = append(updated, s.expenses...)
	s.expenses = updated
	s.mu.Unlock()

	if err := s.store.Append(records...); err != nil {
		slog.Error("Failed to persist expenses, continuing in memory", "count", len(records), "error", err)
	}
	return records
}

// AddExpense validates and commits one manually entered (or reviewed)
// expense.
func (s *Service) AddExpense(e expense.Expense) (*expense.Expense, error) {
	e.Category = expense.NormalizeCategory(e.Category)
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid expense: %w", err)
	}
	committed := s.commit([]expense.Expense{e})
	return &committed[0], nil
}

// IngestImage stores the original upload and runs the single-image
// extraction path. Nothing is committed: the draft goes back to the user
// for review. On extraction failure the stored file and the preview-only
// draft are both returned with the error so manual entry stays possible.
func (s *Service) IngestImage(ctx context.Context, up ingest.Upload) (*ImageResult, error) {
	savedPath := s.saveOriginal(up)

	draft, err := s.pipeline.FromImage(ctx, up)
	result := &ImageResult{Draft: draft, ReceiptFile: savedPath}
	if err != nil {
		slog.Error("Failed to extract expense from image",
			"filename", up.Filename,
			"content_type", up.ContentType,
			"file_size", len(up.Data),
			"error", err,
		)
		return result, err
	}
	return result, nil
}

// IngestPDF runs the multi-page path and auto-commits the extracted batch.
// Each record shares the stored original document.
func (s *Service) IngestPDF(ctx context.Context, up ingest.Upload, onStatus ingest.StatusFunc) ([]expense.Expense, error) {
	records, err := s.pipeline.FromPDF(ctx, up, onStatus)
	if err != nil {
		return nil, err
	}

	savedPath := s.saveOriginal(up)
	for i := range records {
		records[i].ReceiptFile = savedPath
	}
	return s.commit(records), nil
}

// saveOriginal stores the uploaded file, best effort. A storage failure
// only costs the full-document view later, so it is logged and ignored.
func (s *Service) saveOriginal(up ingest.Upload) string {
	name := fmt.Sprintf("%s_%s", s.ids.Generate(), sanitizeFilename(up.Filename))
	savedPath, err := s.files.Save(name, up.Data)
	if err != nil {
		slog.Warn("Failed to store original upload", "filename", up.Filename, "error", err)
		return ""
	}
	return savedPath
}

// ListExpenses returns a copy of all expenses, newest first.
func (s *Service) ListExpenses() []expense.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]expense.Expense, len(s.expenses))
	copy(out, s.expenses)
	return out
}

// GetExpense retrieves an expense by ID.
func (s *Service) GetExpense(id string) (*expense.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.expenses {
		if s.expenses[i].ID == id {
			e := s.expenses[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("expense not found: %s", id)
}

// DeleteExpense removes an expense. The stored original file is removed
// too, unless another record (a sibling from the same PDF) still points at
// it; file errors are logged, not fatal.
func (s *Service) DeleteExpense(id string) error {
	s.mu.Lock()
	var removed *expense.Expense
	updated := make([]expense.Expense, 0, len(s.expenses))
	fileRefs := 0
	for i := range s.expenses {
		if s.expenses[i].ID == id {
			e := s.expenses[i]
			removed = &e
			continue
		}
		updated = append(updated, s.expenses[i])
	}
	if removed != nil && removed.ReceiptFile != "" {
		for i := range updated {
			if updated[i].ReceiptFile == removed.ReceiptFile {
				fileRefs++
			}
		}
	}
	if removed != nil {
		s.expenses = updated
	}
	s.mu.Unlock()

	if removed == nil {
		return fmt.Errorf("expense not found: %s", id)
	}

	if removed.ReceiptFile != "" && fileRefs == 0 {
		if err := s.files.Delete(removed.ReceiptFile); err != nil {
			slog.Warn("Failed to delete receipt file", "filename", removed.ReceiptFile, "error", err)
		}
	}

	if err := s.store.Replace(s.ListExpenses()); err != nil {
		slog.Error("Failed to persist deletion, continuing in memory", "id", id, "error", err)
	}
	return nil
}

// GetReceiptFile returns the stored original upload for an expense.
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	e, err := s.GetExpense(id)
	if err != nil {
		return nil, "", err
	}
	if e.ReceiptFile == "" {
		return nil, "", fmt.Errorf("expense %s has no stored receipt", id)
	}
	data, err := s.files.Get(e.ReceiptFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, contentTypeForFile(e.ReceiptFile), nil
}

// Now exposes the service clock for period calculations at the HTTP layer.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func contentTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
