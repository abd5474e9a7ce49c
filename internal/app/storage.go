package app

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileStore defines the interface for original-upload storage. Receipts
// are kept on disk so the full document can be shown later; the inline
// previews on expense records are display-sized only.
type FileStore interface {
	// Save saves a file and returns the path/filename.
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by path.
	Get(path string) ([]byte, error)

	// Delete removes a file.
	Delete(path string) error
}

// LocalFileStore implements FileStore using the local filesystem.
type LocalFileStore struct {
	basePath string
}

// NewLocalFileStore creates a LocalFileStore rooted at basePath.
func NewLocalFileStore(basePath string) (*LocalFileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalFileStore{basePath: basePath}, nil
}

// Save saves a file to local storage.
func (l *LocalFileStore) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage.
func (l *LocalFileStore) Get(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, path))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage.
func (l *LocalFileStore) Delete(path string) error {
	if err := os.Remove(filepath.Join(l.basePath, path)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

var (
	specialChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames: strips special
// characters, squeezes whitespace, and caps the length.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = specialChars.ReplaceAllString(base, "")
	base = multiSpace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}
