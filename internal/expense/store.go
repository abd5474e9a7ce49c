package expense

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName = "expenses"
	listKey    = "all"
)

// Store defines the interface for expense persistence. The whole expense
// list lives under a single key and is rewritten on every change
// (last-writer-wins, single-user scope).
type Store interface {
	// Load returns all expenses. Missing or corrupt data loads as an
	// empty list, never an error.
	Load() ([]Expense, error)

	// Append adds expenses to the front of the list and persists it.
	Append(expenses ...Expense) error

	// Replace overwrites the whole list.
	Replace(expenses []Expense) error

	// Delete removes an expense by ID.
	Delete(id string) error

	// Close closes the store.
	Close() error
}

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the store at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Load returns all expenses. A missing or unreadable blob is treated as an
// empty list so a damaged store never blocks startup.
func (b *BoltStore) Load() ([]Expense, error) {
	expenses := make([]Expense, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(listKey))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &expenses); err != nil {
			slog.Warn("Stored expense list is corrupt, starting empty", "error", err)
			expenses = make([]Expense, 0)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading expenses: %w", err)
	}
	return expenses, nil
}

// Append prepends expenses (newest first, matching display order) and
// rewrites the serialized list.
func (b *BoltStore) Append(expenses ...Expense) error {
	existing, err := b.Load()
	if err != nil {
		return err
	}
	updated := make([]Expense, 0, len(expenses)+len(existing))
	updated = append(updated, expenses...)
	updated = append(updated, existing...)
	return b.Replace(updated)
}

// Replace overwrites the whole list.
func (b *BoltStore) Replace(expenses []Expense) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(expenses)
		if err != nil {
			return fmt.Errorf("marshaling expenses: %w", err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(listKey), data)
	})
}

// Delete removes an expense by ID and rewrites the list.
func (b *BoltStore) Delete(id string) error {
	existing, err := b.Load()
	if err != nil {
		return err
	}
	updated := make([]Expense, 0, len(existing))
	found := false
	for _, e := range existing {
		if e.ID == id {
			found = true
			continue
		}
		updated = append(updated, e)
	}
	if !found {
		return fmt.Errorf("expense not found: %s", id)
	}
	return b.Replace(updated)
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
