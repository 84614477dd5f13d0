// Package memory is an in-memory export backend used for development
// and tests. It mirrors the Google Sheets client's upsert-by-entry-ID
// contract without any network dependency.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "tally/internal/sheets"
)

// Store holds exported rows keyed by entry ID, preserving first-insert
// order the way sheet rows do.
type Store struct {
	mu    sync.Mutex
	order []string
	rows  map[string]ports.ExportRow
}

// Ensure interface conformance
var (
	_ ports.RowWriter  = (*Store)(nil)
	_ ports.RowRemover = (*Store)(nil)
)

func New() *Store {
	return &Store{rows: make(map[string]ports.ExportRow)}
}

// UpsertRow stores the row and returns a synthetic row reference. An
// entry exported before keeps its position and reference.
func (s *Store) UpsertRow(_ context.Context, row ports.ExportRow) (string, error) {
	if row.EntryID == "" {
		return "", errors.New("empty entry id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[row.EntryID]; !exists {
		s.order = append(s.order, row.EntryID)
	}
	s.rows[row.EntryID] = row

	for i, id := range s.order {
		if id == row.EntryID {
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	// Unreachable: the ID was just inserted.
	return "", errors.New("row vanished during upsert")
}

// RemoveRow deletes the row for entryID. Unknown entries are a no-op.
func (s *Store) RemoveRow(_ context.Context, entryID string) error {
	if entryID == "" {
		return errors.New("empty entry id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[entryID]; !exists {
		return nil
	}
	delete(s.rows, entryID)
	for i, id := range s.order {
		if id == entryID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rows returns a snapshot of all rows in insertion order.
func (s *Store) Rows() []ports.ExportRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ports.ExportRow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}

// Len reports how many rows are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
