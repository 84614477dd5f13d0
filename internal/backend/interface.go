package backend

import (
	"context"

	"tally/internal/sheets"
)

// Backend is the full export surface the sync worker drives: row
// upserts for created/updated entries and row removal for deletions.
type Backend interface {
	sheets.RowWriter
	sheets.RowRemover
}

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates export backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// Google Sheets specific
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
}

// BackendType selects which export backend to build.
type BackendType string

const (
	GoogleBackend BackendType = "google"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case GoogleBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
