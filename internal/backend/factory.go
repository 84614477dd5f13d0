package backend

import (
	"context"
	"fmt"

	"tally/internal/log"
	gsheet "tally/internal/sheets/google"
	"tally/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case GoogleBackend:
		return f.createGoogleBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createGoogleBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		OAuthClientFile: config.GoogleOAuthClientFile,
		OAuthTokenFile:  config.GoogleOAuthTokenFile,
		OAuthClientJSON: config.GoogleOAuthClientJSON,
		OAuthTokenJSON:  config.GoogleOAuthTokenJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets export backend",
		log.FieldBackend, GoogleBackend.String(),
		"spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{
		Backend: cli,
		Cleanup: nil, // no cleanup needed for sheets backend
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store := memory.New()

	f.logger.Info("Initialized in-memory export backend",
		log.FieldBackend, MemoryBackend.String())

	return &BackendResult{
		Backend: store,
		Cleanup: nil, // no cleanup needed for memory backend
	}, nil
}
