// Package google exports ledger rows to a Google Sheets spreadsheet.
// Rows are keyed by entry ID in column A so re-exports overwrite in
// place instead of appending duplicates.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/cache"
	ports "tally/internal/sheets"
)

const (
	defaultSheetName = "Ledger"

	rowCountCacheTTL = 2 * time.Minute
	rowIndexCacheTTL = 5 * time.Minute
	rowIndexCacheMax = 1024
)

// jsonUnmarshal is indirected for testability of token parsing.
var jsonUnmarshal = json.Unmarshal

// Config carries everything needed to reach one spreadsheet tab.
// Inline JSON values win over file paths when both are set.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// ConfigFromEnv reads the GOOGLE_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		SpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		OAuthClientJSON: os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"),
		OAuthClientFile: os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"),
		OAuthTokenJSON:  os.Getenv("GOOGLE_OAUTH_TOKEN_JSON"),
		OAuthTokenFile:  os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"),
	}
}

// Client writes export rows to a single sheet tab. Row lookups are
// cached (entry ID to row number) and the used-row count is cached
// with a TTL so appends don't re-read column A on every call.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	mu                 sync.Mutex
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	sheetID            int64
	sheetIDKnown       bool

	rowIndex *cache.LRUCache[int]
}

// Ensure interface conformance
var (
	_ ports.RowWriter  = (*Client)(nil)
	_ ports.RowRemover = (*Client)(nil)
)

// New builds a client from explicit configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := buildSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = defaultSheetName
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: rowCountCacheTTL,
		rowIndex:           cache.NewLRUCache[int](rowIndexCacheMax, rowIndexCacheTTL),
	}, nil
}

// NewFromEnv builds a client from the GOOGLE_* environment variables.
func NewFromEnv(ctx context.Context) (*Client, error) {
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	return New(ctx, ConfigFromEnv())
}

// newSheetsService builds the Sheets API service from environment
// variables. Kept as a seam for the OAuth bootstrap tests.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	return buildSheetsService(ctx, ConfigFromEnv())
}

func buildSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	clientJSON, err := materialize(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}

	oauthCfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := materialize(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	var token oauth2.Token
	if err := jsonUnmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	httpClient := oauthCfg.Client(ctx, &token)
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}
	return svc, nil
}

// materialize returns inline JSON when present, otherwise the file's
// contents, otherwise nil.
func materialize(inline, file string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return b, nil
	}
	return nil, nil
}

// UpsertRow writes the row for row.EntryID, overwriting the existing
// sheet row when the entry was exported before and appending otherwise.
// Returns the A1-notation range written.
func (c *Client) UpsertRow(ctx context.Context, row ports.ExportRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.EntryID == "" {
		return "", errors.New("empty entry id")
	}

	rowNum, found, err := c.findRow(ctx, row.EntryID)
	if err != nil {
		return "", err
	}
	if !found {
		rowNum, err = c.nextFreeRow(ctx)
		if err != nil {
			return "", err
		}
		if rowNum == 1 {
			// Brand new tab: lay down the header first.
			if err := c.writeRow(ctx, 1, ports.Header()); err != nil {
				return "", fmt.Errorf("write header: %w", err)
			}
			rowNum = 2
			c.mu.Lock()
			c.cachedRowCount = 1
			c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
			c.mu.Unlock()
		}
	}

	if err := c.writeRow(ctx, rowNum, row.Values()); err != nil {
		return "", fmt.Errorf("write row: %w", err)
	}

	if !found {
		c.mu.Lock()
		c.cachedRowCount++
		c.mu.Unlock()
	}
	if c.rowIndex != nil {
		c.rowIndex.Set(row.EntryID, rowNum)
	}

	return c.rangeForRow(rowNum), nil
}

// RemoveRow deletes the entry's sheet row. Unknown entries are a no-op.
func (c *Client) RemoveRow(ctx context.Context, entryID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if entryID == "" {
		return errors.New("empty entry id")
	}

	rowNum, found, err := c.findRow(ctx, entryID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowNum - 1),
					EndIndex:   int64(rowNum),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", rowNum, err)
	}

	// Every row below the deleted one shifted up.
	if c.rowIndex != nil {
		c.rowIndex.Clear()
	}
	c.InvalidateRowCache()
	return nil
}

// InvalidateRowCache expires the cached used-row count so the next
// append re-reads column A.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedRowCount = 0
	c.cacheExpiresAt = time.Time{}
}

// findRow locates the 1-based sheet row holding entryID, consulting the
// row-index cache before scanning column A.
func (c *Client) findRow(ctx context.Context, entryID string) (int, bool, error) {
	if c.rowIndex != nil {
		if rowNum, ok := c.rowIndex.Get(entryID); ok {
			return rowNum, true, nil
		}
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName+"!A2:A").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("scan id column: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if fmt.Sprint(row[0]) == entryID {
			rowNum := i + 2 // +1 header, +1 one-based
			if c.rowIndex != nil {
				c.rowIndex.Set(entryID, rowNum)
			}
			return rowNum, true, nil
		}
	}
	return 0, false, nil
}

// nextFreeRow returns the first unused row, using the cached used-row
// count while it is fresh.
func (c *Client) nextFreeRow(ctx context.Context) (int, error) {
	c.mu.Lock()
	if time.Now().Before(c.cacheExpiresAt) {
		next := c.cachedRowCount + 1
		c.mu.Unlock()
		return next, nil
	}
	c.mu.Unlock()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read row count: %w", err)
	}
	count := len(resp.Values)

	c.mu.Lock()
	c.cachedRowCount = count
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	return count + 1, nil
}

func (c *Client) writeRow(ctx context.Context, rowNum int, values []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rangeForRow(rowNum), vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}

func (c *Client) rangeForRow(rowNum int) string {
	return fmt.Sprintf("%s!A%d:J%d", c.sheetName, rowNum, rowNum)
}

// resolveSheetID looks up the numeric sheet ID for the configured tab
// name, needed by the row-deletion batch request.
func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if c.sheetIDKnown {
		id := c.sheetID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("resolve sheet id: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			c.mu.Lock()
			c.sheetID = sh.Properties.SheetId
			c.sheetIDKnown = true
			c.mu.Unlock()
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
