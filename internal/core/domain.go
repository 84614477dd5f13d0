// Package core implements the domain model and the grouped-entry
// aggregation engine: payment settlement, date/category grouping with
// exact decimal totals, calendar completion and windowed extension.
package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	EntryType string

	Frequency string

	Date struct {
		time.Time
	}

	// Entry is a single income or expense record owned by one user.
	// CategoryID is empty when the entry is uncategorized; CategoryName is
	// the resolved reference, filled by the read path.
	Entry struct {
		ID           string
		Owner        string
		Type         EntryType
		Amount       decimal.Decimal
		Date         Date
		Description  string
		CategoryID   string
		CategoryName string
	}

	Category struct {
		ID          string
		Owner       string
		Name        string
		Description string
	}

	// Payment is a partial or full settlement recorded against an entry.
	// Payments are immutable once created.
	Payment struct {
		ID      string
		EntryID string
		Amount  decimal.Decimal
		Date    Date
		Notes   string
	}

	// RecurringRule is a template that materializes into a real Entry each
	// time it comes due.
	RecurringRule struct {
		ID          string
		Owner       string
		Type        EntryType
		Amount      decimal.Decimal
		Description string
		CategoryID  string
		Frequency   Frequency
		StartDate   Date
		LastRun     Date // zero when the rule has never run
		Active      bool
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidEntryType   = errors.New("invalid entry type")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrEmptyOwner         = errors.New("empty owner")
	ErrEmptyName          = errors.New("empty name")
	ErrMissingEntry       = errors.New("missing entry reference")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

func (t EntryType) IsValid() bool {
	return t == Income || t == Expense
}

func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String returns the date in YYYY-MM-DD form, the canonical group key.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as an int.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other.
// Negative when other is before d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Truncate(24*time.Hour).Sub(d.Truncate(24*time.Hour)) / (24 * time.Hour))
}

// IsEmpty reports whether the date is unset (for optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalJSON renders the date as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Owner) == "" {
		return ErrEmptyOwner
	}
	if !e.Type.IsValid() {
		return ErrInvalidEntryType
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if len(c.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.EntryID) == "" {
		return ErrMissingEntry
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return err
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if len(p.Notes) > 200 {
		return errors.New("notes too long (max 200 characters)")
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.Owner) == "" {
		return ErrEmptyOwner
	}
	if !r.Type.IsValid() {
		return ErrInvalidEntryType
	}
	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return errors.New("empty description")
	}
	if len(r.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if !r.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if err := r.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	return nil
}
