package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/storage"
)

// ReportService serves the read side of the ledger: entries annotated with
// their settlement state and grouped report views. Reports are computed
// fresh on every call; nothing here is cached.
type ReportService struct {
	storage *storage.SQLiteRepository
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage}
}

// GetEntry returns one entry with its settlement derived from the current
// payment set.
func (s *ReportService) GetEntry(ctx context.Context, owner, id string) (core.AnnotatedEntry, error) {
	e, err := s.storage.GetEntry(ctx, owner, id)
	if err != nil {
		return core.AnnotatedEntry{}, err
	}

	payments, err := s.storage.ListPayments(ctx, owner, id)
	if err != nil {
		return core.AnnotatedEntry{}, fmt.Errorf("list payments: %w", err)
	}

	return core.AnnotatedEntry{
		Entry:      e,
		Settlement: core.ComputeSettlement(e, payments),
	}, nil
}

// ListEntries returns the entries matching the filter, each annotated with
// its settlement. Payments are fetched in one batch so every annotation
// reflects the same snapshot.
func (s *ReportService) ListEntries(ctx context.Context, f core.EntryFilter) ([]core.AnnotatedEntry, error) {
	entries, err := s.storage.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []core.AnnotatedEntry{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	paymentsByEntry, err := s.storage.ListPaymentsForEntries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return core.AnnotateEntries(entries, paymentsByEntry), nil
}

// BuildReport groups the matching entries by date or category. In date mode
// with both filter bounds set, the timeline is gap-filled so every calendar
// day in the range has a group.
func (s *ReportService) BuildReport(ctx context.Context, f core.EntryFilter, mode core.GroupMode) ([]core.Group, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid group mode: %s", mode)
	}

	annotated, err := s.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}

	groups := core.GroupEntries(annotated, mode)
	if mode == core.GroupByDate && !f.From.IsEmpty() && !f.To.IsEmpty() {
		groups = core.CompleteDateGroups(groups, f.From, f.To)
	}

	slog.DebugContext(ctx, "Built report",
		"owner", f.Owner,
		"group_by", string(mode),
		"groups", len(groups),
		"entries", len(annotated))

	return groups, nil
}

// ReportWindow is the result of a windowed extension: the freshly computed
// groups plus the bounds of the view once the caller merges them in.
type ReportWindow struct {
	Groups []core.Group
	From   core.Date
	To     core.Date
}

// ExtendReport grows a loaded date-grouped view by days calendar days
// before its earliest or after its latest date. Only groups outside the
// loaded range are returned, so re-requesting the same extension never
// hands the caller a duplicate day.
func (s *ReportService) ExtendReport(ctx context.Context, f core.EntryFilter, loadedFrom, loadedTo core.Date, dir core.ExtendDirection, days int) (ReportWindow, error) {
	if !dir.IsValid() {
		return ReportWindow{}, fmt.Errorf("invalid extend direction: %s", dir)
	}
	if days <= 0 {
		return ReportWindow{}, fmt.Errorf("days must be positive, got %d", days)
	}
	if loadedFrom.IsEmpty() || loadedTo.IsEmpty() || loadedFrom.After(loadedTo.Time) {
		return ReportWindow{}, fmt.Errorf("invalid loaded range")
	}

	from, to := core.ExtensionWindow(loadedFrom, loadedTo, dir, days)

	sub := f
	sub.From = from
	sub.To = to
	annotated, err := s.ListEntries(ctx, sub)
	if err != nil {
		return ReportWindow{}, err
	}

	groups := core.GroupEntries(annotated, core.GroupByDate)
	groups = core.CompleteDateGroups(groups, from, to)

	// The window is disjoint from the loaded range by construction, but the
	// bounds come from the caller, so drop anything already loaded anyway.
	fresh := make([]core.Group, 0, len(groups))
	for _, g := range groups {
		if d, err := core.ParseDate(g.Key); err == nil &&
			!d.Before(loadedFrom.Time) && !d.After(loadedTo.Time) {
			continue
		}
		fresh = append(fresh, g)
	}

	w := ReportWindow{Groups: fresh, From: loadedFrom, To: loadedTo}
	if dir == core.ExtendBefore {
		w.From = from
	} else {
		w.To = to
	}
	return w, nil
}
