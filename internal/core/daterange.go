package core

import "github.com/shopspring/decimal"

const (
	ExtendBefore ExtendDirection = "before"
	ExtendAfter  ExtendDirection = "after"
)

// ExtendDirection selects which side of a loaded date window to grow.
type ExtendDirection string

func (d ExtendDirection) IsValid() bool {
	return d == ExtendBefore || d == ExtendAfter
}

// CompleteDateGroups fills a date-grouped result so that every calendar day
// in the inclusive [from, to] window has exactly one group, in ascending
// order. Days present in the input keep their computed group; absent days
// get an empty placeholder with zero totals. A window with from after to
// yields an empty result, not an error. Applying the completer to an
// already complete result returns it unchanged.
func CompleteDateGroups(groups []Group, from, to Date) []Group {
	if from.After(to.Time) {
		return []Group{}
	}
	byKey := make(map[string]Group, len(groups))
	for _, g := range groups {
		byKey[g.Key] = g
	}
	out := make([]Group, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		if g, ok := byKey[d.String()]; ok {
			out = append(out, g)
			continue
		}
		out = append(out, emptyDateGroup(d))
	}
	return out
}

func emptyDateGroup(d Date) Group {
	return Group{
		Key:            d.String(),
		Label:          FormatDateLabel(d),
		Entries:        []AnnotatedEntry{},
		TotalPayable:   decimal.Zero,
		TotalPayment:   decimal.Zero,
		TotalRemaining: decimal.Zero,
		TotalIncome:    decimal.Zero,
	}
}

// ExtensionWindow computes the sub-window to fetch when growing a loaded
// [loadedFrom, loadedTo] view by days calendar days on one side:
// [loadedFrom-days, loadedFrom-1] for before, [loadedTo+1, loadedTo+days]
// for after.
func ExtensionWindow(loadedFrom, loadedTo Date, dir ExtendDirection, days int) (Date, Date) {
	if dir == ExtendBefore {
		return loadedFrom.AddDays(-days), loadedFrom.AddDays(-1)
	}
	return loadedTo.AddDays(1), loadedTo.AddDays(days)
}

// MergeDateGroups merges newly fetched date groups into an already loaded,
// chronologically ordered set. Incoming groups whose key already exists in
// the loaded set are dropped, so re-requesting an overlapping window never
// duplicates a group or double-counts its totals. Surviving groups are
// prepended for a backward extension and appended for a forward one,
// preserving overall chronological order.
func MergeDateGroups(loaded, incoming []Group, dir ExtendDirection) []Group {
	seen := make(map[string]struct{}, len(loaded))
	for _, g := range loaded {
		seen[g.Key] = struct{}{}
	}
	fresh := make([]Group, 0, len(incoming))
	for _, g := range incoming {
		if _, dup := seen[g.Key]; dup {
			continue
		}
		fresh = append(fresh, g)
	}
	out := make([]Group, 0, len(loaded)+len(fresh))
	if dir == ExtendBefore {
		out = append(out, fresh...)
		return append(out, loaded...)
	}
	out = append(out, loaded...)
	return append(out, fresh...)
}
