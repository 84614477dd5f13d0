package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	GroupByDate     GroupMode = "date"
	GroupByCategory GroupMode = "category"
)

// UncategorizedLabel is the group key and label for entries without a
// category reference.
const UncategorizedLabel = "Uncategorized"

type GroupMode string

func (m GroupMode) IsValid() bool {
	return m == GroupByDate || m == GroupByCategory
}

// EntryFilter narrows the entry set read from the store before grouping.
// A zero field means unbounded on that dimension; From/To are inclusive.
type EntryFilter struct {
	Owner       string
	Type        EntryType
	CategoryIDs []string
	From        Date
	To          Date
}

// Group is a derived bucket of entries sharing a date or category, with
// aggregate totals. Groups are recomputed on every query and never cached.
//
// TotalRemaining is deliberately not clamped at zero: a group with an
// overpaid entry shows negative remaining even though the entry itself
// reports zero (see Settlement). TotalPayment counts payments on income
// entries too.
type Group struct {
	Key            string
	Label          string
	Entries        []AnnotatedEntry
	TotalPayable   decimal.Decimal
	TotalPayment   decimal.Decimal
	TotalRemaining decimal.Decimal
	TotalIncome    decimal.Decimal
}

// Net returns income minus payable for the group.
func (g Group) Net() decimal.Decimal {
	return g.TotalIncome.Sub(g.TotalPayable)
}

// IsPlaceholder reports whether the group was synthesized for a calendar
// day with no entries.
func (g Group) IsPlaceholder() bool {
	return len(g.Entries) == 0
}

// GroupEntries partitions annotated entries into ordered groups.
//
// Mode "date" keys each group by the entry's calendar date (YYYY-MM-DD) and
// orders groups chronologically ascending regardless of input order. Mode
// "category" keys by category name, or UncategorizedLabel when the entry has
// none, and orders groups by case-sensitive string comparison; no empty
// groups are synthesized. Within every group, entries are ordered by date
// ascending with ties keeping their original input order.
//
// The engine is a pure transformation: it never fails, and empty input
// yields an empty result.
func GroupEntries(entries []AnnotatedEntry, mode GroupMode) []Group {
	members := make(map[string][]AnnotatedEntry)
	keys := make([]string, 0)
	for _, e := range entries {
		k := groupKey(e.Entry, mode)
		if _, seen := members[k]; !seen {
			keys = append(keys, k)
		}
		members[k] = append(members[k], e)
	}

	// YYYY-MM-DD keys sort chronologically under plain string comparison,
	// so one sort serves both modes.
	sort.Strings(keys)

	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		m := members[k]
		sort.SliceStable(m, func(i, j int) bool {
			return m[i].Date.Before(m[j].Date.Time)
		})
		out = append(out, newGroup(k, groupLabel(k, m, mode), m))
	}
	return out
}

func groupKey(e Entry, mode GroupMode) string {
	if mode == GroupByCategory {
		if e.CategoryName == "" {
			return UncategorizedLabel
		}
		return e.CategoryName
	}
	return e.Date.String()
}

func groupLabel(key string, members []AnnotatedEntry, mode GroupMode) string {
	if mode == GroupByCategory {
		return key
	}
	return FormatDateLabel(members[0].Date)
}

// FormatDateLabel renders the display label of a date group.
func FormatDateLabel(d Date) string {
	return d.Format("02 Jan 2006")
}

func newGroup(key, label string, members []AnnotatedEntry) Group {
	g := Group{
		Key:          key,
		Label:        label,
		Entries:      members,
		TotalPayable: decimal.Zero,
		TotalPayment: decimal.Zero,
		TotalIncome:  decimal.Zero,
	}
	for _, m := range members {
		switch m.Type {
		case Expense:
			g.TotalPayable = g.TotalPayable.Add(m.Amount)
		case Income:
			g.TotalIncome = g.TotalIncome.Add(m.Amount)
		}
		g.TotalPayment = g.TotalPayment.Add(m.TotalPaid)
	}
	g.TotalRemaining = g.TotalPayable.Sub(g.TotalPayment)
	return g
}
