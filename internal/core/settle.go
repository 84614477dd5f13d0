package core

import "github.com/shopspring/decimal"

// Settlement describes how far an entry is paid off. It is derived, never
// stored: remaining is the entry amount minus the sum of its payments,
// floored at zero. Overpayment is absorbed by the clamp, not rejected.
type Settlement struct {
	TotalPaid     decimal.Decimal
	Remaining     decimal.Decimal
	FullyPaid     bool
	PartiallyPaid bool
}

// AnnotatedEntry pairs an entry with its computed settlement. Grouping
// consumes annotated entries so every total is derived from the same
// snapshot of payments.
type AnnotatedEntry struct {
	Entry
	Settlement
}

// ComputeSettlement derives the settlement for an entry from its payments.
// Payments that reference a different entry are ignored. The sum is exact
// and order-independent; the function has no side effects and is total:
// zero payments yield a remaining equal to the full amount.
func ComputeSettlement(e Entry, payments []Payment) Settlement {
	paid := decimal.Zero
	for _, p := range payments {
		if p.EntryID != "" && e.ID != "" && p.EntryID != e.ID {
			continue
		}
		paid = paid.Add(p.Amount)
	}
	return settle(e.Amount, paid)
}

func settle(amount, paid decimal.Decimal) Settlement {
	remaining := amount.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Settlement{
		TotalPaid:     paid,
		Remaining:     remaining,
		FullyPaid:     remaining.IsZero(),
		PartiallyPaid: paid.IsPositive() && !remaining.IsZero(),
	}
}

// AnnotateEntries computes a settlement for every entry using the supplied
// payments lookup, preserving input order. Entries with no payments get a
// zero-paid settlement.
func AnnotateEntries(entries []Entry, paymentsByEntry map[string][]Payment) []AnnotatedEntry {
	out := make([]AnnotatedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AnnotatedEntry{
			Entry:      e,
			Settlement: ComputeSettlement(e, paymentsByEntry[e.ID]),
		})
	}
	return out
}
