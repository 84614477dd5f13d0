package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pay(entryID, amount string) Payment {
	return Payment{EntryID: entryID, Amount: dec(amount), Date: NewDate(2024, 1, 2)}
}

func TestComputeSettlementRemaining(t *testing.T) {
	cases := []struct {
		amount    string
		payments  []string
		paid      string
		remaining string
		fully     bool
		partially bool
	}{
		{"100.00", nil, "0", "100.00", false, false},
		{"100.00", []string{"40.00"}, "40.00", "60.00", false, true},
		{"100.00", []string{"40.00", "60.00"}, "100.00", "0", true, false},
		{"100.00", []string{"130.00"}, "130.00", "0", true, false}, // overpayment clamps to zero
		{"0.30", []string{"0.10", "0.20"}, "0.30", "0", true, false},
		{"50.00", []string{"0.01"}, "0.01", "49.99", false, true},
	}
	for i, tc := range cases {
		e := Entry{ID: "e1", Owner: "u", Type: Expense, Amount: dec(tc.amount), Date: NewDate(2024, 1, 1)}
		var ps []Payment
		for _, a := range tc.payments {
			ps = append(ps, pay("e1", a))
		}
		s := ComputeSettlement(e, ps)
		if !s.TotalPaid.Equal(dec(tc.paid)) {
			t.Fatalf("case %d total paid: got %s want %s", i, s.TotalPaid, tc.paid)
		}
		if !s.Remaining.Equal(dec(tc.remaining)) {
			t.Fatalf("case %d remaining: got %s want %s", i, s.Remaining, tc.remaining)
		}
		if s.Remaining.IsNegative() {
			t.Fatalf("case %d remaining went negative: %s", i, s.Remaining)
		}
		if s.FullyPaid != tc.fully {
			t.Fatalf("case %d fully paid: got %v want %v", i, s.FullyPaid, tc.fully)
		}
		if s.FullyPaid != s.Remaining.IsZero() {
			t.Fatalf("case %d fully paid must mirror zero remaining", i)
		}
		if s.PartiallyPaid != tc.partially {
			t.Fatalf("case %d partially paid: got %v want %v", i, s.PartiallyPaid, tc.partially)
		}
	}
}

func TestComputeSettlementOrderIndependent(t *testing.T) {
	e := Entry{ID: "e1", Owner: "u", Type: Expense, Amount: dec("10.00"), Date: NewDate(2024, 1, 1)}
	forward := []Payment{pay("e1", "1.11"), pay("e1", "2.22"), pay("e1", "3.33")}
	backward := []Payment{pay("e1", "3.33"), pay("e1", "2.22"), pay("e1", "1.11")}

	a := ComputeSettlement(e, forward)
	b := ComputeSettlement(e, backward)
	if !a.TotalPaid.Equal(b.TotalPaid) || !a.Remaining.Equal(b.Remaining) {
		t.Fatalf("settlement depends on payment order: %+v vs %+v", a, b)
	}
	if !a.Remaining.Equal(dec("3.34")) {
		t.Fatalf("unexpected remaining: %s", a.Remaining)
	}
}

func TestComputeSettlementIgnoresForeignPayments(t *testing.T) {
	e := Entry{ID: "e1", Owner: "u", Type: Expense, Amount: dec("100.00"), Date: NewDate(2024, 1, 1)}
	ps := []Payment{pay("e1", "30.00"), pay("e2", "999.00")}
	s := ComputeSettlement(e, ps)
	if !s.TotalPaid.Equal(dec("30.00")) {
		t.Fatalf("expected foreign payment ignored, got paid=%s", s.TotalPaid)
	}
}

func TestComputeSettlementIncomeEntry(t *testing.T) {
	// Income entries settle identically to expenses.
	e := Entry{ID: "i1", Owner: "u", Type: Income, Amount: dec("200.00"), Date: NewDate(2024, 1, 1)}
	s := ComputeSettlement(e, []Payment{pay("i1", "200.00")})
	if !s.FullyPaid || !s.Remaining.IsZero() {
		t.Fatalf("income entry should settle like an expense: %+v", s)
	}
}

func TestAnnotateEntries(t *testing.T) {
	entries := []Entry{
		{ID: "e1", Owner: "u", Type: Expense, Amount: dec("50.00"), Date: NewDate(2024, 1, 1)},
		{ID: "e2", Owner: "u", Type: Expense, Amount: dec("80.00"), Date: NewDate(2024, 1, 2)},
	}
	lookup := map[string][]Payment{
		"e1": {pay("e1", "50.00")},
	}
	got := AnnotateEntries(entries, lookup)
	if len(got) != 2 {
		t.Fatalf("expected 2 annotated entries, got %d", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Fatalf("annotation must preserve input order: %s, %s", got[0].ID, got[1].ID)
	}
	if !got[0].FullyPaid {
		t.Fatalf("e1 should be fully paid")
	}
	if !got[1].TotalPaid.IsZero() || !got[1].Remaining.Equal(dec("80.00")) {
		t.Fatalf("e2 should be unpaid: %+v", got[1].Settlement)
	}
}
