package core

import (
	"testing"
)

func assertSameGroups(t *testing.T, got, want []Group) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("group count: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Key != want[i].Key || got[i].Label != want[i].Label {
			t.Fatalf("group %d: got %s/%s want %s/%s", i, got[i].Key, got[i].Label, want[i].Key, want[i].Label)
		}
		if !got[i].TotalPayable.Equal(want[i].TotalPayable) ||
			!got[i].TotalPayment.Equal(want[i].TotalPayment) ||
			!got[i].TotalRemaining.Equal(want[i].TotalRemaining) ||
			!got[i].TotalIncome.Equal(want[i].TotalIncome) {
			t.Fatalf("group %s totals differ", got[i].Key)
		}
		if len(got[i].Entries) != len(want[i].Entries) {
			t.Fatalf("group %s member count: got %d want %d", got[i].Key, len(got[i].Entries), len(want[i].Entries))
		}
		for j := range want[i].Entries {
			if got[i].Entries[j].ID != want[i].Entries[j].ID {
				t.Fatalf("group %s member %d: got %s want %s", got[i].Key, j, got[i].Entries[j].ID, want[i].Entries[j].ID)
			}
		}
	}
}

func TestCompleteDateGroupsEmptyWeek(t *testing.T) {
	from := NewDate(2024, 1, 1)
	to := NewDate(2024, 1, 7)
	groups := CompleteDateGroups(nil, from, to)
	if len(groups) != 7 {
		t.Fatalf("expected 7 placeholder groups, got %d", len(groups))
	}
	for i, g := range groups {
		wantKey := from.AddDays(i).String()
		if g.Key != wantKey {
			t.Fatalf("group %d key: got %s want %s", i, g.Key, wantKey)
		}
		if !g.IsPlaceholder() {
			t.Fatalf("group %s should be a placeholder", g.Key)
		}
		if !g.TotalPayable.IsZero() || !g.TotalPayment.IsZero() || !g.TotalRemaining.IsZero() || !g.TotalIncome.IsZero() {
			t.Fatalf("group %s should have zero totals", g.Key)
		}
	}
}

func TestCompleteDateGroupsInvertedWindow(t *testing.T) {
	groups := CompleteDateGroups(nil, NewDate(2024, 1, 7), NewDate(2024, 1, 1))
	if len(groups) != 0 {
		t.Fatalf("inverted window must yield empty result, got %d groups", len(groups))
	}
}

func TestCompleteDateGroupsKeepsExisting(t *testing.T) {
	entries := []AnnotatedEntry{
		annotated("e1", Expense, "10.00", NewDate(2024, 1, 2), ""),
	}
	groups := CompleteDateGroups(GroupEntries(entries, GroupByDate), NewDate(2024, 1, 1), NewDate(2024, 1, 3))
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Key != "2024-01-01" || !groups[0].IsPlaceholder() {
		t.Fatalf("day 1 should be a placeholder")
	}
	if groups[1].Key != "2024-01-02" || groups[1].IsPlaceholder() {
		t.Fatalf("day 2 should keep its computed group")
	}
	if !groups[1].TotalPayable.Equal(dec("10.00")) {
		t.Fatalf("day 2 payable: got %s want 10.00", groups[1].TotalPayable)
	}
	if groups[2].Key != "2024-01-03" || !groups[2].IsPlaceholder() {
		t.Fatalf("day 3 should be a placeholder")
	}
}

func TestCompleteDateGroupsIdempotent(t *testing.T) {
	entries := []AnnotatedEntry{
		annotated("e1", Expense, "10.00", NewDate(2024, 1, 2), "", "4.00"),
		annotated("e2", Income, "99.00", NewDate(2024, 1, 4), ""),
	}
	from, to := NewDate(2024, 1, 1), NewDate(2024, 1, 5)
	once := CompleteDateGroups(GroupEntries(entries, GroupByDate), from, to)
	twice := CompleteDateGroups(once, from, to)
	assertSameGroups(t, twice, once)
}

func TestExtensionWindow(t *testing.T) {
	loadedFrom, loadedTo := NewDate(2024, 1, 10), NewDate(2024, 1, 20)
	cases := []struct {
		dir      ExtendDirection
		days     int
		wantFrom string
		wantTo   string
	}{
		{ExtendBefore, 7, "2024-01-03", "2024-01-09"},
		{ExtendAfter, 7, "2024-01-21", "2024-01-27"},
		{ExtendBefore, 1, "2024-01-09", "2024-01-09"},
		{ExtendAfter, 1, "2024-01-21", "2024-01-21"},
	}
	for i, tc := range cases {
		from, to := ExtensionWindow(loadedFrom, loadedTo, tc.dir, tc.days)
		if from.String() != tc.wantFrom || to.String() != tc.wantTo {
			t.Fatalf("case %d: got [%s, %s] want [%s, %s]", i, from, to, tc.wantFrom, tc.wantTo)
		}
	}
}

func TestMergeDateGroupsDedupes(t *testing.T) {
	from, to := NewDate(2024, 1, 1), NewDate(2024, 1, 3)
	loaded := CompleteDateGroups(nil, from, to)

	// Overlapping forward extension: two of five incoming days already loaded.
	incoming := CompleteDateGroups(nil, NewDate(2024, 1, 2), NewDate(2024, 1, 6))
	merged := MergeDateGroups(loaded, incoming, ExtendAfter)
	if len(merged) != 6 {
		t.Fatalf("expected 6 groups after merge, got %d", len(merged))
	}
	seen := map[string]bool{}
	prev := ""
	for _, g := range merged {
		if seen[g.Key] {
			t.Fatalf("duplicate group key %s after merge", g.Key)
		}
		seen[g.Key] = true
		if g.Key <= prev {
			t.Fatalf("merged groups out of order: %s after %s", g.Key, prev)
		}
		prev = g.Key
	}
}

func TestMergeDateGroupsIdempotent(t *testing.T) {
	loaded := CompleteDateGroups(nil, NewDate(2024, 1, 1), NewDate(2024, 1, 5))
	incoming := CompleteDateGroups(nil, NewDate(2024, 1, 1), NewDate(2024, 1, 5))
	merged := MergeDateGroups(loaded, incoming, ExtendAfter)
	assertSameGroups(t, merged, loaded)
}

func TestMergeDateGroupsPrepends(t *testing.T) {
	loaded := CompleteDateGroups(nil, NewDate(2024, 1, 10), NewDate(2024, 1, 12))
	incoming := CompleteDateGroups(nil, NewDate(2024, 1, 7), NewDate(2024, 1, 9))
	merged := MergeDateGroups(loaded, incoming, ExtendBefore)
	if len(merged) != 6 {
		t.Fatalf("expected 6 groups, got %d", len(merged))
	}
	if merged[0].Key != "2024-01-07" || merged[5].Key != "2024-01-12" {
		t.Fatalf("backward merge order wrong: first=%s last=%s", merged[0].Key, merged[5].Key)
	}
}

func TestMergeDateGroupsKeepsLoadedVersion(t *testing.T) {
	// When an incoming key collides with a loaded one, the loaded group wins.
	entries := []AnnotatedEntry{
		annotated("e1", Expense, "10.00", NewDate(2024, 1, 2), ""),
	}
	loaded := CompleteDateGroups(GroupEntries(entries, GroupByDate), NewDate(2024, 1, 1), NewDate(2024, 1, 2))
	incoming := CompleteDateGroups(nil, NewDate(2024, 1, 2), NewDate(2024, 1, 4))
	merged := MergeDateGroups(loaded, incoming, ExtendAfter)
	if len(merged) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(merged))
	}
	if merged[1].Key != "2024-01-02" || merged[1].IsPlaceholder() {
		t.Fatalf("loaded group should survive the merge")
	}
}

func TestExtendDirectionIsValid(t *testing.T) {
	if !ExtendBefore.IsValid() || !ExtendAfter.IsValid() {
		t.Fatalf("canonical directions must be valid")
	}
	if ExtendDirection("sideways").IsValid() {
		t.Fatalf("unknown direction must be invalid")
	}
}
