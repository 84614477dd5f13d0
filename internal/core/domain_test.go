package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-31", "2024-01-31", true},
		{" 2024-01-31 ", "2024-01-31", true},
		{"2024-02-30", "", false},
		{"31/01/2024", "", false},
		{"", "", false},
	}
	for i, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.want {
				t.Fatalf("case %d: got %s err=%v", i, got, err)
			}
		} else if err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}
	b, err := json.Marshal(wrapper{D: NewDate(2024, 3, 9)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2024-03-09"}` {
		t.Fatalf("unexpected JSON: %s", b)
	}
	var w wrapper
	if err := json.Unmarshal(b, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.D.String() != "2024-03-09" {
		t.Fatalf("round trip lost the date: %s", w.D)
	}

	b, err = json.Marshal(wrapper{})
	if err != nil {
		t.Fatalf("marshal zero: %v", err)
	}
	if string(b) != `{"d":null}` {
		t.Fatalf("zero date should marshal as null: %s", b)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, 2, 28)
	if d.AddDays(1).String() != "2024-02-29" { // leap year
		t.Fatalf("AddDays across leap day: got %s", d.AddDays(1))
	}
	if got := NewDate(2024, 1, 1).DaysUntil(NewDate(2024, 1, 8)); got != 7 {
		t.Fatalf("DaysUntil: got %d want 7", got)
	}
	if got := NewDate(2024, 1, 8).DaysUntil(NewDate(2024, 1, 1)); got != -7 {
		t.Fatalf("DaysUntil backwards: got %d want -7", got)
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{
		ID:     "e1",
		Owner:  "u1",
		Type:   Expense,
		Amount: dec("10.00"),
		Date:   NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Entry{
		{Owner: "", Type: Expense, Amount: dec("1"), Date: NewDate(2025, 1, 1)},
		{Owner: "u", Type: EntryType("transfer"), Amount: dec("1"), Date: NewDate(2025, 1, 1)},
		{Owner: "u", Type: Expense, Amount: dec("1"), Date: Date{}},
		{Owner: "u", Type: Expense, Amount: dec("0"), Date: NewDate(2025, 1, 1)},
		{Owner: "u", Type: Expense, Amount: dec("-1"), Date: NewDate(2025, 1, 1)},
		{Owner: "u", Type: Expense, Amount: dec("1.001"), Date: NewDate(2025, 1, 1)},
		{Owner: "u", Type: Expense, Amount: dec("1"), Date: NewDate(2025, 1, 1), Description: strings.Repeat("x", 201)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Owner: "u", Name: "Food"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Category{
		{Owner: "", Name: "Food"},
		{Owner: "u", Name: ""},
		{Owner: "u", Name: "   "},
		{Owner: "u", Name: strings.Repeat("x", 101)},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPaymentValidate(t *testing.T) {
	good := Payment{EntryID: "e1", Amount: dec("5.00"), Date: NewDate(2025, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Payment{
		{EntryID: "", Amount: dec("5"), Date: NewDate(2025, 1, 1)},
		{EntryID: "e1", Amount: dec("0"), Date: NewDate(2025, 1, 1)},
		{EntryID: "e1", Amount: dec("-5"), Date: NewDate(2025, 1, 1)},
		{EntryID: "e1", Amount: dec("5"), Date: Date{}},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	good := RecurringRule{
		Owner:       "u",
		Type:        Expense,
		Amount:      dec("12.00"),
		Description: "rent",
		Frequency:   Monthly,
		StartDate:   NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []RecurringRule{
		{Owner: "", Type: Expense, Amount: dec("1"), Description: "a", Frequency: Monthly, StartDate: NewDate(2025, 1, 1)},
		{Owner: "u", Type: EntryType("x"), Amount: dec("1"), Description: "a", Frequency: Monthly, StartDate: NewDate(2025, 1, 1)},
		{Owner: "u", Type: Expense, Amount: dec("0"), Description: "a", Frequency: Monthly, StartDate: NewDate(2025, 1, 1)},
		{Owner: "u", Type: Expense, Amount: dec("1"), Description: "", Frequency: Monthly, StartDate: NewDate(2025, 1, 1)},
		{Owner: "u", Type: Expense, Amount: dec("1"), Description: "a", Frequency: Frequency("hourly"), StartDate: NewDate(2025, 1, 1)},
		{Owner: "u", Type: Expense, Amount: dec("1"), Description: "a", Frequency: Monthly, StartDate: Date{}},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEntryTypeIsValid(t *testing.T) {
	cases := []struct {
		t  EntryType
		ok bool
	}{
		{Income, true},
		{Expense, true},
		{EntryType(""), false},
		{EntryType("Expense"), false},
	}
	for i, tc := range cases {
		if tc.t.IsValid() != tc.ok {
			t.Fatalf("case %d: IsValid(%q) = %v", i, tc.t, !tc.ok)
		}
	}
}
