package core

import (
	"errors"
	"testing"
)

func TestParseMonthKey(t *testing.T) {
	cases := []struct {
		in   string
		want MonthKey
		ok   bool
	}{
		{"2025-01", MonthKey{2025, 1}, true},
		{"2025-12", MonthKey{2025, 12}, true},
		{"0001-01", MonthKey{1, 1}, true},
		{"2025-13", MonthKey{}, false},
		{"2025-00", MonthKey{}, false},
		{"2025-1", MonthKey{}, false},  // month not zero-padded
		{"25-01", MonthKey{}, false},   // year not four digits
		{"2025/01", MonthKey{}, false}, // wrong separator
		{"2025-01-05", MonthKey{}, false},
		{"", MonthKey{}, false},
		{"abcd-ef", MonthKey{}, false},
	}
	for _, tc := range cases {
		got, err := ParseMonthKey(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q: expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q: error should wrap ErrInvalidInput, got %v", tc.in, err)
		}
	}
}

func TestMonthKeyString(t *testing.T) {
	cases := []struct {
		in   MonthKey
		want string
	}{
		{MonthKey{2025, 1}, "2025-01"},
		{MonthKey{2025, 12}, "2025-12"},
		{MonthKey{999, 3}, "0999-03"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Fatalf("%v: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestMonthKeyPrevNext(t *testing.T) {
	cases := []struct {
		in         MonthKey
		prev, next MonthKey
	}{
		{MonthKey{2025, 6}, MonthKey{2025, 5}, MonthKey{2025, 7}},
		{MonthKey{2025, 1}, MonthKey{2024, 12}, MonthKey{2025, 2}},
		{MonthKey{2025, 12}, MonthKey{2025, 11}, MonthKey{2026, 1}},
	}
	for _, tc := range cases {
		if got := tc.in.Prev(); got != tc.prev {
			t.Fatalf("%v.Prev(): expected %v, got %v", tc.in, tc.prev, got)
		}
		if got := tc.in.Next(); got != tc.next {
			t.Fatalf("%v.Next(): expected %v, got %v", tc.in, tc.next, got)
		}
	}
}

func TestMonthKeyOrdering(t *testing.T) {
	a := MonthKey{2024, 12}
	b := MonthKey{2025, 1}

	if !a.Before(b) || b.Before(a) {
		t.Fatalf("expected %v before %v", a, b)
	}
	if !b.After(a) || a.After(b) {
		t.Fatalf("expected %v after %v", b, a)
	}
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Fatalf("unexpected Compare results")
	}
}

func TestMonthKeyValidate(t *testing.T) {
	if err := (MonthKey{2025, 6}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, bad := range []MonthKey{{2025, 0}, {2025, 13}, {0, 5}, {}} {
		if err := bad.Validate(); err == nil {
			t.Fatalf("%v: expected error", bad)
		}
	}
}
