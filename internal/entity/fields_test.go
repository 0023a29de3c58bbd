package entity

import "testing"

func TestWeightUnit(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"GRAMS", "g"},
		{"OUNCES", "oz"},
		{"POUNDS", "lb"},
		{"KILOGRAMS", "kg"},
		{"", "kg"},
	}
	for _, tc := range tests {
		if got := weightUnit(tc.in); got != tc.want {
			t.Errorf("weightUnit(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSortOrder(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ALPHA_DESC", "alpha-des"},
		{"BEST_SELLING", "best-selling"},
		{"MANUAL", "manual"},
		{"", "best-selling"},
		{"SOMETHING_NEW", "SOMETHING_NEW"},
	}
	for _, tc := range tests {
		if got := sortOrder(tc.in); got != tc.want {
			t.Errorf("sortOrder(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCommentable(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"OPEN", "yes"},
		{"MODERATE", "moderate"},
		{"CLOSED", "no"},
		{"", "no"},
	}
	for _, tc := range tests {
		if got := commentable(tc.in); got != tc.want {
			t.Errorf("commentable(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("äöü", 2); got != "äö" {
		t.Errorf("truncateRunes = %q, want äö", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("truncateRunes = %q, want abc", got)
	}
}

func TestStringOr(t *testing.T) {
	s := "x"
	if stringOr(&s, "d") != "x" || stringOr(nil, "d") != "d" {
		t.Error("stringOr did not honour nil")
	}
}
