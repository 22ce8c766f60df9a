package invoice

import "testing"

func TestCleanAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"¥12,345", "12,345"},
		{"￥ 1,000", "1,000"},
		{"半1,500", "1,500"},
		{"#980", "980"},
		{"12,345円", "12,345"},
		{"1,234.56", "1,234.56"},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := cleanAmount(tt.in); got != tt.want {
			t.Errorf("cleanAmount(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"", 0, false},
		{"1,234", 1234, true},
		{"12.5", 12.5, true},
		{"1,234,567.89", 1234567.89, true},
		{"12,34,56", 123456, true},
		{"1.2.3", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumber(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{999.4, "999"},
		{1000.6, "1,001"},
		{2500, "2,500"},
		{1237.5, "1,238"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
		{1234.5, "1,234.50"},
		{0.25, "0.25"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
