package invoice

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	currencyJunk = regexp.MustCompile(`[半#¥￥\s]`)
	nonAmount    = regexp.MustCompile(`[^\d,.]`)
)

// cleanAmount strips currency symbols and OCR artifacts from an amount
// string, keeping only digits, commas and decimal points. The 半 character
// is a frequent misread of ¥ in scanned invoices.
func cleanAmount(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := currencyJunk.ReplaceAllString(raw, "")
	return nonAmount.ReplaceAllString(cleaned, "")
}

// parseNumber converts a cleaned amount string to a float, ignoring
// thousands separators.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// formatAmount renders a computed monetary amount: rounded to the nearest
// whole unit, with thousands separators. Line totals on invoices never
// carry decimals.
func formatAmount(v float64) string {
	return groupThousands(strconv.FormatInt(int64(math.Round(v)), 10))
}

// formatNumber renders a numeric value the way invoices print them:
// thousands separators, no decimals for whole numbers, two otherwise.
func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return groupThousands(strconv.FormatInt(int64(v), 10))
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	return groupThousands(s[:dot]) + s[dot:]
}

func groupThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	n := len(digits)
	if n <= 3 {
		if neg {
			return "-" + digits
		}
		return digits
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
