package utils

import (
	"fmt"
	"math"
	"strings"
)

// ApproxEqual reports whether two prices match within epsilon. Used to
// tolerate floating-point noise when deciding whether a recalculated price
// actually changed.
func ApproxEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// RoundForDisplay rounds a price to two decimals. Display only; stored
// values are never rounded.
func RoundForDisplay(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// FormatGBP formats an amount as a string like "£1,234.56".
// Uses comma as thousands separator.
func FormatGBP(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}

	s := fmt.Sprintf("%.2f", amount)
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]

	if len(whole) <= 3 {
		if neg {
			return "-£" + whole + frac
		}
		return "£" + whole + frac
	}

	var b strings.Builder
	// Pre-allocate: digits + separators + £ sign
	b.Grow(len(s) + len(whole)/3 + 3)
	if neg {
		b.WriteString("-£")
	} else {
		b.WriteString("£")
	}

	// Insert separators from the left.
	rem := len(whole) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(whole[:rem])
	for i := rem; i < len(whole); i += 3 {
		b.WriteByte(',')
		b.WriteString(whole[i : i+3])
	}
	b.WriteString(frac)

	return b.String()
}
