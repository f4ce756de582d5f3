package api

import (
	"fmt"
	"strconv"
	"strings"
)

// parseAmountCents converts a decimal string with up to 2 fractional digits
// into minor units. Zero is accepted only when allowZero is set.
func parseAmountCents(s string, allowZero bool) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount required")
	}
	if s[0] == '+' {
		s = s[1:]
	}
	if s == "" || s[0] == '-' {
		return 0, fmt.Errorf("amount must not be negative")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("invalid amount")
	}
	intPart := parts[0]
	frac := "00"
	if len(parts) == 2 {
		if len(parts[1]) == 0 || len(parts[1]) > 2 {
			return 0, fmt.Errorf("amount supports up to 2 decimals")
		}
		frac = parts[1] + strings.Repeat("0", 2-len(parts[1]))
	}
	ip, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount integer")
	}
	fp, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || fp < 0 {
		return 0, fmt.Errorf("invalid amount fractional")
	}
	if ip > (1<<63-1-fp)/100 {
		return 0, fmt.Errorf("amount too large")
	}
	total := ip*100 + fp
	if total == 0 && !allowZero {
		return 0, fmt.Errorf("amount must be > 0")
	}
	return total, nil
}

// formatAmount renders minor units with two decimals.
func formatAmount(v int64) string {
	sign := ""
	u := uint64(v)
	if v < 0 {
		sign = "-"
		u = uint64(-(v + 1)) + 1
	}

	return fmt.Sprintf("%s%d.%02d", sign, u/100, u%100)
}
