package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseTTL parses a duration expression of the form "<number><unit>",
// where unit is minutes, hours or days (long or short form, any
// casing, optional whitespace): "15m", "12 hours", "7d". Unrecognized
// units or malformed numbers yield a format error.
func ParseTTL(expr string) (time.Duration, error) {
	s := strings.TrimSpace(expr)
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid duration expression %q", expr)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, fmt.Errorf("invalid duration expression %q", expr)
	}
	unit := strings.ToLower(strings.TrimSpace(s[i:]))
	switch unit {
	case "m", "min", "mins", "minute", "minutes":
		return time.Duration(n) * time.Minute, nil
	case "h", "hr", "hrs", "hour", "hours":
		return time.Duration(n) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unrecognized duration unit %q in %q", unit, expr)
}

// ComputeExpiry resolves a duration expression into an absolute UTC
// timestamp measured from now.
func ComputeExpiry(expr string) (time.Time, error) {
	d, err := ParseTTL(expr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().UTC().Add(d), nil
}
