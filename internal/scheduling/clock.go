package scheduling

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeClock converts "8:00", "08.00" or "08:00" into zero-padded "HH:MM".
// Normalized values compare lexically in chronological order.
func NormalizeClock(raw string) (string, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), ".", ":")
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", raw)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
