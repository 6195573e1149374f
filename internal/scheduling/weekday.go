// Package scheduling holds the pure rules of slot arbitration: claim and
// unclaim, room/time conflict detection and bulk import reconciliation.
// Stores call these rules inside their own per-slot critical sections.
package scheduling

import (
	"fmt"
	"strings"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

var weekdayAliases = map[string]models.Weekday{
	"monday": models.Monday, "mon": models.Monday, "senin": models.Monday,
	"tuesday": models.Tuesday, "tue": models.Tuesday, "selasa": models.Tuesday,
	"wednesday": models.Wednesday, "wed": models.Wednesday, "rabu": models.Wednesday,
	"thursday": models.Thursday, "thu": models.Thursday, "kamis": models.Thursday,
	"friday": models.Friday, "fri": models.Friday, "jumat": models.Friday, "jum'at": models.Friday,
	"saturday": models.Saturday, "sat": models.Saturday, "sabtu": models.Saturday,
	"sunday": models.Sunday, "sun": models.Sunday, "minggu": models.Sunday,
}

// ParseWeekday maps English, abbreviated and Indonesian day names onto the
// canonical weekday.
func ParseWeekday(raw string) (models.Weekday, error) {
	day, ok := weekdayAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown day %q", raw)
	}
	return day, nil
}

// DayIndex orders weekdays Monday first. Unknown values sort last.
func DayIndex(day models.Weekday) int {
	for i, d := range models.Weekdays {
		if d == day {
			return i
		}
	}
	return len(models.Weekdays)
}
