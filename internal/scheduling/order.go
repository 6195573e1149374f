package scheduling

import (
	"sort"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

// SortSlots orders slots by day, start time, room, then section code.
func SortSlots(slots []models.ScheduleSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if da, db := DayIndex(a.Day), DayIndex(b.Day); da != db {
			return da < db
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.Room != b.Room {
			return a.Room < b.Room
		}
		return a.SectionCode < b.SectionCode
	})
}
