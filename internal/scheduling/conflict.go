package scheduling

import (
	"fmt"
	"strings"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

// ConflictError reports that a candidate overlaps an existing booking.
type ConflictError struct {
	With models.ScheduleSlot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("room %s already booked by %s (%s) at %s-%s",
		e.With.Room, e.With.CourseName, e.With.SectionCode, e.With.StartTime, e.With.EndTime)
}

// SameRoom compares room names ignoring case and surrounding whitespace.
func SameRoom(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Overlaps tests half-open windows [start, end). Touching edges do not overlap.
func Overlaps(a, b models.ScheduleSlot) bool {
	return a.StartTime < b.EndTime && b.StartTime < a.EndTime
}

// FindConflict returns the first slot in existing that shares period, room and
// day with candidate and overlaps it in time.
func FindConflict(candidate models.ScheduleSlot, existing []models.ScheduleSlot) *models.ScheduleSlot {
	for i := range existing {
		e := existing[i]
		if e.ID != "" && e.ID == candidate.ID {
			continue
		}
		if e.AcademicPeriod != candidate.AcademicPeriod || e.Day != candidate.Day || !SameRoom(e.Room, candidate.Room) {
			continue
		}
		if Overlaps(candidate, e) {
			return &existing[i]
		}
	}
	return nil
}
