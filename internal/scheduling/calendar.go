package scheduling

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

// CalendarOptions anchors the weekly recurrence of exported slots.
type CalendarOptions struct {
	Name     string
	From     time.Time
	Weeks    int
	Location *time.Location
}

const defaultCalendarWeeks = 16

// BuildCalendar renders slots as weekly recurring events. Each slot's first
// occurrence is its weekday on or after From. Slots with malformed times are
// skipped.
func BuildCalendar(slots []models.ScheduleSlot, opts CalendarOptions) *ics.Calendar {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	weeks := opts.Weeks
	if weeks <= 0 {
		weeks = defaultCalendarWeeks
	}
	from := opts.From
	if from.IsZero() {
		from = time.Now()
	}
	from = from.In(loc)
	anchor := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//pdb-slot-api//slots//ID")
	cal.SetTimezoneId(loc.String())
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}

	stamp := time.Now().UTC()
	for _, slot := range slots {
		start, end, ok := firstOccurrence(slot, anchor)
		if !ok {
			continue
		}
		event := cal.AddEvent(slot.ID + "@pdb-slot-api")
		event.SetDtStampTime(stamp)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(fmt.Sprintf("%s %s (%s)", slot.CourseCode, slot.CourseName, slot.SectionCode))
		event.SetLocation(slot.Room)
		event.SetDescription(describeClaimants(slot.Claimants))
		event.AddRrule(fmt.Sprintf("FREQ=WEEKLY;COUNT=%d", weeks))
	}
	return cal
}

// WriteCalendar serializes BuildCalendar output to w.
func WriteCalendar(w io.Writer, slots []models.ScheduleSlot, opts CalendarOptions) error {
	_, err := io.WriteString(w, BuildCalendar(slots, opts).Serialize())
	return err
}

func firstOccurrence(slot models.ScheduleSlot, anchor time.Time) (time.Time, time.Time, bool) {
	idx := DayIndex(slot.Day)
	if idx >= len(models.Weekdays) {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse("15:04", slot.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse("15:04", slot.EndTime)
	if err != nil || !start.Before(end) {
		return time.Time{}, time.Time{}, false
	}

	// DayIndex is Monday first, time.Weekday is Sunday first.
	target := time.Weekday((idx + 1) % 7)
	offset := (int(target) - int(anchor.Weekday()) + 7) % 7
	day := anchor.AddDate(0, 0, offset)

	at := func(clock time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, anchor.Location())
	}
	return at(start), at(end), true
}

func describeClaimants(claimants models.Claimants) string {
	if len(claimants) == 0 {
		return "No claimants"
	}
	out := "Claimed by:"
	for _, c := range claimants {
		out += "\n- " + c.DisplayName
		if c.Title != "" {
			out += ", " + c.Title
		}
	}
	return out
}
