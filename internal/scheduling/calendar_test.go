package scheduling

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

func TestBuildCalendarWeeklyEvents(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	// Wednesday.
	from := time.Date(2025, 9, 3, 15, 0, 0, 0, loc)

	monday := slotAt("s1", "GK-301", models.Monday, "08:00", "09:40")
	monday.Claimants = models.Claimants{{LecturerID: "L1", DisplayName: "Ani", Title: "M.Kom"}}
	wednesday := slotAt("s2", "GK-302", models.Wednesday, "13:00", "14:40")
	broken := slotAt("s3", "GK-303", models.Friday, "bad", "14:40")

	cal := BuildCalendar([]models.ScheduleSlot{monday, wednesday, broken}, CalendarOptions{
		Name: "Ani", From: from, Weeks: 14, Location: loc,
	})
	events := cal.Events()
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "s1@pdb-slot-api", first.Id())
	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 9, 8, 8, 0, 0, 0, loc)), "monday occurrence is the following week: %s", start)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=14", first.GetProperty(ics.ComponentPropertyRrule).Value)
	assert.Equal(t, "GK-301", first.GetProperty(ics.ComponentPropertyLocation).Value)

	second, err := events[1].GetStartAt()
	require.NoError(t, err)
	assert.True(t, second.Equal(time.Date(2025, 9, 3, 13, 0, 0, 0, loc)), "same weekday starts on the anchor day: %s", second)
}

func TestWriteCalendarSerializes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCalendar(&buf, []models.ScheduleSlot{slotAt("s1", "R1", models.Tuesday, "10:00", "11:40")}, CalendarOptions{}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "FREQ=WEEKLY;COUNT=16")
}
