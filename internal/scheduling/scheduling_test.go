package scheduling

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

func slotAt(id, room string, day models.Weekday, start, end string) models.ScheduleSlot {
	return models.ScheduleSlot{
		ID:             id,
		CourseCode:     "PDB01",
		CourseName:     "Pengantar Data Besar",
		SectionCode:    id,
		Day:            day,
		StartTime:      start,
		EndTime:        end,
		Room:           room,
		AcademicPeriod: "2025-1",
		Claimants:      models.Claimants{},
	}
}

func TestApplyClaimCapacityAndDuplicates(t *testing.T) {
	slot := slotAt("s1", "R1", models.Monday, "08:00", "09:40")

	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L1", DisplayName: "Ani"}, 2))

	err := ApplyClaim(&slot, models.Claimant{LecturerID: "L1"}, 2)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyClaimed))

	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L2", DisplayName: "Budi"}, 2))

	err = ApplyClaim(&slot, models.Claimant{LecturerID: "L3"}, 2)
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))

	require.Len(t, slot.Claimants, 2)
	assert.Equal(t, "L1", slot.Claimants[0].LecturerID)
	assert.Equal(t, "L2", slot.Claimants[1].LecturerID)
	assert.True(t, slot.IsFull(2))
}

func TestApplyClaimDoesNotAliasSharedBackingArray(t *testing.T) {
	slot := slotAt("s1", "R1", models.Monday, "08:00", "09:40")
	slot.Claimants = make(models.Claimants, 0, 4)
	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L1"}, 2))
	shallow := slot

	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L2"}, 2))
	require.NoError(t, ApplyClaim(&shallow, models.Claimant{LecturerID: "L3"}, 2))
	assert.Equal(t, "L2", slot.Claimants[1].LecturerID)
	assert.Equal(t, "L3", shallow.Claimants[1].LecturerID)
}

func TestUnclaimIdempotentAndRoundTrip(t *testing.T) {
	slot := slotAt("s1", "R1", models.Monday, "08:00", "09:40")
	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L1"}, 2))
	before := slot.Clone()

	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L2"}, 2))
	assert.True(t, ApplyUnclaim(&slot, "L2"))
	assert.Equal(t, before.Claimants, slot.Claimants)

	assert.False(t, ApplyUnclaim(&slot, "L2"))
	assert.Equal(t, before.Claimants, slot.Claimants)
}

func TestApplyRefresh(t *testing.T) {
	slot := slotAt("s1", "R1", models.Monday, "08:00", "09:40")
	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L1", DisplayName: "Ani"}, 2))

	assert.True(t, ApplyRefresh(&slot, models.Claimant{LecturerID: "L1", DisplayName: "Ani S.", Title: "Dr."}))
	assert.Equal(t, "Dr.", slot.Claimants[0].Title)
	assert.False(t, ApplyRefresh(&slot, models.Claimant{LecturerID: "L9", DisplayName: "X"}))
}

func TestFindConflictSymmetricAndTouching(t *testing.T) {
	a := slotAt("A", "R1", models.Monday, "08:00", "09:40")
	b := slotAt("B", "R1", models.Monday, "09:00", "10:00")
	c := slotAt("C", "R1", models.Monday, "09:40", "11:20")

	assert.NotNil(t, FindConflict(b, []models.ScheduleSlot{a}))
	assert.NotNil(t, FindConflict(a, []models.ScheduleSlot{b}))
	assert.Nil(t, FindConflict(c, []models.ScheduleSlot{a}))
	assert.Nil(t, FindConflict(a, []models.ScheduleSlot{c}))
}

func TestFindConflictFilters(t *testing.T) {
	a := slotAt("A", "R1", models.Monday, "08:00", "09:40")

	otherRoom := slotAt("B", "R2", models.Monday, "08:00", "09:40")
	otherDay := slotAt("C", "R1", models.Tuesday, "08:00", "09:40")
	otherPeriod := slotAt("D", "R1", models.Monday, "08:00", "09:40")
	otherPeriod.AcademicPeriod = "2025-2"
	sameRoomDifferentCase := slotAt("E", " r1 ", models.Monday, "09:00", "09:30")

	assert.Nil(t, FindConflict(otherRoom, []models.ScheduleSlot{a}))
	assert.Nil(t, FindConflict(otherDay, []models.ScheduleSlot{a}))
	assert.Nil(t, FindConflict(otherPeriod, []models.ScheduleSlot{a}))

	hit := FindConflict(sameRoomDifferentCase, []models.ScheduleSlot{otherRoom, a})
	require.NotNil(t, hit)
	assert.Equal(t, "A", hit.ID)
}

func TestConflictErrorMessage(t *testing.T) {
	a := slotAt("A", "R1", models.Monday, "08:00", "09:40")
	err := &ConflictError{With: a}
	assert.Equal(t, "room R1 already booked by Pengantar Data Besar (A) at 08:00-09:40", err.Error())
}

func TestReconcileIntraBatchFirstSeenWins(t *testing.T) {
	a := Candidate{Line: 2, Slot: slotAt("A", "R1", models.Monday, "08:00", "09:40")}
	b := Candidate{Line: 3, Slot: slotAt("B", "R1", models.Monday, "09:00", "10:00")}

	result := Reconcile([]Candidate{a, b}, nil)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "A", result.Accepted[0].Slot.ID)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 3, result.Rejected[0].Line)
	assert.Equal(t, "A", result.Rejected[0].ConflictWith)
	assert.Contains(t, result.Rejected[0].Reason, "conflicts with line 2")
}

func TestReconcileAgainstExisting(t *testing.T) {
	existing := []models.ScheduleSlot{slotAt("E1", "R1", models.Monday, "08:00", "09:40")}
	cands := []Candidate{
		{Line: 2, Slot: slotAt("N1", "R1", models.Monday, "08:30", "09:00")},
		{Line: 3, Slot: slotAt("N2", "R1", models.Monday, "09:40", "11:20")},
		{Line: 4, Slot: slotAt("N3", "R2", models.Monday, "08:00", "09:40")},
	}

	result := Reconcile(cands, existing)
	assert.Len(t, result.Accepted, 2)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "E1", result.Rejected[0].ConflictWith)
	assert.NotContains(t, result.Rejected[0].Reason, "line")
	assert.Equal(t, "N2", result.Accepted[0].Slot.ID)
	assert.Equal(t, "N3", result.Accepted[1].Slot.ID)
}

// Three lecturers race for one slot; the end state is the first two.
func TestEndToEndClaimScenario(t *testing.T) {
	slot := slotAt("PDB01-A", "R1", models.Monday, "08:00", "09:40")

	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L1"}, 2))
	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L2"}, 2))
	assert.True(t, errors.Is(ApplyClaim(&slot, models.Claimant{LecturerID: "L3"}, 2), appErrors.ErrCapacityExceeded))

	ApplyUnclaim(&slot, "L1")
	require.NoError(t, ApplyClaim(&slot, models.Claimant{LecturerID: "L3"}, 2))

	ids := make([]string, 0, len(slot.Claimants))
	for _, c := range slot.Claimants {
		ids = append(ids, c.LecturerID)
	}
	assert.Equal(t, []string{"L2", "L3"}, ids)
}

func TestParseWeekday(t *testing.T) {
	cases := map[string]models.Weekday{
		"Senin": models.Monday, "mon": models.Monday, "FRIDAY": models.Friday,
		" Jumat ": models.Friday, "minggu": models.Sunday, "Wed": models.Wednesday,
	}
	for in, want := range cases {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseWeekday("someday")
	assert.Error(t, err)
}

func TestNormalizeClock(t *testing.T) {
	for in, want := range map[string]string{"8:00": "08:00", "08.30": "08:30", "13:05": "13:05"} {
		got, err := NormalizeClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "24:00", "8", "08:7", "aa:bb", "123:00"} {
		_, err := NormalizeClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestSortSlots(t *testing.T) {
	slots := []models.ScheduleSlot{
		slotAt("3", "R2", models.Tuesday, "08:00", "09:00"),
		slotAt("2", "R2", models.Monday, "10:00", "11:00"),
		slotAt("1b", "R1", models.Monday, "08:00", "09:00"),
		slotAt("1a", "R1", models.Monday, "08:00", "09:00"),
	}
	SortSlots(slots)

	got := make([]string, len(slots))
	for i, s := range slots {
		got[i] = s.ID
	}
	assert.Equal(t, []string{"1a", "1b", "2", "3"}, got, fmt.Sprint(got))
}
