package scheduling

import (
	"fmt"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

// DefaultMaxClaimants is the number of lecturers that may share one slot.
const DefaultMaxClaimants = 2

// ApplyClaim appends the claimant to slot in place. The claimant list is
// copied first so a failed caller never observes a half-applied change.
func ApplyClaim(slot *models.ScheduleSlot, claimant models.Claimant, maxClaimants int) error {
	if maxClaimants <= 0 {
		maxClaimants = DefaultMaxClaimants
	}
	if slot.Claimants.Has(claimant.LecturerID) {
		return appErrors.Clone(appErrors.ErrAlreadyClaimed, fmt.Sprintf("lecturer %s already claimed slot %s", claimant.LecturerID, label(slot)))
	}
	if len(slot.Claimants) >= maxClaimants {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("slot %s already has %d claimants", label(slot), len(slot.Claimants)))
	}
	next := make(models.Claimants, len(slot.Claimants), len(slot.Claimants)+1)
	copy(next, slot.Claimants)
	slot.Claimants = append(next, claimant)
	return nil
}

// ApplyUnclaim removes every entry for lecturerID. It reports whether the
// list changed; removing an absent lecturer is not an error.
func ApplyUnclaim(slot *models.ScheduleSlot, lecturerID string) bool {
	next := make(models.Claimants, 0, len(slot.Claimants))
	for _, c := range slot.Claimants {
		if c.LecturerID != lecturerID {
			next = append(next, c)
		}
	}
	changed := len(next) != len(slot.Claimants)
	slot.Claimants = next
	return changed
}

// ApplyRefresh rewrites the snapshot fields of an existing claim.
func ApplyRefresh(slot *models.ScheduleSlot, claimant models.Claimant) bool {
	changed := false
	next := make(models.Claimants, len(slot.Claimants))
	copy(next, slot.Claimants)
	for i := range next {
		if next[i].LecturerID == claimant.LecturerID && next[i] != claimant {
			next[i] = claimant
			changed = true
		}
	}
	slot.Claimants = next
	return changed
}

func label(slot *models.ScheduleSlot) string {
	if slot.CourseCode != "" && slot.SectionCode != "" {
		return slot.CourseCode + "-" + slot.SectionCode
	}
	return slot.ID
}
