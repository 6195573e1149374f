package scheduling

import (
	"fmt"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

// Candidate is a parsed import row awaiting reconciliation.
type Candidate struct {
	Line int                 `json:"line"`
	Slot models.ScheduleSlot `json:"slot"`
}

// Rejection explains why a candidate was not accepted. ConflictWith holds the
// id of the blocking slot when the reason is a schedule conflict.
type Rejection struct {
	Line         int                  `json:"line"`
	Reason       string               `json:"reason"`
	ConflictWith string               `json:"conflict_with,omitempty"`
	Slot         *models.ScheduleSlot `json:"slot,omitempty"`
}

// ImportResult partitions candidates. Accepted preserves input order.
type ImportResult struct {
	Accepted []Candidate `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}

// Reconcile walks candidates in order and accepts each one that conflicts
// with neither existing nor a previously accepted candidate. The earliest
// candidate wins an intra-batch conflict. Candidates must carry ids.
func Reconcile(candidates []Candidate, existing []models.ScheduleSlot) ImportResult {
	result := ImportResult{Accepted: []Candidate{}, Rejected: []Rejection{}}
	pool := make([]models.ScheduleSlot, 0, len(existing)+len(candidates))
	pool = append(pool, existing...)
	lineOf := make(map[string]int, len(candidates))

	for _, cand := range candidates {
		slot := cand.Slot
		if hit := FindConflict(slot, pool); hit != nil {
			rejection := Rejection{Line: cand.Line, ConflictWith: hit.ID, Slot: &slot}
			rejection.Reason = (&ConflictError{With: *hit}).Error()
			if line, ok := lineOf[hit.ID]; ok {
				rejection.Reason = fmt.Sprintf("%s, conflicts with line %d", rejection.Reason, line)
			}
			result.Rejected = append(result.Rejected, rejection)
			continue
		}
		pool = append(pool, slot)
		lineOf[slot.ID] = cand.Line
		result.Accepted = append(result.Accepted, cand)
	}
	return result
}
