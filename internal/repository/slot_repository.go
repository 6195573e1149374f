package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/scheduling"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

const slotColumns = `id, course_code, course_name, credits, section_code, day, start_time, end_time, room, academic_period, claimants, created_at, updated_at`

// SlotRepository stores slots in PostgreSQL. Claim and Unclaim lock the slot
// row for the duration of the read-modify-write.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository creates a new slot repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns every slot of period in insertion order.
func (r *SlotRepository) List(ctx context.Context, period string) ([]models.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE academic_period = $1 ORDER BY created_at ASC, id ASC`
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, period); err != nil {
		return nil, classify(err, "failed to list slots")
	}
	if slots == nil {
		slots = []models.ScheduleSlot{}
	}
	return slots, nil
}

// Get returns a slot by id.
func (r *SlotRepository) Get(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	return r.get(ctx, nil, id, false)
}

func (r *SlotRepository) get(ctx context.Context, exec sqlx.ExtContext, id string, lock bool) (*models.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var slot models.ScheduleSlot
	if err := sqlx.GetContext(ctx, r.exec(exec), &slot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("slot %s not found", id))
		}
		return nil, classify(err, "failed to load slot")
	}
	return &slot, nil
}

const insertSlot = `INSERT INTO schedule_slots (` + slotColumns + `)
VALUES (:id, :course_code, :course_name, :credits, :section_code, :day, :start_time, :end_time, :room, :academic_period, :claimants, :created_at, :updated_at)`

func stamp(slot *models.ScheduleSlot, now time.Time) {
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	if slot.Claimants == nil {
		slot.Claimants = models.Claimants{}
	}
}

// Create inserts a slot. The id must already be assigned.
func (r *SlotRepository) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	stamp(slot, time.Now().UTC())
	if _, err := sqlx.NamedExecContext(ctx, r.db, insertSlot, slot); err != nil {
		return classify(err, "failed to create slot")
	}
	return nil
}

// CreateBatch inserts every slot in one transaction.
func (r *SlotRepository) CreateBatch(ctx context.Context, slots []models.ScheduleSlot) (err error) {
	if len(slots) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, "failed to begin import")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range slots {
		stamp(&slots[i], now)
		if _, err = sqlx.NamedExecContext(ctx, tx, insertSlot, &slots[i]); err != nil {
			return classify(err, "failed to import slot")
		}
	}
	if err = tx.Commit(); err != nil {
		return classify(err, "failed to commit import")
	}
	return nil
}

// Delete removes a slot and returns its last state.
func (r *SlotRepository) Delete(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	query := `DELETE FROM schedule_slots WHERE id = $1 RETURNING ` + slotColumns
	var slot models.ScheduleSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("slot %s not found", id))
		}
		return nil, classify(err, "failed to delete slot")
	}
	return &slot, nil
}

// mutate runs fn against the row-locked slot and writes back the claimant list
// when fn reports a change.
func (r *SlotRepository) mutate(ctx context.Context, id string, fn func(*models.ScheduleSlot) (bool, error)) (slot *models.ScheduleSlot, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify(err, "failed to begin claim")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	slot, err = r.get(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	changed, err := fn(slot)
	if err != nil {
		return nil, err
	}
	if changed {
		if err = r.writeClaimants(ctx, tx, slot); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, classify(err, "failed to commit claim")
	}
	return slot, nil
}

func (r *SlotRepository) writeClaimants(ctx context.Context, exec sqlx.ExtContext, slot *models.ScheduleSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_slots SET claimants = $2, updated_at = $3 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, slot.ID, slot.Claimants, slot.UpdatedAt); err != nil {
		return classify(err, "failed to update claimants")
	}
	return nil
}

// Claim adds claimant to the slot under a row lock.
func (r *SlotRepository) Claim(ctx context.Context, id string, claimant models.Claimant, maxClaimants int) (*models.ScheduleSlot, error) {
	return r.mutate(ctx, id, func(slot *models.ScheduleSlot) (bool, error) {
		if err := scheduling.ApplyClaim(slot, claimant, maxClaimants); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Unclaim removes the lecturer from the slot. A missing slot is not an error.
func (r *SlotRepository) Unclaim(ctx context.Context, id, lecturerID string) (*models.ScheduleSlot, error) {
	slot, err := r.mutate(ctx, id, func(slot *models.ScheduleSlot) (bool, error) {
		return scheduling.ApplyUnclaim(slot, lecturerID), nil
	})
	if errors.Is(err, appErrors.ErrNotFound) {
		return nil, nil
	}
	return slot, err
}

// RefreshClaimant rewrites the claimant snapshot in every slot holding it.
func (r *SlotRepository) RefreshClaimant(ctx context.Context, claimant models.Claimant) (updated []models.ScheduleSlot, err error) {
	needle, err := json.Marshal([]map[string]string{{"lecturer_id": claimant.LecturerID}})
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify(err, "failed to begin refresh")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE claimants @> $1::jsonb ORDER BY id FOR UPDATE`
	var slots []models.ScheduleSlot
	if err = tx.SelectContext(ctx, &slots, query, string(needle)); err != nil {
		return nil, classify(err, "failed to find claimant slots")
	}
	updated = []models.ScheduleSlot{}
	for i := range slots {
		if !scheduling.ApplyRefresh(&slots[i], claimant) {
			continue
		}
		if err = r.writeClaimants(ctx, tx, &slots[i]); err != nil {
			return nil, err
		}
		updated = append(updated, slots[i])
	}
	if err = tx.Commit(); err != nil {
		return nil, classify(err, "failed to commit refresh")
	}
	return updated, nil
}

// Ping checks database connectivity.
func (r *SlotRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify(err, "database unreachable")
	}
	return nil
}
