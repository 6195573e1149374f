package service

import (
	"context"

	"github.com/noah-isme/pdb-slot-api/internal/models"
)

// SlotStore persists the slot registry. Implementations serialize Claim and
// Unclaim per slot and apply scheduling.ApplyClaim / ApplyUnclaim inside that
// critical section. Missing slots surface as appErrors.ErrNotFound, except
// for Unclaim which returns a nil slot and no error.
type SlotStore interface {
	List(ctx context.Context, period string) ([]models.ScheduleSlot, error)
	Get(ctx context.Context, id string) (*models.ScheduleSlot, error)
	Create(ctx context.Context, slot *models.ScheduleSlot) error
	CreateBatch(ctx context.Context, slots []models.ScheduleSlot) error
	Delete(ctx context.Context, id string) (*models.ScheduleSlot, error)
	Claim(ctx context.Context, id string, claimant models.Claimant, maxClaimants int) (*models.ScheduleSlot, error)
	Unclaim(ctx context.Context, id, lecturerID string) (*models.ScheduleSlot, error)
	// RefreshClaimant rewrites the snapshot of an existing claimant in every
	// slot that holds it and returns the updated slots.
	RefreshClaimant(ctx context.Context, claimant models.Claimant) ([]models.ScheduleSlot, error)
	Ping(ctx context.Context) error
}

// LecturerStore persists the lecturer directory.
type LecturerStore interface {
	List(ctx context.Context, filter models.LecturerFilter) ([]models.Lecturer, int, error)
	Get(ctx context.Context, nip string) (*models.Lecturer, error)
	Create(ctx context.Context, lecturer *models.Lecturer) error
	Update(ctx context.Context, lecturer *models.Lecturer) error
	Delete(ctx context.Context, nip string) error
}

// SettingsStore persists small key/value settings such as the active period.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}
