package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/pdb-slot-api/internal/dto"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/scheduling"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
	"github.com/noah-isme/pdb-slot-api/pkg/jobs"
	"github.com/noah-isme/pdb-slot-api/pkg/middleware/requestid"
)

// JobRefreshClaimant is the job type that rewrites a lecturer's claim snapshots.
const JobRefreshClaimant = "refresh_claimant"

type periodResolver interface {
	Resolve(id string) (string, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.SlotEvent) error
}

// SlotServiceConfig carries the arbitration settings.
type SlotServiceConfig struct {
	MaxClaimants int
	// Rooms is the room directory. Empty accepts any room name.
	Rooms []models.Room
}

// SlotService coordinates the slot registry: creation with conflict checks,
// claim arbitration and the derived per-lecturer views.
type SlotService struct {
	store     SlotStore
	lecturers LecturerStore
	periods   periodResolver
	cache     *CacheService
	events    eventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SlotServiceConfig

	// createMu serializes conflict check plus insert within this process.
	createMu sync.Mutex
}

// NewSlotService instantiates SlotService. cache, events and metrics are optional.
func NewSlotService(store SlotStore, lecturers LecturerStore, periods periodResolver, cache *CacheService, events eventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg SlotServiceConfig) *SlotService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxClaimants <= 0 {
		cfg.MaxClaimants = scheduling.DefaultMaxClaimants
	}
	return &SlotService{
		store:     store,
		lecturers: lecturers,
		periods:   periods,
		cache:     cache,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// MaxClaimants returns the configured seat count per slot.
func (s *SlotService) MaxClaimants() int {
	return s.cfg.MaxClaimants
}

// generationKey holds the period's list version. Every mutation bumps it, so
// a list read before a concurrent mutation is stored under a version nobody
// reads again.
func generationKey(period string) string {
	return "slots:period:" + period + ":gen"
}

func listKey(period string, gen int64) string {
	return fmt.Sprintf("slots:period:%s:v%d", period, gen)
}

// List returns the period's slots ordered by day, start time, room and section.
// An empty period means the active one.
func (s *SlotService) List(ctx context.Context, period string) ([]models.ScheduleSlot, string, error) {
	period, err := s.periods.Resolve(period)
	if err != nil {
		return nil, "", err
	}

	var slots []models.ScheduleSlot
	gen, cached := s.cache.Generation(ctx, generationKey(period))
	if cached && s.cache.Get(ctx, listKey(period, gen), &slots) {
		return slots, period, nil
	}

	slots, err = s.store.List(ctx, period)
	if err != nil {
		return nil, "", wrapStoreErr(err, "failed to list slots")
	}
	scheduling.SortSlots(slots)
	if cached {
		s.cache.Set(ctx, listKey(period, gen), slots)
	}
	return slots, period, nil
}

// Get returns a single slot.
func (s *SlotService) Get(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	slot, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load slot")
	}
	return slot, nil
}

// BuildSlot validates a manual entry and normalizes it into a slot.
func (s *SlotService) BuildSlot(req dto.CreateSlotRequest) (models.ScheduleSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ScheduleSlot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	period, err := s.periods.Resolve(req.AcademicPeriod)
	if err != nil {
		return models.ScheduleSlot{}, err
	}

	day, _ := scheduling.ParseWeekday(req.Day)
	start, _ := scheduling.NormalizeClock(req.StartTime)
	end, _ := scheduling.NormalizeClock(req.EndTime)
	if start >= end {
		return models.ScheduleSlot{}, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	room, err := s.resolveRoom(strings.TrimSpace(req.Room))
	if err != nil {
		return models.ScheduleSlot{}, err
	}

	return models.ScheduleSlot{
		ID:             uuid.NewString(),
		CourseCode:     strings.TrimSpace(req.CourseCode),
		CourseName:     strings.TrimSpace(req.CourseName),
		Credits:        req.Credits,
		SectionCode:    strings.TrimSpace(req.SectionCode),
		Day:            day,
		StartTime:      start,
		EndTime:        end,
		Room:           room,
		AcademicPeriod: period,
		Claimants:      models.Claimants{},
	}, nil
}

// resolveRoom maps the name onto the directory entry, keeping its spelling.
func (s *SlotService) resolveRoom(name string) (string, error) {
	if len(s.cfg.Rooms) == 0 {
		return name, nil
	}
	for _, room := range s.cfg.Rooms {
		if scheduling.SameRoom(room.Name, name) {
			return room.Name, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("room %q is not in the room directory", name))
}

// Create validates the payload, rejects room/time conflicts within the period
// and stores the slot.
func (s *SlotService) Create(ctx context.Context, req dto.CreateSlotRequest) (*models.ScheduleSlot, error) {
	slot, err := s.BuildSlot(req)
	if err != nil {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	existing, err := s.store.List(ctx, slot.AcademicPeriod)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load existing slots")
	}
	if hit := scheduling.FindConflict(slot, existing); hit != nil {
		return nil, conflictErr(*hit)
	}

	if err := s.store.Create(ctx, &slot); err != nil {
		return nil, wrapStoreErr(err, "failed to create slot")
	}
	s.logger.Info("slot created", zap.String("slot_id", slot.ID), zap.String("period", slot.AcademicPeriod), zap.String("room", slot.Room))
	s.afterMutation(ctx, models.EventSlotCreated, &slot, "")
	return &slot, nil
}

func conflictErr(with models.ScheduleSlot) error {
	cause := &scheduling.ConflictError{With: with}
	err := appErrors.Wrap(cause, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, cause.Error())
	err.Details = map[string]interface{}{"with": with.ID, "slot": with}
	return err
}

// Delete removes a slot and its claims.
func (s *SlotService) Delete(ctx context.Context, id string) error {
	slot, err := s.store.Delete(ctx, id)
	if err != nil {
		return wrapStoreErr(err, "failed to delete slot")
	}
	s.logger.Info("slot deleted", zap.String("slot_id", id), zap.Int("claimants", len(slot.Claimants)))
	s.afterMutation(ctx, models.EventSlotDeleted, slot, "")
	return nil
}

// Claim gives lecturerID a seat on the slot. The claimant snapshot is taken
// from the lecturer directory at this moment.
func (s *SlotService) Claim(ctx context.Context, slotID, lecturerID string) (*models.ScheduleSlot, error) {
	lecturer, err := s.lecturers.Get(ctx, lecturerID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, wrapStoreErr(err, "failed to load lecturer")
	}

	slot, err := s.store.Claim(ctx, slotID, lecturer.Snapshot(), s.cfg.MaxClaimants)
	s.metrics.RecordClaim(claimOutcome(err))
	if err != nil {
		return nil, wrapStoreErr(err, "failed to claim slot")
	}
	s.logger.Debug("slot claimed", zap.String("slot_id", slotID), zap.String("lecturer_id", lecturerID))
	s.afterMutation(ctx, models.EventSlotClaimed, slot, lecturerID)
	return slot, nil
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return ClaimOutcomeClaimed
	case errors.Is(err, appErrors.ErrAlreadyClaimed):
		return ClaimOutcomeDuplicate
	case errors.Is(err, appErrors.ErrCapacityExceeded):
		return ClaimOutcomeFull
	case errors.Is(err, appErrors.ErrNotFound):
		return ClaimOutcomeNotFound
	case appErrors.Retriable(err):
		return ClaimOutcomeUnavailable
	default:
		return ClaimOutcomeError
	}
}

// Unclaim releases lecturerID's seat. It succeeds when the lecturer held no
// seat or the slot no longer exists; the returned slot is then nil or unchanged.
func (s *SlotService) Unclaim(ctx context.Context, slotID, lecturerID string) (*models.ScheduleSlot, error) {
	slot, err := s.store.Unclaim(ctx, slotID, lecturerID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to release slot")
	}
	if slot != nil {
		s.afterMutation(ctx, models.EventSlotUnclaimed, slot, lecturerID)
	}
	return slot, nil
}

// ClaimedBy lists the period's slots held by lecturerID.
func (s *SlotService) ClaimedBy(ctx context.Context, period, lecturerID string) ([]models.ScheduleSlot, string, error) {
	return s.filter(ctx, period, func(slot models.ScheduleSlot) bool { return slot.Claimants.Has(lecturerID) })
}

// AvailableFor lists the period's slots lecturerID has not claimed, full ones included.
func (s *SlotService) AvailableFor(ctx context.Context, period, lecturerID string) ([]models.ScheduleSlot, string, error) {
	return s.filter(ctx, period, func(slot models.ScheduleSlot) bool { return !slot.Claimants.Has(lecturerID) })
}

func (s *SlotService) filter(ctx context.Context, period string, keep func(models.ScheduleSlot) bool) ([]models.ScheduleSlot, string, error) {
	slots, period, err := s.List(ctx, period)
	if err != nil {
		return nil, "", err
	}
	out := make([]models.ScheduleSlot, 0, len(slots))
	for _, slot := range slots {
		if keep(slot) {
			out = append(out, slot)
		}
	}
	return out, period, nil
}

// Summary counts empty, partially claimed and full slots of a period.
func (s *SlotService) Summary(ctx context.Context, period string) (*dto.SlotSummary, error) {
	slots, period, err := s.List(ctx, period)
	if err != nil {
		return nil, err
	}
	summary := &dto.SlotSummary{Period: period, Total: len(slots), TotalSeats: len(slots) * s.cfg.MaxClaimants}
	lecturers := make(map[string]struct{})
	for _, slot := range slots {
		switch n := len(slot.Claimants); {
		case n == 0:
			summary.Empty++
		case n >= s.cfg.MaxClaimants:
			summary.Full++
		default:
			summary.Partial++
		}
		summary.ClaimedSeats += len(slot.Claimants)
		for _, c := range slot.Claimants {
			lecturers[c.LecturerID] = struct{}{}
		}
	}
	summary.Lecturers = len(lecturers)
	if summary.TotalSeats > 0 {
		summary.FillPercentage = float64(summary.ClaimedSeats) * 100 / float64(summary.TotalSeats)
	}
	return summary, nil
}

// RefreshClaimantJob is the jobs.Handler that rewrites a lecturer's claim
// snapshots from the current directory entry. Payload is the NIP.
func (s *SlotService) RefreshClaimantJob(ctx context.Context, job jobs.Job) error {
	nip, ok := job.Payload.(string)
	if !ok || nip == "" {
		return fmt.Errorf("refresh claimant job %s: payload must be a NIP", job.ID)
	}
	lecturer, err := s.lecturers.Get(ctx, nip)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil
		}
		return err
	}
	updated, err := s.store.RefreshClaimant(ctx, lecturer.Snapshot())
	for i := range updated {
		s.afterMutation(ctx, models.EventClaimantUpdated, &updated[i], nip)
	}
	if err != nil {
		return err
	}
	s.logger.Info("claimant snapshots refreshed", zap.String("lecturer_id", nip), zap.Int("slots", len(updated)))
	return nil
}

// afterMutation invalidates the period cache and publishes the event. Both
// are best effort; the mutation is already durable.
func (s *SlotService) afterMutation(ctx context.Context, kind models.SlotEventType, slot *models.ScheduleSlot, lecturerID string) {
	if gen, ok := s.cache.Bump(ctx, generationKey(slot.AcademicPeriod)); ok {
		s.cache.Invalidate(ctx, listKey(slot.AcademicPeriod, gen-1))
	}
	if s.events == nil {
		return
	}
	event := models.SlotEvent{
		Type:       kind,
		Period:     slot.AcademicPeriod,
		SlotID:     slot.ID,
		LecturerID: lecturerID,
		Slot:       slot,
		OccurredAt: time.Now().UTC(),
		RequestID:  requestid.FromContext(ctx),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish slot event", zap.String("type", string(kind)), zap.String("slot_id", slot.ID), zap.Error(err))
	}
}

// wrapStoreErr keeps typed store errors and wraps anything else as internal.
func wrapStoreErr(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
