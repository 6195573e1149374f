package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

// EventBroker publishes and subscribes to registry events.
type EventBroker interface {
	Publish(ctx context.Context, event models.SlotEvent) error
	Subscribe(ctx context.Context, period string) (<-chan models.SlotEvent, func(), error)
}

// PeriodService owns the configured academic periods and the active one.
type PeriodService struct {
	periods  []models.AcademicPeriod
	fallback string
	settings SettingsStore
	broker   EventBroker
	logger   *zap.Logger

	mu     sync.RWMutex
	active string
}

// NewPeriodService builds the service. fallback is used when no active period
// has been persisted; an empty or unknown fallback selects the first period.
func NewPeriodService(periods []models.AcademicPeriod, fallback string, settings SettingsStore, broker EventBroker, logger *zap.Logger) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PeriodService{periods: periods, settings: settings, broker: broker, logger: logger}
	if s.Exists(fallback) {
		s.fallback = fallback
	} else if len(periods) > 0 {
		s.fallback = periods[0].ID
	}
	s.active = s.fallback
	return s
}

// Load reads the persisted active period. Unknown persisted values are ignored.
func (s *PeriodService) Load(ctx context.Context) error {
	if s.settings == nil {
		return nil
	}
	value, ok, err := s.settings.GetSetting(ctx, models.SettingActivePeriod)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !s.Exists(value) {
		s.logger.Warn("ignoring unknown persisted active period", zap.String("period", value))
		return nil
	}
	s.setActive(value)
	return nil
}

func (s *PeriodService) setActive(id string) {
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
}

// ActiveID returns the active period id.
func (s *PeriodService) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Active returns the active period.
func (s *PeriodService) Active() models.AcademicPeriod {
	id := s.ActiveID()
	for _, p := range s.periods {
		if p.ID == id {
			p.Active = true
			return p
		}
	}
	return models.AcademicPeriod{ID: id, Label: id, Active: true}
}

// List returns every configured period with the active flag set.
func (s *PeriodService) List() []models.AcademicPeriod {
	active := s.ActiveID()
	out := make([]models.AcademicPeriod, len(s.periods))
	for i, p := range s.periods {
		p.Active = p.ID == active
		out[i] = p
	}
	return out
}

// Exists reports whether id is a configured period.
func (s *PeriodService) Exists(id string) bool {
	for _, p := range s.periods {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Resolve maps an empty id to the active period and rejects unknown ids.
func (s *PeriodService) Resolve(id string) (string, error) {
	if id == "" {
		return s.ActiveID(), nil
	}
	if !s.Exists(id) {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown academic period %q", id))
	}
	return id, nil
}

// SetActive persists and broadcasts a new active period.
func (s *PeriodService) SetActive(ctx context.Context, id string) (models.AcademicPeriod, error) {
	if !s.Exists(id) {
		return models.AcademicPeriod{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown academic period %q", id))
	}
	if s.settings != nil {
		if err := s.settings.SetSetting(ctx, models.SettingActivePeriod, id); err != nil {
			return models.AcademicPeriod{}, appErrors.FromError(err)
		}
	}
	s.setActive(id)
	s.logger.Info("active period changed", zap.String("period", id))

	if s.broker != nil {
		event := models.SlotEvent{Type: models.EventActivePeriodChanged, Period: models.SettingsChannel, ActivePeriod: id, OccurredAt: time.Now().UTC()}
		if err := s.broker.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish period change", zap.Error(err))
		}
	}
	return s.Active(), nil
}

// Watch follows period changes made by other instances until ctx ends.
func (s *PeriodService) Watch(ctx context.Context) {
	if s.broker == nil {
		return
	}
	events, cancel, err := s.broker.Subscribe(ctx, models.SettingsChannel)
	if err != nil {
		s.logger.Warn("period watch unavailable", zap.Error(err))
		return
	}
	defer cancel()
	for event := range events {
		if event.Type != models.EventActivePeriodChanged || !s.Exists(event.ActivePeriod) {
			continue
		}
		if event.ActivePeriod != s.ActiveID() {
			s.setActive(event.ActivePeriod)
			s.logger.Info("active period refreshed", zap.String("period", event.ActivePeriod))
		}
	}
}
