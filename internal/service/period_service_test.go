package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/repository"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
	"github.com/noah-isme/pdb-slot-api/pkg/pubsub"
)

var testPeriods = []models.AcademicPeriod{{ID: "2025-1", Label: "Ganjil"}, {ID: "2025-2", Label: "Genap"}}

func TestPeriodServiceFallbackAndResolve(t *testing.T) {
	svc := NewPeriodService(testPeriods, "unknown", nil, nil, nil)
	assert.Equal(t, "2025-1", svc.ActiveID())

	id, err := svc.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "2025-1", id)

	id, err = svc.Resolve("2025-2")
	require.NoError(t, err)
	assert.Equal(t, "2025-2", id)

	_, err = svc.Resolve("2030-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPeriodServiceSetActivePersistsAndPublishes(t *testing.T) {
	settings := repository.NewMemorySettingsStore()
	events := &recordingBroker{}
	svc := NewPeriodService(testPeriods, "2025-1", settings, events, nil)
	ctx := context.Background()

	period, err := svc.SetActive(ctx, "2025-2")
	require.NoError(t, err)
	assert.Equal(t, models.AcademicPeriod{ID: "2025-2", Label: "Genap", Active: true}, period)

	value, ok, err := settings.GetSetting(ctx, models.SettingActivePeriod)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2025-2", value)

	require.Len(t, events.events, 1)
	assert.Equal(t, models.SettingsChannel, events.events[0].Period)
	assert.Equal(t, "2025-2", events.events[0].ActivePeriod)

	list := svc.List()
	assert.False(t, list[0].Active)
	assert.True(t, list[1].Active)

	_, err = svc.SetActive(ctx, "nope")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	// a fresh instance picks up the persisted value
	reloaded := NewPeriodService(testPeriods, "2025-1", settings, nil, nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, "2025-2", reloaded.ActiveID())
}

func TestPeriodServiceWatchFollowsOtherInstances(t *testing.T) {
	broker := pubsub.NewMemoryBroker(nil)
	t.Cleanup(func() { _ = broker.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	follower := NewPeriodService(testPeriods, "2025-1", nil, broker, nil)
	done := make(chan struct{})
	go func() {
		follower.Watch(ctx)
		close(done)
	}()

	leader := NewPeriodService(testPeriods, "2025-1", nil, broker, nil)
	require.Eventually(t, func() bool {
		_, _ = leader.SetActive(ctx, "2025-2")
		return follower.ActiveID() == "2025-2"
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

type recordingBroker struct {
	events []models.SlotEvent
}

func (b *recordingBroker) Publish(_ context.Context, event models.SlotEvent) error {
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, string) (<-chan models.SlotEvent, func(), error) {
	ch := make(chan models.SlotEvent)
	close(ch)
	return ch, func() {}, nil
}
