package models

import "time"

// SlotEventType names a registry mutation.
type SlotEventType string

const (
	EventSlotCreated         SlotEventType = "slot_created"
	EventSlotDeleted         SlotEventType = "slot_deleted"
	EventSlotClaimed         SlotEventType = "slot_claimed"
	EventSlotUnclaimed       SlotEventType = "slot_unclaimed"
	EventClaimantUpdated     SlotEventType = "claimant_updated"
	EventActivePeriodChanged SlotEventType = "active_period_changed"
)

// SettingsChannel carries events that are not scoped to a single period.
const SettingsChannel = "_settings"

// SlotEvent is published on the period channel after a successful mutation.
type SlotEvent struct {
	Type       SlotEventType `json:"type"`
	Period     string        `json:"period"`
	SlotID     string        `json:"slot_id,omitempty"`
	LecturerID string        `json:"lecturer_id,omitempty"`
	Slot       *ScheduleSlot `json:"slot,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
	RequestID  string        `json:"request_id,omitempty"`

	// ActivePeriod is set on active_period_changed events.
	ActivePeriod string `json:"active_period,omitempty"`
}
