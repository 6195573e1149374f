package models

// AcademicPeriod partitions the slot pool. Periods are fixed by configuration.
type AcademicPeriod struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// Room is an entry of the room directory.
type Room struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity,omitempty"`
}

// SettingActivePeriod is the settings key holding the active period id.
const SettingActivePeriod = "active_period"
