package dto

import (
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/scheduling"
)

// CreateSlotRequest is the manual slot entry payload. Day accepts any alias
// understood by scheduling.ParseWeekday; times accept H:MM or HH.MM.
type CreateSlotRequest struct {
	CourseCode     string `json:"course_code" validate:"required,max=32"`
	CourseName     string `json:"course_name" validate:"required,max=200"`
	Credits        int    `json:"credits" validate:"min=0,max=12"`
	SectionCode    string `json:"section_code" validate:"required,max=16"`
	Day            string `json:"day" validate:"required,weekday"`
	StartTime      string `json:"start_time" validate:"required,clock"`
	EndTime        string `json:"end_time" validate:"required,clock"`
	Room           string `json:"room" validate:"required,max=64"`
	AcademicPeriod string `json:"academic_period" validate:"omitempty,max=32"`
}

// ClaimRequest lets an administrator claim on behalf of a lecturer. Lecturers
// always claim for themselves and send an empty body.
type ClaimRequest struct {
	LecturerID string `json:"lecturer_id"`
}

// SlotView is a slot with its derived occupancy fields.
type SlotView struct {
	models.ScheduleSlot
	IsFull    bool `json:"is_full"`
	SeatsLeft int  `json:"seats_left"`
}

// NewSlotView derives the read-only occupancy fields.
func NewSlotView(slot models.ScheduleSlot, maxClaimants int) SlotView {
	left := maxClaimants - len(slot.Claimants)
	if left < 0 {
		left = 0
	}
	return SlotView{ScheduleSlot: slot, IsFull: slot.IsFull(maxClaimants), SeatsLeft: left}
}

// NewSlotViews maps a slice of slots.
func NewSlotViews(slots []models.ScheduleSlot, maxClaimants int) []SlotView {
	views := make([]SlotView, len(slots))
	for i, slot := range slots {
		views[i] = NewSlotView(slot, maxClaimants)
	}
	return views
}

// SlotSummary counts occupancy for the monitoring view of a period.
type SlotSummary struct {
	Period         string  `json:"period"`
	Total          int     `json:"total"`
	Empty          int     `json:"empty"`
	Partial        int     `json:"partial"`
	Full           int     `json:"full"`
	ClaimedSeats   int     `json:"claimed_seats"`
	TotalSeats     int     `json:"total_seats"`
	Lecturers      int     `json:"lecturers"`
	FillPercentage float64 `json:"fill_percentage"`
}

// ImportPreview is the dry-run result of an uploaded file.
type ImportPreview struct {
	Period   string                 `json:"period"`
	Rows     int                    `json:"rows"`
	Accepted []scheduling.Candidate `json:"accepted"`
	Rejected []scheduling.Rejection `json:"rejected"`
}

// ImportCommitRequest carries the candidates confirmed by the administrator.
type ImportCommitRequest struct {
	Period     string                 `json:"period" validate:"omitempty,max=32"`
	Candidates []scheduling.Candidate `json:"candidates" validate:"required,min=1,max=1000"`
}

// ImportCommitResult reports what was persisted.
type ImportCommitResult struct {
	Period   string                 `json:"period"`
	Created  []models.ScheduleSlot  `json:"created"`
	Rejected []scheduling.Rejection `json:"rejected"`
}
