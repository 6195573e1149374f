package dto

// SetActivePeriodRequest switches the active academic period.
type SetActivePeriodRequest struct {
	PeriodID string `json:"period_id" validate:"required"`
}
