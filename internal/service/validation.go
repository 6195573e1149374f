package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/pdb-slot-api/internal/scheduling"
)

// NewValidator returns a validator with the slot-specific tags registered:
// "clock" accepts H:MM / HH:MM / HH.MM and "weekday" accepts any day alias.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := scheduling.NormalizeClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseWeekday(fl.Field().String())
		return err == nil
	})
	return v
}
