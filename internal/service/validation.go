package service

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendease-api/internal/models"
)

// NewValidator returns a validator with the attendance rules registered and
// field errors reported by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		switch models.AttendanceStatus(fl.Field().String()) {
		case models.AttendanceStatusPresent, models.AttendanceStatusAbsent, models.AttendanceStatusOff:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("iso_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		day := fl.Field().String()
		for _, w := range models.Weekdays {
			if w == day {
				return true
			}
		}
		return false
	})
	return v
}

// parseDate parses an optional YYYY-MM-DD query value in loc.
func parseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(models.DateLayout, raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
