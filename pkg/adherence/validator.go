package adherence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	errMissingPatient = errors.New("patient id required")
	errInvalidPeriod  = errors.New("invalid period")
	errInvalidDays    = errors.New("invalid day count")
)

// ValidationError marks malformed-input failures, which fail fast before
// any computation begins.
type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// PeriodRequest identifies a dose-history lookup.
type PeriodRequest struct {
	PatientID    string
	MedicationID string // empty means all medications
	Start        time.Time
	End          time.Time
}

// Validate checks the request shape. Zero times, reversed ranges and blank
// patient ids are configuration mistakes, not data conditions.
func (r PeriodRequest) Validate() error {
	if strings.TrimSpace(r.PatientID) == "" {
		return ValidationError{reason: errMissingPatient}
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return ValidationError{reason: fmt.Errorf("period start and end required: %w", errInvalidPeriod)}
	}
	if !r.End.After(r.Start) {
		return ValidationError{reason: fmt.Errorf("period end must follow start: %w", errInvalidPeriod)}
	}
	return nil
}

// ValidateDays bounds a forecast horizon.
func ValidateDays(days int) error {
	if days < 1 || days > 90 {
		return ValidationError{reason: fmt.Errorf("forecast days must be in [1,90], got %d: %w", days, errInvalidDays)}
	}
	return nil
}
