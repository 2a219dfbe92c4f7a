package booking

import (
	"errors"
	"fmt"

	"github.com/uberswe/zhsbooker/pkg/domain"
)

// Terminal failures of one course attempt. None of them is retried and
// none of them stops the batch.
var (
	ErrCourseNotFound       = errors.New("course not found")
	ErrNoSlotsAvailable     = errors.New("no course entries found")
	ErrAmbiguousSelection   = errors.New("several slots and no detail to choose one")
	ErrNoMatchingSlot       = errors.New("no slot matches the configured detail")
	ErrSlotUnavailable      = errors.New("booking not available yet")
	ErrAuthenticationFailed = errors.New("login rejected")
)

// StepError records the state the sequencer was moving to when a step
// failed.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Classify maps the error of a course attempt to its outcome. A nil error
// is a booking.
func Classify(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeBooked
	case errors.Is(err, ErrCourseNotFound):
		return domain.OutcomeCourseNotFound
	case errors.Is(err, ErrNoSlotsAvailable):
		return domain.OutcomeNoSlotsAvailable
	case errors.Is(err, ErrAmbiguousSelection), errors.Is(err, ErrNoMatchingSlot):
		return domain.OutcomeAmbiguousNoMatch
	case errors.Is(err, ErrSlotUnavailable):
		return domain.OutcomeSlotNotBookableYet
	case errors.Is(err, ErrAuthenticationFailed):
		return domain.OutcomeAuthFailed
	default:
		return domain.OutcomeFailed
	}
}
