// Package domain contains the booking models shared by the loader, the
// sequencer and the command line.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Config represents the configuration file structure
type Config struct {
	Login   Login   `json:"login"`
	Bank    Bank    `json:"bank"`
	Courses Courses `json:"courses"`
}

// Login is the identity used on the registration form.
type Login struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
	Country  string `json:"country"`
}

// Bank holds the direct debit details entered on the payment form.
type Bank struct {
	IBAN string `json:"IBAN"`
	BIC  string `json:"BIC"`
}

// Criteria selects one slot when a course offers several.
// An empty Detail means no disambiguation criteria.
type Criteria struct {
	Detail string `json:"detail,omitempty"`
}

// IsEmpty reports whether the criteria carry no detail substring.
func (c Criteria) IsEmpty() bool {
	return c.Detail == ""
}

// Course is one configured booking target. Its position in Courses is the
// booking order.
type Course struct {
	Name     string
	Criteria Criteria
}

// Courses keeps the courses in the order they appear in the configuration
// file. It is encoded as a JSON object keyed by course name.
type Courses []Course

// UnmarshalJSON decodes the courses object in document order. A repeated
// name keeps its first position and takes the last criteria.
func (cs *Courses) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*cs = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("courses must be an object keyed by course name")
	}

	var out Courses
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected course key %v", tok)
		}

		var crit Criteria
		if err := dec.Decode(&crit); err != nil {
			return fmt.Errorf("course %q: %w", name, err)
		}

		if i, dup := index[name]; dup {
			out[i].Criteria = crit
			continue
		}
		index[name] = len(out)
		out = append(out, Course{Name: name, Criteria: crit})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*cs = out
	return nil
}

// MarshalJSON encodes the courses as an object, preserving order.
func (cs Courses) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Criteria)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Availability is the booking state shown for a slot.
type Availability string

const (
	AvailabilityBookable   Availability = "bookable"
	AvailabilityNotYetOpen Availability = "not-yet-open"
	AvailabilityClosed     Availability = "closed"
)

// Slot is one bookable time or group offered for a course. It only exists
// while the course page is open.
type Slot struct {
	Index        int // position in display order
	Detail       string
	Availability Availability
}

// Outcome is the final state of one course attempt.
type Outcome string

const (
	OutcomeBooked             Outcome = "booked"
	OutcomeRehearsed          Outcome = "rehearsed"
	OutcomeCourseNotFound     Outcome = "course-not-found"
	OutcomeNoSlotsAvailable   Outcome = "no-slots-available"
	OutcomeSlotNotBookableYet Outcome = "slot-not-bookable-yet"
	OutcomeAmbiguousNoMatch   Outcome = "ambiguous-no-match"
	OutcomeAuthFailed         Outcome = "auth-failed"
	OutcomeFailed             Outcome = "failed"
)

// Result represents the result of a course booking attempt
type Result struct {
	Course  string
	Outcome Outcome
	Reached string // last state reached by the sequencer
	Slot    *Slot
	Error   error
}

// Success reports whether the attempt ran to the end of its workflow.
func (r Result) Success() bool {
	return r.Outcome == OutcomeBooked || r.Outcome == OutcomeRehearsed
}
