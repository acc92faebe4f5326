package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/pkg/daterange"
)

// RejectReason classifies an expected, user-facing booking rejection.
type RejectReason string

const (
	ReasonInvalidRange    RejectReason = "invalid_range"
	ReasonPastStartDate   RejectReason = "past_start_date"
	ReasonRoomFullyBooked RejectReason = "room_fully_booked"
)

var (
	ErrInvalidRange    = errors.New("booking start date is after its end date or the stay is too long")
	ErrPastStartDate   = errors.New("booking cannot start in the past")
	ErrRoomFullyBooked = errors.New("room is fully booked")
)

var reasonErrors = map[RejectReason]error{
	ReasonInvalidRange:    ErrInvalidRange,
	ReasonPastStartDate:   ErrPastStartDate,
	ReasonRoomFullyBooked: ErrRoomFullyBooked,
}

// Candidate is a booking being created or edited. Prior is the range the
// booking had before the edit and is nil on create.
type Candidate struct {
	BookingID uuid.UUID
	Start     daterange.Date
	End       daterange.Date
	Prior     *daterange.Range
}

func (c Candidate) isEdit() bool { return c.Prior != nil }

// Decision is the outcome of a validation. Rejections are values, not errors.
type Decision struct {
	Accepted         bool             `json:"accepted"`
	BedNumber        int              `json:"bed_number,omitempty"`
	Reason           RejectReason     `json:"reason,omitempty"`
	ConflictingDates []daterange.Date `json:"conflicting_dates,omitempty"`
}

// Err converts a rejected decision into a *RejectionError; nil when accepted.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &RejectionError{Reason: d.Reason, Dates: d.ConflictingDates}
}

// RejectionError carries a rejected decision across error-returning APIs.
// It unwraps to ErrInvalidRange, ErrPastStartDate or ErrRoomFullyBooked.
type RejectionError struct {
	Reason RejectReason
	Dates  []daterange.Date
}

func (e *RejectionError) Error() string {
	base := reasonErrors[e.Reason]
	if base == nil {
		return string(e.Reason)
	}
	if len(e.Dates) == 0 {
		return base.Error()
	}
	days := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		days[i] = d.String()
	}
	return fmt.Sprintf("%s on %s", base, strings.Join(days, ", "))
}

func (e *RejectionError) Unwrap() error {
	return reasonErrors[e.Reason]
}

// ConflictValidator decides whether a candidate fits into a room.
type ConflictValidator struct {
	clock       daterange.Clock
	maxStayDays int
}

type ValidatorOption func(*ConflictValidator)

// WithMaxStayDays rejects candidates spanning more than days calendar days.
// Zero leaves stays unbounded.
func WithMaxStayDays(days int) ValidatorOption {
	return func(v *ConflictValidator) { v.maxStayDays = days }
}

func NewConflictValidator(clock daterange.Clock, opts ...ValidatorOption) *ConflictValidator {
	v := &ConflictValidator{clock: clock}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks the candidate against the room's other active stays.
// The stay identified by excluding (the candidate's previous version when
// editing) is ignored, as is any stay sharing the candidate's booking id.
func (v *ConflictValidator) Validate(capacity int, c Candidate, active []Stay, excluding *uuid.UUID) Decision {
	if c.Start > c.End {
		return Decision{Reason: ReasonInvalidRange}
	}
	if v.maxStayDays > 0 && int(c.End-c.Start)+1 > v.maxStayDays {
		return Decision{Reason: ReasonInvalidRange}
	}

	today := v.clock.Today()
	if c.Start < today {
		if !c.isEdit() || c.Start != c.Prior.Start {
			return Decision{Reason: ReasonPastStartDate}
		}
	}

	candidate := Stay{BookingID: c.BookingID, Range: daterange.Range{Start: c.Start, End: c.End}}
	stays := make([]Stay, 0, len(active)+1)
	for _, s := range active {
		if s.BookingID == c.BookingID {
			continue
		}
		if excluding != nil && s.BookingID == *excluding {
			continue
		}
		stays = append(stays, s)
	}
	stays = append(stays, candidate)

	if conflicts := overCapacityDays(capacity, candidate.Range, stays); len(conflicts) > 0 {
		return Decision{Reason: ReasonRoomFullyBooked, ConflictingDates: conflicts}
	}

	alloc := Allocate(capacity, stays)
	bed, ok := alloc.BedOf(c.BookingID)
	if !ok {
		// Greedy allocation places every stay once no day exceeds capacity.
		return Decision{Reason: ReasonRoomFullyBooked, ConflictingDates: []daterange.Date{c.Start}}
	}
	return Decision{Accepted: true, BedNumber: bed}
}

func overCapacityDays(capacity int, window daterange.Range, stays []Stay) []daterange.Date {
	var days []daterange.Date
	for i, n := range DailyOccupancy(window, stays) {
		if n > capacity {
			days = append(days, window.Start.AddDays(i))
		}
	}
	return days
}
