package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/engine"
	"github.com/jwalitptl/ward-api/pkg/daterange"
)

type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking reserves one bed in a room for every day from StartAt to EndAt
// inclusive. The bed itself is never stored.
type Booking struct {
	Base
	RoomID      uuid.UUID      `db:"room_id" json:"room_id"`
	PatientID   uuid.UUID      `db:"patient_id" json:"patient_id"`
	StartAt     daterange.Date `db:"start_at" json:"start_at"`
	EndAt       daterange.Date `db:"end_at" json:"end_at"`
	Note        string         `db:"note" json:"note,omitempty"`
	Status      BookingStatus  `db:"status" json:"status"`
	CancelledAt *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusActive
}

func (b *Booking) Range() daterange.Range {
	return daterange.Range{Start: b.StartAt, End: b.EndAt}
}

func (b *Booking) Stay() engine.Stay {
	return engine.Stay{BookingID: b.ID, Range: b.Range()}
}

// Stays converts active bookings to engine stays, skipping cancelled ones.
func Stays(bookings []*Booking) []engine.Stay {
	stays := make([]engine.Stay, 0, len(bookings))
	for _, b := range bookings {
		if b.IsActive() {
			stays = append(stays, b.Stay())
		}
	}
	return stays
}

// BookingWithBed is a booking together with its derived bed number.
type BookingWithBed struct {
	*Booking
	BedNumber int `json:"bed_number,omitempty"`
}

type CreateBookingRequest struct {
	PatientID uuid.UUID      `json:"patient_id" binding:"required"`
	StartAt   daterange.Date `json:"start_at" binding:"required,calendar_date"`
	EndAt     daterange.Date `json:"end_at" binding:"required,calendar_date"`
	Note      string         `json:"note" binding:"max=2000"`
}

type UpdateBookingRequest struct {
	StartAt *daterange.Date `json:"start_at" binding:"omitempty,calendar_date"`
	EndAt   *daterange.Date `json:"end_at" binding:"omitempty,calendar_date"`
	Note    *string         `json:"note" binding:"omitempty,max=2000"`
}

// ValidateBookingRequest is a dry run of a create, or of an edit when
// BookingID is set.
type ValidateBookingRequest struct {
	RoomID    uuid.UUID      `json:"room_id" binding:"required"`
	BookingID *uuid.UUID     `json:"booking_id"`
	StartAt   daterange.Date `json:"start_at" binding:"required,calendar_date"`
	EndAt     daterange.Date `json:"end_at" binding:"required,calendar_date"`
}

type BookingFilters struct {
	IncludeCancelled bool
}
