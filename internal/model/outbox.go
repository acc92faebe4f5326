package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

const (
	EventBookingCreated   = "ward.booking.created"
	EventBookingUpdated   = "ward.booking.updated"
	EventBookingCancelled = "ward.booking.cancelled"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	AggregateID  uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// BookingEvent is the payload of every ward.booking.* event.
type BookingEvent struct {
	BookingID uuid.UUID     `json:"booking_id"`
	RoomID    uuid.UUID     `json:"room_id"`
	PatientID uuid.UUID     `json:"patient_id"`
	StartAt   string        `json:"start_at"`
	EndAt     string        `json:"end_at"`
	Status    BookingStatus `json:"status"`
	BedNumber int           `json:"bed_number,omitempty"`
	At        time.Time     `json:"at"`
}

// NewBookingEvent builds an outbox event for b.
func NewBookingEvent(eventType string, b *Booking, bed int, at time.Time) (*OutboxEvent, error) {
	payload, err := json.Marshal(BookingEvent{
		BookingID: b.ID,
		RoomID:    b.RoomID,
		PatientID: b.PatientID,
		StartAt:   b.StartAt.String(),
		EndAt:     b.EndAt.String(),
		Status:    b.Status,
		BedNumber: bed,
		At:        at,
	})
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: b.ID,
		Payload:     payload,
		Status:      OutboxStatusPending,
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}
