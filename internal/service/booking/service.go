package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/engine"
	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/internal/service/roomlock"
	"github.com/jwalitptl/ward-api/pkg/daterange"
	"github.com/jwalitptl/ward-api/pkg/logger"
	"github.com/jwalitptl/ward-api/pkg/metrics"
)

type BookingServicer interface {
	Create(ctx context.Context, roomID uuid.UUID, req *model.CreateBookingRequest) (*model.BookingWithBed, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateBookingRequest) (*model.BookingWithBed, error)
	Cancel(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*model.BookingWithBed, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID, filters *model.BookingFilters) ([]*model.BookingWithBed, error)
	Validate(ctx context.Context, req *model.ValidateBookingRequest) (engine.Decision, error)
}

// Allocations computes and caches bed allocations. It is implemented by the
// availability service.
type Allocations interface {
	Allocation(room engine.Room, stays []engine.Stay) engine.Allocation
	InvalidateRoom(roomID uuid.UUID)
}

type Service struct {
	rooms       repository.RoomRepository
	bookings    repository.BookingRepository
	guard       *roomlock.Guard
	allocations Allocations
	validator   *engine.ConflictValidator
	logger      *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(
	rooms repository.RoomRepository,
	bookings repository.BookingRepository,
	guard *roomlock.Guard,
	allocations Allocations,
	clock daterange.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
	opts ...engine.ValidatorOption,
) *Service {
	return &Service{
		rooms:       rooms,
		bookings:    bookings,
		guard:       guard,
		allocations: allocations,
		validator:   engine.NewConflictValidator(clock, opts...),
		logger:      log,
		metrics:     m,
		now:         time.Now,
	}
}

func (s *Service) Create(ctx context.Context, roomID uuid.UUID, req *model.CreateBookingRequest) (*model.BookingWithBed, error) {
	booking := &model.Booking{
		Base:      model.Base{ID: uuid.New()},
		RoomID:    roomID,
		PatientID: req.PatientID,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
		Note:      req.Note,
		Status:    model.BookingStatusActive,
	}
	var bed int

	err := s.guard.Do(ctx, roomID, func(tx repository.RoomTx) error {
		active, err := tx.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list bookings: %w", err)
		}

		decision := s.decide("create", tx.Room().Capacity, engine.Candidate{
			BookingID: booking.ID,
			Start:     booking.StartAt,
			End:       booking.EndAt,
		}, active, nil)
		if err := decision.Err(); err != nil {
			return err
		}
		bed = decision.BedNumber

		if err := tx.Create(ctx, booking); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return s.addEvent(ctx, tx, model.EventBookingCreated, booking, bed)
	})
	s.record("create", err)
	if err != nil {
		return nil, err
	}

	s.allocations.InvalidateRoom(roomID)
	s.logger.Info("Booking created",
		"booking_id", booking.ID.String(),
		"room_id", roomID.String(),
		"bed_number", bed)
	return &model.BookingWithBed{Booking: booking, BedNumber: bed}, nil
}

// Update changes dates or note of an active booking. Moving a booking to
// another room is a cancel followed by a create.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateBookingRequest) (*model.BookingWithBed, error) {
	current, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	var (
		updated *model.Booking
		bed     int
	)
	err = s.guard.Do(ctx, current.RoomID, func(tx repository.RoomTx) error {
		existing, err := tx.GetBooking(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get booking: %w", err)
		}
		if !existing.IsActive() {
			return repository.ErrBookingCancelled
		}

		next := *existing
		if req.StartAt != nil {
			next.StartAt = *req.StartAt
		}
		if req.EndAt != nil {
			next.EndAt = *req.EndAt
		}
		if req.Note != nil {
			next.Note = *req.Note
		}

		active, err := tx.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list bookings: %w", err)
		}
		prior := existing.Range()
		decision := s.decide("update", tx.Room().Capacity, engine.Candidate{
			BookingID: id,
			Start:     next.StartAt,
			End:       next.EndAt,
			Prior:     &prior,
		}, active, &id)
		if err := decision.Err(); err != nil {
			return err
		}
		bed = decision.BedNumber

		if err := tx.Update(ctx, &next); err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		updated = &next
		return s.addEvent(ctx, tx, model.EventBookingUpdated, updated, bed)
	})
	s.record("update", err)
	if err != nil {
		return nil, err
	}

	s.allocations.InvalidateRoom(updated.RoomID)
	s.logger.Info("Booking updated",
		"booking_id", id.String(),
		"room_id", updated.RoomID.String(),
		"bed_number", bed)
	return &model.BookingWithBed{Booking: updated, BedNumber: bed}, nil
}

// Cancel soft-deletes a booking. A second cancel fails with
// repository.ErrBookingCancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	current, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if !current.IsActive() {
		return nil, repository.ErrBookingCancelled
	}

	var cancelled *model.Booking
	err = s.guard.Do(ctx, current.RoomID, func(tx repository.RoomTx) error {
		existing, err := tx.GetBooking(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get booking: %w", err)
		}
		at := s.now()
		if err := tx.Cancel(ctx, id, at); err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		existing.Status = model.BookingStatusCancelled
		existing.CancelledAt = &at
		existing.UpdatedAt = at
		cancelled = existing
		return s.addEvent(ctx, tx, model.EventBookingCancelled, cancelled, 0)
	})
	s.record("cancel", err)
	if err != nil {
		return nil, err
	}

	s.allocations.InvalidateRoom(current.RoomID)
	s.logger.Info("Booking cancelled", "booking_id", id.String(), "room_id", current.RoomID.String())
	return cancelled, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.BookingWithBed, error) {
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if !b.IsActive() {
		return &model.BookingWithBed{Booking: b}, nil
	}

	beds, err := s.bedsOf(ctx, b.RoomID)
	if err != nil {
		return nil, err
	}
	return &model.BookingWithBed{Booking: b, BedNumber: beds[b.ID]}, nil
}

// ListByRoom returns the room's bookings ordered by start date, each active
// one with its bed number.
func (s *Service) ListByRoom(ctx context.Context, roomID uuid.UUID, filters *model.BookingFilters) ([]*model.BookingWithBed, error) {
	beds, err := s.bedsOf(ctx, roomID)
	if err != nil {
		return nil, err
	}

	list, err := s.bookings.ListByRoom(ctx, roomID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	out := make([]*model.BookingWithBed, 0, len(list))
	for _, b := range list {
		row := &model.BookingWithBed{Booking: b}
		if b.IsActive() {
			row.BedNumber = beds[b.ID]
		}
		out = append(out, row)
	}
	return out, nil
}

// Validate is a dry run of Create, or of Update when req.BookingID is set.
// Rejections are returned as a decision, not as an error.
func (s *Service) Validate(ctx context.Context, req *model.ValidateBookingRequest) (engine.Decision, error) {
	room, err := s.rooms.Get(ctx, req.RoomID)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("failed to get room: %w", err)
	}
	active, err := s.bookings.ListActiveByRoom(ctx, req.RoomID)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("failed to list bookings: %w", err)
	}

	candidate := engine.Candidate{BookingID: uuid.New(), Start: req.StartAt, End: req.EndAt}
	var excluding *uuid.UUID
	if req.BookingID != nil {
		existing, err := s.bookings.Get(ctx, *req.BookingID)
		if err != nil {
			return engine.Decision{}, fmt.Errorf("failed to get booking: %w", err)
		}
		if existing.RoomID != req.RoomID {
			return engine.Decision{}, fmt.Errorf("booking %s is not in room %s: %w", existing.ID, req.RoomID, repository.ErrBookingNotFound)
		}
		if !existing.IsActive() {
			return engine.Decision{}, repository.ErrBookingCancelled
		}
		prior := existing.Range()
		candidate.BookingID = existing.ID
		candidate.Prior = &prior
		excluding = &existing.ID
	}

	return s.decide("validate", room.Capacity, candidate, active, excluding), nil
}

func (s *Service) decide(op string, capacity int, c engine.Candidate, active []*model.Booking, excluding *uuid.UUID) engine.Decision {
	d := s.validator.Validate(capacity, c, model.Stays(active), excluding)
	outcome := "accepted"
	if !d.Accepted {
		outcome = string(d.Reason)
	}
	s.metrics.BookingValidations.WithLabelValues(op, outcome).Inc()
	return d
}

func (s *Service) bedsOf(ctx context.Context, roomID uuid.UUID) (map[uuid.UUID]int, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	active, err := s.bookings.ListActiveByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return s.allocations.Allocation(room.Engine(), model.Stays(active)).Beds, nil
}

func (s *Service) addEvent(ctx context.Context, tx repository.RoomTx, eventType string, b *model.Booking, bed int) error {
	event, err := model.NewBookingEvent(eventType, b, bed, s.now())
	if err != nil {
		return fmt.Errorf("failed to build event: %w", err)
	}
	if err := tx.AddEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

func (s *Service) record(op string, err error) {
	status := "success"
	var rejection *engine.RejectionError
	switch {
	case err == nil:
	case errors.As(err, &rejection):
		status = "rejected"
	default:
		status = "error"
	}
	s.metrics.BookingOperations.WithLabelValues(op, status).Inc()
}
