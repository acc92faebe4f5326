package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/model"
)

var (
	ErrCorpusNotFound      = errors.New("corpus not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrCorpusInUse         = errors.New("corpus still has rooms")
	ErrRoomInUse           = errors.New("room still has active bookings")
	ErrBookingCancelled    = errors.New("booking is cancelled")
	ErrDuplicateCorpus     = errors.New("corpus number already exists")
	ErrOutboxEventNotFound = errors.New("outbox event not found")
)

// All repository interfaces in one file
type (
	CorpusRepository interface {
		Create(ctx context.Context, corpus *model.Corpus) error
		Get(ctx context.Context, id uuid.UUID) (*model.Corpus, error)
		Update(ctx context.Context, corpus *model.Corpus) error
		// Delete fails with ErrCorpusInUse while any room references the corpus.
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Corpus, error)
	}

	RoomRepository interface {
		Create(ctx context.Context, room *model.Room) error
		Get(ctx context.Context, id uuid.UUID) (*model.Room, error)
		// Delete fails with ErrRoomInUse while the room has active bookings.
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.RoomFilters) ([]*model.Room, error)
	}

	// BookingRepository is the booking store. Reads take no lock; every write
	// goes through WithRoomLock.
	BookingRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		ListActiveByRoom(ctx context.Context, roomID uuid.UUID) ([]*model.Booking, error)
		ListByRoom(ctx context.Context, roomID uuid.UUID, filters *model.BookingFilters) ([]*model.Booking, error)
		// ListActiveByRooms returns active bookings grouped by room id. Rooms
		// without bookings are absent from the map.
		ListActiveByRooms(ctx context.Context, roomIDs []uuid.UUID) (map[uuid.UUID][]*model.Booking, error)
		// WithRoomLock runs fn while holding the room's write lock. Writes made
		// through the RoomTx are committed only if fn returns nil. It fails
		// with ErrRoomNotFound if the room does not exist.
		WithRoomLock(ctx context.Context, roomID uuid.UUID, fn func(tx RoomTx) error) error
	}

	// RoomTx is the view of one locked room.
	RoomTx interface {
		Room() *model.Room
		ListActive(ctx context.Context) ([]*model.Booking, error)
		GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		Create(ctx context.Context, booking *model.Booking) error
		Update(ctx context.Context, booking *model.Booking) error
		Cancel(ctx context.Context, id uuid.UUID, at time.Time) error
		UpdateRoom(ctx context.Context, room *model.Room) error
		AddEvent(ctx context.Context, event *model.OutboxEvent) error
	}

	OutboxRepository interface {
		// FetchPending returns up to limit events that are pending, or due for
		// retry at now, oldest first.
		FetchPending(ctx context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Pinger reports whether the backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
