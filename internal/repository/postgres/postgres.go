package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/ward-api/internal/repository"
)

// Store bundles the Postgres repositories over one connection pool.
type Store struct {
	BaseRepository
	Corpuses repository.CorpusRepository
	Rooms    repository.RoomRepository
	Bookings repository.BookingRepository
	Outbox   repository.OutboxRepository
}

func NewStore(db *sqlx.DB) *Store {
	base := NewBaseRepository(db)
	return &Store{
		BaseRepository: base,
		Corpuses:       NewCorpusRepository(base),
		Rooms:          NewRoomRepository(base),
		Bookings:       NewBookingRepository(base),
		Outbox:         NewOutboxRepository(base),
	}
}
