// Package memory is an in-process implementation of the repositories, used
// for single-instance deployments without Postgres and throughout the tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/pkg/lock"
)

// Store keeps every entity in maps guarded by one RWMutex. Writes to a room's
// bookings are additionally serialized per room through WithRoomLock.
type Store struct {
	mu       sync.RWMutex
	corpuses map[uuid.UUID]*model.Corpus
	rooms    map[uuid.UUID]*model.Room
	bookings map[uuid.UUID]*model.Booking
	outbox   []*model.OutboxEvent

	roomLocks *lock.KeyedMutex
	now       func() time.Time

	Corpuses repository.CorpusRepository
	Rooms    repository.RoomRepository
	Bookings repository.BookingRepository
	Outbox   repository.OutboxRepository
}

func NewStore() *Store {
	s := &Store{
		corpuses:  make(map[uuid.UUID]*model.Corpus),
		rooms:     make(map[uuid.UUID]*model.Room),
		bookings:  make(map[uuid.UUID]*model.Booking),
		roomLocks: lock.NewKeyedMutex(),
		now:       time.Now,
	}
	s.Corpuses = &corpusRepository{s}
	s.Rooms = &roomRepository{s}
	s.Bookings = &bookingRepository{s}
	s.Outbox = &outboxRepository{s}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Events returns a copy of every outbox event in insertion order.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.OutboxEvent, len(s.outbox))
	for i, e := range s.outbox {
		cp := *e
		out[i] = &cp
	}
	return out
}

func copyBooking(b *model.Booking) *model.Booking {
	cp := *b
	return &cp
}

func sortBookings(bookings []*model.Booking) {
	slices.SortFunc(bookings, func(a, b *model.Booking) int {
		if c := cmp.Compare(a.StartAt, b.StartAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
}

// -- corpuses --

type corpusRepository struct{ s *Store }

func (r *corpusRepository) Create(ctx context.Context, corpus *model.Corpus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.corpuses {
		if c.CorpusNumber == corpus.CorpusNumber {
			return repository.ErrDuplicateCorpus
		}
	}
	if corpus.ID == uuid.Nil {
		corpus.ID = uuid.New()
	}
	corpus.CreatedAt = r.s.now()
	corpus.UpdatedAt = corpus.CreatedAt

	cp := *corpus
	r.s.corpuses[corpus.ID] = &cp
	return nil
}

func (r *corpusRepository) Get(ctx context.Context, id uuid.UUID) (*model.Corpus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.corpuses[id]
	if !ok {
		return nil, repository.ErrCorpusNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *corpusRepository) Update(ctx context.Context, corpus *model.Corpus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.corpuses[corpus.ID]
	if !ok {
		return repository.ErrCorpusNotFound
	}
	for id, c := range r.s.corpuses {
		if id != corpus.ID && c.CorpusNumber == corpus.CorpusNumber {
			return repository.ErrDuplicateCorpus
		}
	}
	corpus.CreatedAt = existing.CreatedAt
	corpus.UpdatedAt = r.s.now()

	cp := *corpus
	r.s.corpuses[corpus.ID] = &cp
	return nil
}

func (r *corpusRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.corpuses[id]; !ok {
		return repository.ErrCorpusNotFound
	}
	for _, room := range r.s.rooms {
		if room.CorpusID == id {
			return repository.ErrCorpusInUse
		}
	}
	delete(r.s.corpuses, id)
	return nil
}

func (r *corpusRepository) List(ctx context.Context) ([]*model.Corpus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Corpus, 0, len(r.s.corpuses))
	for _, c := range r.s.corpuses {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.Corpus) int { return a.CorpusNumber - b.CorpusNumber })
	return out, nil
}

// -- rooms --

type roomRepository struct{ s *Store }

func (r *roomRepository) Create(ctx context.Context, room *model.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.corpuses[room.CorpusID]; !ok {
		return repository.ErrCorpusNotFound
	}
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	room.CreatedAt = r.s.now()
	room.UpdatedAt = room.CreatedAt

	cp := *room
	r.s.rooms[room.ID] = &cp
	return nil
}

func (r *roomRepository) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	room, ok := r.s.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *roomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	unlock, err := r.s.roomLocks.Lock(ctx, id.String())
	if err != nil {
		return err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[id]; !ok {
		return repository.ErrRoomNotFound
	}
	for _, b := range r.s.bookings {
		if b.RoomID == id && b.IsActive() {
			return repository.ErrRoomInUse
		}
	}
	for bid, b := range r.s.bookings {
		if b.RoomID == id {
			delete(r.s.bookings, bid)
		}
	}
	delete(r.s.rooms, id)
	return nil
}

func (r *roomRepository) List(ctx context.Context, filters *model.RoomFilters) ([]*model.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Room, 0, len(r.s.rooms))
	for _, room := range r.s.rooms {
		if filters != nil && filters.CorpusID != nil && room.CorpusID != *filters.CorpusID {
			continue
		}
		cp := *room
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.Room) int {
		if a.FloorNumber != b.FloorNumber {
			return a.FloorNumber - b.FloorNumber
		}
		return cmp.Compare(a.RoomName, b.RoomName)
	})
	return out, nil
}
