package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
)

type bookingRepository struct{ s *Store }

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (r *bookingRepository) ListActiveByRoom(ctx context.Context, roomID uuid.UUID) ([]*model.Booking, error) {
	return r.ListByRoom(ctx, roomID, nil)
}

func (r *bookingRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, filters *model.BookingFilters) ([]*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	includeCancelled := filters != nil && filters.IncludeCancelled
	out := make([]*model.Booking, 0)
	for _, b := range r.s.bookings {
		if b.RoomID != roomID || (!includeCancelled && !b.IsActive()) {
			continue
		}
		out = append(out, copyBooking(b))
	}
	sortBookings(out)
	return out, nil
}

func (r *bookingRepository) ListActiveByRooms(ctx context.Context, roomIDs []uuid.UUID) (map[uuid.UUID][]*model.Booking, error) {
	wanted := make(map[uuid.UUID]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = struct{}{}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	grouped := make(map[uuid.UUID][]*model.Booking, len(roomIDs))
	for _, b := range r.s.bookings {
		if _, ok := wanted[b.RoomID]; !ok || !b.IsActive() {
			continue
		}
		grouped[b.RoomID] = append(grouped[b.RoomID], copyBooking(b))
	}
	for _, list := range grouped {
		sortBookings(list)
	}
	return grouped, nil
}

// WithRoomLock stages every write made through the RoomTx and applies them
// together only when fn succeeds.
func (r *bookingRepository) WithRoomLock(ctx context.Context, roomID uuid.UUID, fn func(tx repository.RoomTx) error) error {
	unlock, err := r.s.roomLocks.Lock(ctx, roomID.String())
	if err != nil {
		return err
	}
	defer unlock()

	r.s.mu.RLock()
	room, ok := r.s.rooms[roomID]
	var roomCopy model.Room
	if ok {
		roomCopy = *room
	}
	r.s.mu.RUnlock()
	if !ok {
		return repository.ErrRoomNotFound
	}

	tx := &roomTx{s: r.s, room: &roomCopy, staged: make(map[uuid.UUID]*model.Booking)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type roomTx struct {
	s           *Store
	room        *model.Room
	roomChanged bool
	staged      map[uuid.UUID]*model.Booking
	events      []*model.OutboxEvent
}

func (t *roomTx) Room() *model.Room { return t.room }

// lookup returns the staged version of a booking if there is one.
func (t *roomTx) lookup(id uuid.UUID) (*model.Booking, bool) {
	if b, ok := t.staged[id]; ok {
		return b, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[id]
	return b, ok
}

func (t *roomTx) ListActive(ctx context.Context) ([]*model.Booking, error) {
	t.s.mu.RLock()
	out := make([]*model.Booking, 0)
	for id, b := range t.s.bookings {
		if b.RoomID != t.room.ID {
			continue
		}
		if _, ok := t.staged[id]; ok {
			continue
		}
		if b.IsActive() {
			out = append(out, copyBooking(b))
		}
	}
	t.s.mu.RUnlock()

	for _, b := range t.staged {
		if b.IsActive() {
			out = append(out, copyBooking(b))
		}
	}
	sortBookings(out)
	return out, nil
}

func (t *roomTx) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, ok := t.lookup(id)
	if !ok || b.RoomID != t.room.ID {
		return nil, repository.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (t *roomTx) Create(ctx context.Context, booking *model.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.RoomID = t.room.ID
	booking.Status = model.BookingStatusActive
	booking.CreatedAt = t.s.now()
	booking.UpdatedAt = booking.CreatedAt

	t.staged[booking.ID] = copyBooking(booking)
	return nil
}

func (t *roomTx) Update(ctx context.Context, booking *model.Booking) error {
	existing, err := t.activeBooking(booking.ID)
	if err != nil {
		return err
	}
	booking.UpdatedAt = t.s.now()

	next := copyBooking(existing)
	next.StartAt = booking.StartAt
	next.EndAt = booking.EndAt
	next.Note = booking.Note
	next.UpdatedAt = booking.UpdatedAt
	t.staged[next.ID] = next
	return nil
}

func (t *roomTx) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	existing, err := t.activeBooking(id)
	if err != nil {
		return err
	}
	next := copyBooking(existing)
	next.Status = model.BookingStatusCancelled
	next.CancelledAt = &at
	next.UpdatedAt = at
	t.staged[id] = next
	return nil
}

func (t *roomTx) activeBooking(id uuid.UUID) (*model.Booking, error) {
	b, ok := t.lookup(id)
	if !ok || b.RoomID != t.room.ID {
		return nil, repository.ErrBookingNotFound
	}
	if !b.IsActive() {
		return nil, repository.ErrBookingCancelled
	}
	return b, nil
}

func (t *roomTx) UpdateRoom(ctx context.Context, room *model.Room) error {
	room.ID = t.room.ID
	room.UpdatedAt = t.s.now()
	cp := *room
	t.room = &cp
	t.roomChanged = true
	return nil
}

func (t *roomTx) AddEvent(ctx context.Context, event *model.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = t.s.now()
	}
	event.UpdatedAt = event.CreatedAt
	cp := *event
	t.events = append(t.events, &cp)
	return nil
}

func (t *roomTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, b := range t.staged {
		t.s.bookings[id] = b
	}
	if t.roomChanged {
		t.s.rooms[t.room.ID] = t.room
	}
	t.s.outbox = append(t.s.outbox, t.events...)
}
