package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
)

type bookingRepository struct {
	BaseRepository
}

func NewBookingRepository(base BaseRepository) repository.BookingRepository {
	return &bookingRepository{base}
}

const bookingColumns = `id, room_id, patient_id, start_at, end_at, note, status, cancelled_at, created_at, updated_at`

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return getBooking(ctx, r.db, id)
}

func (r *bookingRepository) ListActiveByRoom(ctx context.Context, roomID uuid.UUID) ([]*model.Booking, error) {
	return listActive(ctx, r.db, roomID)
}

func (r *bookingRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, filters *model.BookingFilters) ([]*model.Booking, error) {
	if filters == nil || !filters.IncludeCancelled {
		return listActive(ctx, r.db, roomID)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE room_id = $1 ORDER BY start_at, id`
	var bookings []*model.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, roomID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) ListActiveByRooms(ctx context.Context, roomIDs []uuid.UUID) (map[uuid.UUID][]*model.Booking, error) {
	grouped := make(map[uuid.UUID][]*model.Booking, len(roomIDs))
	if len(roomIDs) == 0 {
		return grouped, nil
	}

	ids := make([]string, len(roomIDs))
	for i, id := range roomIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE room_id = ANY($1::uuid[]) AND status = $2
		ORDER BY room_id, start_at, id
	`
	var bookings []*model.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, pq.Array(ids), model.BookingStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list bookings by rooms: %w", err)
	}
	for _, b := range bookings {
		grouped[b.RoomID] = append(grouped[b.RoomID], b)
	}
	return grouped, nil
}

// WithRoomLock opens a transaction and locks the room row with SELECT ... FOR
// UPDATE, so concurrent writers on the same room queue behind each other
// while other rooms proceed.
func (r *bookingRepository) WithRoomLock(ctx context.Context, roomID uuid.UUID, fn func(tx repository.RoomTx) error) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		room, err := lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		return fn(&roomTx{tx: tx, room: room})
	})
}

type roomTx struct {
	tx   *sqlx.Tx
	room *model.Room
}

func (t *roomTx) Room() *model.Room { return t.room }

func (t *roomTx) ListActive(ctx context.Context) ([]*model.Booking, error) {
	return listActive(ctx, t.tx, t.room.ID)
}

func (t *roomTx) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, err := getBooking(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	if b.RoomID != t.room.ID {
		return nil, repository.ErrBookingNotFound
	}
	return b, nil
}

func (t *roomTx) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, room_id, patient_id, start_at, end_at, note, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.RoomID = t.room.ID
	booking.Status = model.BookingStatusActive
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt

	_, err := t.tx.ExecContext(ctx, query,
		booking.ID,
		booking.RoomID,
		booking.PatientID,
		booking.StartAt,
		booking.EndAt,
		booking.Note,
		booking.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (t *roomTx) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET start_at = $1, end_at = $2, note = $3, updated_at = $4
		WHERE id = $5 AND room_id = $6 AND status = $7
	`
	booking.UpdatedAt = time.Now()

	result, err := t.tx.ExecContext(ctx, query,
		booking.StartAt,
		booking.EndAt,
		booking.Note,
		booking.UpdatedAt,
		booking.ID,
		t.room.ID,
		model.BookingStatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return t.expectOne(ctx, result, booking.ID)
}

func (t *roomTx) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE bookings
		SET status = $1, cancelled_at = $2, updated_at = $2
		WHERE id = $3 AND room_id = $4 AND status = $5
	`
	result, err := t.tx.ExecContext(ctx, query,
		model.BookingStatusCancelled,
		at,
		id,
		t.room.ID,
		model.BookingStatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return t.expectOne(ctx, result, id)
}

// expectOne tells a missing booking apart from one that is already cancelled
// when a guarded UPDATE touched no rows.
func (t *roomTx) expectOne(ctx context.Context, result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	existing, err := t.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsActive() {
		return repository.ErrBookingCancelled
	}
	return repository.ErrBookingNotFound
}

func (t *roomTx) UpdateRoom(ctx context.Context, room *model.Room) error {
	query := `
		UPDATE rooms
		SET room_name = $1, capacity = $2, floor_number = $3, price = $4, updated_at = $5
		WHERE id = $6
	`
	room.UpdatedAt = time.Now()

	_, err := t.tx.ExecContext(ctx, query,
		room.RoomName,
		room.Capacity,
		room.FloorNumber,
		room.Price,
		room.UpdatedAt,
		t.room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	t.room = room
	return nil
}

func (t *roomTx) AddEvent(ctx context.Context, event *model.OutboxEvent) error {
	return insertEvent(ctx, t.tx, event)
}

func getBooking(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking model.Booking
	err := sqlx.GetContext(ctx, q, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func listActive(ctx context.Context, q sqlx.QueryerContext, roomID uuid.UUID) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE room_id = $1 AND status = $2
		ORDER BY start_at, id
	`
	var bookings []*model.Booking
	if err := sqlx.SelectContext(ctx, q, &bookings, query, roomID, model.BookingStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list active bookings: %w", err)
	}
	return bookings, nil
}
