package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
)

type roomRepository struct {
	BaseRepository
}

func NewRoomRepository(base BaseRepository) repository.RoomRepository {
	return &roomRepository{base}
}

const roomColumns = `id, corpus_id, room_name, capacity, floor_number, price, created_at, updated_at`

func (r *roomRepository) Create(ctx context.Context, room *model.Room) error {
	query := `
		INSERT INTO rooms (
			id, corpus_id, room_name, capacity, floor_number, price, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		room.ID,
		room.CorpusID,
		room.RoomName,
		room.Capacity,
		room.FloorNumber,
		room.Price,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if isPQCode(err, foreignKeyViolation) {
		return repository.ErrCorpusNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *roomRepository) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	var room model.Room
	err := r.db.GetContext(ctx, &room, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (r *roomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := lockRoom(ctx, tx, id); err != nil {
			return err
		}

		var active int
		query := `SELECT COUNT(*) FROM bookings WHERE room_id = $1 AND status = $2`
		if err := tx.GetContext(ctx, &active, query, id, model.BookingStatusActive); err != nil {
			return fmt.Errorf("failed to count room bookings: %w", err)
		}
		if active > 0 {
			return repository.ErrRoomInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}
		return nil
	})
}

func (r *roomRepository) List(ctx context.Context, filters *model.RoomFilters) ([]*model.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	var args []interface{}
	if filters != nil && filters.CorpusID != nil {
		query += ` WHERE corpus_id = $1`
		args = append(args, *filters.CorpusID)
	}
	query += ` ORDER BY floor_number, room_name`

	var rooms []*model.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// lockRoom takes the row lock that serializes every booking write on a room.
func lockRoom(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1 FOR UPDATE`

	var room model.Room
	err := tx.GetContext(ctx, &room, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock room: %w", err)
	}
	return &room, nil
}
