// Package ward administers corpuses and the rooms inside them.
package ward

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/engine"
	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/internal/service/roomlock"
	"github.com/jwalitptl/ward-api/pkg/logger"
)

var (
	ErrCapacityTooLow  = errors.New("capacity too low for the room's active bookings")
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
)

// CapacityError reports the bookings that would lose their bed under the
// requested capacity.
type CapacityError struct {
	Capacity     int
	Unassignable []uuid.UUID
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %d booking(s) would not fit into %d bed(s)", ErrCapacityTooLow, len(e.Unassignable), e.Capacity)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityTooLow }

type WardServicer interface {
	CreateCorpus(ctx context.Context, req *model.CreateCorpusRequest) (*model.Corpus, error)
	GetCorpus(ctx context.Context, id uuid.UUID) (*model.Corpus, error)
	ListCorpuses(ctx context.Context) ([]*model.Corpus, error)
	UpdateCorpus(ctx context.Context, id uuid.UUID, req *model.UpdateCorpusRequest) (*model.Corpus, error)
	DeleteCorpus(ctx context.Context, id uuid.UUID) error

	CreateRoom(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*model.Room, error)
	ListRooms(ctx context.Context, filters *model.RoomFilters) ([]*model.Room, error)
	UpdateRoom(ctx context.Context, id uuid.UUID, req *model.UpdateRoomRequest) (*model.Room, error)
	DeleteRoom(ctx context.Context, id uuid.UUID) error
}

// RoomInvalidator drops cached per-room computations.
type RoomInvalidator interface {
	InvalidateRoom(roomID uuid.UUID)
}

type Service struct {
	corpuses    repository.CorpusRepository
	rooms       repository.RoomRepository
	guard       *roomlock.Guard
	invalidator RoomInvalidator
	logger      *logger.Logger
}

func NewService(
	corpuses repository.CorpusRepository,
	rooms repository.RoomRepository,
	guard *roomlock.Guard,
	invalidator RoomInvalidator,
	log *logger.Logger,
) *Service {
	return &Service{
		corpuses:    corpuses,
		rooms:       rooms,
		guard:       guard,
		invalidator: invalidator,
		logger:      log,
	}
}

func (s *Service) CreateCorpus(ctx context.Context, req *model.CreateCorpusRequest) (*model.Corpus, error) {
	corpus := &model.Corpus{
		CorpusNumber: req.CorpusNumber,
		TotalRooms:   req.TotalRooms,
		Description:  req.Description,
	}
	if err := s.corpuses.Create(ctx, corpus); err != nil {
		return nil, fmt.Errorf("failed to create corpus: %w", err)
	}
	s.logger.Info("Corpus created", "corpus_id", corpus.ID.String(), "corpus_number", corpus.CorpusNumber)
	return corpus, nil
}

func (s *Service) GetCorpus(ctx context.Context, id uuid.UUID) (*model.Corpus, error) {
	corpus, err := s.corpuses.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get corpus: %w", err)
	}
	return corpus, nil
}

func (s *Service) ListCorpuses(ctx context.Context) ([]*model.Corpus, error) {
	corpuses, err := s.corpuses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpuses: %w", err)
	}
	return corpuses, nil
}

func (s *Service) UpdateCorpus(ctx context.Context, id uuid.UUID, req *model.UpdateCorpusRequest) (*model.Corpus, error) {
	corpus, err := s.corpuses.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get corpus: %w", err)
	}
	if req.CorpusNumber != nil {
		corpus.CorpusNumber = *req.CorpusNumber
	}
	if req.TotalRooms != nil {
		corpus.TotalRooms = *req.TotalRooms
	}
	if req.Description != nil {
		corpus.Description = *req.Description
	}
	if err := s.corpuses.Update(ctx, corpus); err != nil {
		return nil, fmt.Errorf("failed to update corpus: %w", err)
	}
	return corpus, nil
}

func (s *Service) DeleteCorpus(ctx context.Context, id uuid.UUID) error {
	if err := s.corpuses.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete corpus: %w", err)
	}
	s.logger.Info("Corpus deleted", "corpus_id", id.String())
	return nil
}

// priceScale matches the NUMERIC(12,2) price column.
const priceScale = 2

func (s *Service) CreateRoom(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error) {
	if req.Capacity < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCapacity, req.Capacity)
	}
	room := &model.Room{
		CorpusID:    req.CorpusID,
		RoomName:    req.RoomName,
		Capacity:    req.Capacity,
		FloorNumber: req.FloorNumber,
		Price:       req.Price.Round(priceScale),
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	s.logger.Info("Room created", "room_id", room.ID.String(), "corpus_id", room.CorpusID.String(), "capacity", room.Capacity)
	return room, nil
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	room, err := s.rooms.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (s *Service) ListRooms(ctx context.Context, filters *model.RoomFilters) ([]*model.Room, error) {
	rooms, err := s.rooms.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// UpdateRoom runs under the room lock so that a capacity change is checked
// against the same booking set booking writers see.
func (s *Service) UpdateRoom(ctx context.Context, id uuid.UUID, req *model.UpdateRoomRequest) (*model.Room, error) {
	var updated *model.Room
	err := s.guard.Do(ctx, id, func(tx repository.RoomTx) error {
		room := *tx.Room()
		if req.RoomName != nil {
			room.RoomName = *req.RoomName
		}
		if req.FloorNumber != nil {
			room.FloorNumber = *req.FloorNumber
		}
		if req.Price != nil {
			room.Price = req.Price.Round(priceScale)
		}
		if req.Capacity != nil && *req.Capacity != room.Capacity {
			if *req.Capacity < 1 {
				return fmt.Errorf("%w, got %d", ErrInvalidCapacity, *req.Capacity)
			}
			if *req.Capacity < room.Capacity {
				active, err := tx.ListActive(ctx)
				if err != nil {
					return fmt.Errorf("failed to list bookings: %w", err)
				}
				alloc := engine.Allocate(*req.Capacity, model.Stays(active))
				if !alloc.Feasible() {
					return &CapacityError{Capacity: *req.Capacity, Unassignable: alloc.Unassignable}
				}
			}
			room.Capacity = *req.Capacity
		}
		if err := tx.UpdateRoom(ctx, &room); err != nil {
			return fmt.Errorf("failed to update room: %w", err)
		}
		updated = &room
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.InvalidateRoom(id)
	return updated, nil
}

func (s *Service) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.guard.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.rooms.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	s.invalidator.InvalidateRoom(id)
	s.logger.Info("Room deleted", "room_id", id.String())
	return nil
}
