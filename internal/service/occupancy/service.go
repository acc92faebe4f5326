package occupancy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/engine"
	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/pkg/daterange"
)

type OccupancyServicer interface {
	SummarizeRoom(ctx context.Context, roomID uuid.UUID) (*engine.RoomOccupancy, error)
	SummarizeCorpus(ctx context.Context, corpusID uuid.UUID) (*engine.OccupancyStats, error)
	SummarizeAll(ctx context.Context) (*engine.OccupancyStats, error)
}

// Service reports today's occupancy. Figures are computed from the current
// active bookings on every call.
type Service struct {
	corpuses repository.CorpusRepository
	rooms    repository.RoomRepository
	bookings repository.BookingRepository
	clock    daterange.Clock
}

func NewService(
	corpuses repository.CorpusRepository,
	rooms repository.RoomRepository,
	bookings repository.BookingRepository,
	clock daterange.Clock,
) *Service {
	return &Service{
		corpuses: corpuses,
		rooms:    rooms,
		bookings: bookings,
		clock:    clock,
	}
}

func (s *Service) SummarizeRoom(ctx context.Context, roomID uuid.UUID) (*engine.RoomOccupancy, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	active, err := s.bookings.ListActiveByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	row := engine.SummarizeRoom(engine.RoomBookings{
		Room:     room.Engine(),
		CorpusID: room.CorpusID,
		Active:   model.Stays(active),
	}, s.clock.Today())
	return &row, nil
}

func (s *Service) SummarizeCorpus(ctx context.Context, corpusID uuid.UUID) (*engine.OccupancyStats, error) {
	if _, err := s.corpuses.Get(ctx, corpusID); err != nil {
		return nil, fmt.Errorf("failed to get corpus: %w", err)
	}
	return s.summarize(ctx, &model.RoomFilters{CorpusID: &corpusID})
}

func (s *Service) SummarizeAll(ctx context.Context) (*engine.OccupancyStats, error) {
	return s.summarize(ctx, nil)
}

func (s *Service) summarize(ctx context.Context, filters *model.RoomFilters) (*engine.OccupancyStats, error) {
	rooms, err := s.rooms.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	ids := make([]uuid.UUID, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	grouped, err := s.bookings.ListActiveByRooms(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	input := make([]engine.RoomBookings, len(rooms))
	for i, r := range rooms {
		input[i] = engine.RoomBookings{
			Room:     r.Engine(),
			CorpusID: r.CorpusID,
			Active:   model.Stays(grouped[r.ID]),
		}
	}
	stats := engine.Summarize(input, s.clock.Today())
	return &stats, nil
}
