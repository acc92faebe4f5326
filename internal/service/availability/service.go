package availability

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/ward-api/internal/engine"
	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/pkg/daterange"
	"github.com/jwalitptl/ward-api/pkg/metrics"
)

type AvailabilityServicer interface {
	Project(ctx context.Context, roomID uuid.UUID, window daterange.Range) (*engine.Snapshot, error)
	BedAssignments(ctx context.Context, roomID uuid.UUID) (*Assignments, error)
}

// BedAssignment is a derived booking to bed mapping. It is never stored.
type BedAssignment struct {
	RoomID    uuid.UUID      `json:"room_id"`
	BookingID uuid.UUID      `json:"booking_id"`
	BedNumber int            `json:"bed_number"`
	StartAt   daterange.Date `json:"start_at"`
	EndAt     daterange.Date `json:"end_at"`
}

type Assignments struct {
	RoomID       uuid.UUID       `json:"room_id"`
	Capacity     int             `json:"capacity"`
	BedsUsed     int             `json:"beds_used"`
	Beds         []BedAssignment `json:"assignments"`
	Unassignable []uuid.UUID     `json:"unassignable"`
}

type Config struct {
	HorizonDays     int
	CacheTTL        time.Duration
	CleanupInterval time.Duration
}

type Service struct {
	rooms    repository.RoomRepository
	bookings repository.BookingRepository
	clock    daterange.Clock
	config   Config
	cache    *cache.Cache
	metrics  *metrics.Metrics
}

func NewService(
	rooms repository.RoomRepository,
	bookings repository.BookingRepository,
	clock daterange.Clock,
	config Config,
	m *metrics.Metrics,
) *Service {
	return &Service{
		rooms:    rooms,
		bookings: bookings,
		clock:    clock,
		config:   config,
		cache:    cache.New(config.CacheTTL, config.CleanupInterval),
		metrics:  m,
	}
}

// Project returns the availability snapshot of a room. Windows longer than
// the configured horizon are cut to the horizon.
func (s *Service) Project(ctx context.Context, roomID uuid.UUID, window daterange.Range) (*engine.Snapshot, error) {
	timer := prometheus.NewTimer(s.metrics.ProjectionLatency)
	defer timer.ObserveDuration()

	room, active, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	window = s.clamp(window)
	stays := model.Stays(active)
	alloc := s.Allocation(room.Engine(), stays)
	snap := engine.Project(room.Engine(), window, stays, alloc, s.clock.Today())
	return &snap, nil
}

func (s *Service) BedAssignments(ctx context.Context, roomID uuid.UUID) (*Assignments, error) {
	room, active, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	alloc := s.Allocation(room.Engine(), model.Stays(active))
	out := &Assignments{
		RoomID:       room.ID,
		Capacity:     room.Capacity,
		BedsUsed:     alloc.BedsUsed,
		Beds:         make([]BedAssignment, 0, len(alloc.Beds)),
		Unassignable: alloc.Unassignable,
	}
	if out.Unassignable == nil {
		out.Unassignable = []uuid.UUID{}
	}
	// active is already in allocation order.
	for _, b := range active {
		bed, ok := alloc.BedOf(b.ID)
		if !ok {
			continue
		}
		out.Beds = append(out.Beds, BedAssignment{
			RoomID:    room.ID,
			BookingID: b.ID,
			BedNumber: bed,
			StartAt:   b.StartAt,
			EndAt:     b.EndAt,
		})
	}
	return out, nil
}

// Allocation returns the bed allocation of stays in room, memoized by the
// room's capacity and the exact stay set.
func (s *Service) Allocation(room engine.Room, stays []engine.Stay) engine.Allocation {
	key := cacheKey(room, stays)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.AllocationCache.WithLabelValues("hit").Inc()
		return v.(engine.Allocation)
	}
	s.metrics.AllocationCache.WithLabelValues("miss").Inc()

	alloc := engine.Allocate(room.Capacity, stays)
	s.cache.SetDefault(key, alloc)
	return alloc
}

// InvalidateRoom drops every cached allocation of the room.
func (s *Service) InvalidateRoom(roomID uuid.UUID) {
	prefix := roomID.String() + "/"
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
		}
	}
}

func (s *Service) load(ctx context.Context, roomID uuid.UUID) (*model.Room, []*model.Booking, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get room: %w", err)
	}
	active, err := s.bookings.ListActiveByRoom(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return room, active, nil
}

func (s *Service) clamp(window daterange.Range) daterange.Range {
	if s.config.HorizonDays > 0 && window.Len() > s.config.HorizonDays {
		window.End = window.Start.AddDays(s.config.HorizonDays - 1)
	}
	return window
}

// cacheKey is "<room id>/<capacity>/<hash of stays>". The allocation is
// order-independent, so the stays are hashed in allocation order.
func cacheKey(room engine.Room, stays []engine.Stay) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, st := range engine.SortStays(stays) {
		h.Write(st.BookingID[:])
		binary.BigEndian.PutUint32(buf[:4], uint32(st.Range.Start))
		binary.BigEndian.PutUint32(buf[4:], uint32(st.Range.End))
		h.Write(buf[:])
	}
	return room.ID.String() + "/" + strconv.Itoa(room.Capacity) + "/" + strconv.FormatUint(h.Sum64(), 16)
}
