package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/ward-api/internal/engine"
	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/internal/repository/memory"
	"github.com/jwalitptl/ward-api/pkg/daterange"
	"github.com/jwalitptl/ward-api/pkg/metrics"
)

type fixture struct {
	store *memory.Store
	svc   *Service
	m     *metrics.Metrics
	room  *model.Room
}

func setup(t *testing.T, capacity int, horizon int) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()
	corpus := &model.Corpus{CorpusNumber: 1}
	require.NoError(t, s.Corpuses.Create(ctx, corpus))
	room := &model.Room{CorpusID: corpus.ID, RoomName: "101", Capacity: capacity}
	require.NoError(t, s.Rooms.Create(ctx, room))

	m := metrics.NewNop()
	svc := NewService(s.Rooms, s.Bookings, daterange.FixedClock(daterange.MustParse("2025-01-01")), Config{
		HorizonDays:     horizon,
		CacheTTL:        time.Minute,
		CleanupInterval: time.Minute,
	}, m)
	return &fixture{store: s, svc: svc, m: m, room: room}
}

func (f *fixture) book(t *testing.T, start, end string) *model.Booking {
	t.Helper()
	b := &model.Booking{
		PatientID: uuid.New(),
		StartAt:   daterange.MustParse(start),
		EndAt:     daterange.MustParse(end),
	}
	require.NoError(t, f.store.Bookings.WithRoomLock(context.Background(), f.room.ID, func(tx repository.RoomTx) error {
		return tx.Create(context.Background(), b)
	}))
	return b
}

func window(start, end string) daterange.Range {
	return daterange.Range{Start: daterange.MustParse(start), End: daterange.MustParse(end)}
}

func TestProject(t *testing.T) {
	f := setup(t, 2, 365)
	first := f.book(t, "2025-01-01", "2025-01-10")
	f.book(t, "2025-01-03", "2025-01-04")

	snap, err := f.svc.Project(context.Background(), f.room.ID, window("2025-01-02", "2025-01-05"))
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Capacity)
	assert.Equal(t, 1, snap.CurrentOccupied)
	require.Len(t, snap.Days, 4)
	assert.Equal(t, []int{1, 2, 2, 1}, []int{snap.Days[0].Occupied, snap.Days[1].Occupied, snap.Days[2].Occupied, snap.Days[3].Occupied})
	for _, d := range snap.Days {
		assert.Equal(t, snap.Capacity, d.Occupied+d.Available)
	}

	require.Len(t, snap.Beds, 2)
	assert.Equal(t, engine.BedOccupied, snap.Beds[0].Status)
	assert.Equal(t, first.ID, *snap.Beds[0].OccupiedBy)
	assert.Equal(t, daterange.MustParse("2025-01-11"), *snap.Beds[0].AvailableFrom)
	assert.Equal(t, engine.BedBooked, snap.Beds[1].Status)
	assert.Equal(t, daterange.MustParse("2025-01-02"), *snap.Beds[1].AvailableFrom)
}

func TestProjectClampsToHorizon(t *testing.T) {
	f := setup(t, 1, 7)

	snap, err := f.svc.Project(context.Background(), f.room.ID, window("2025-01-01", "2025-12-31"))
	require.NoError(t, err)
	assert.Len(t, snap.Days, 7)
	assert.Equal(t, daterange.MustParse("2025-01-07"), snap.Window.End)
}

func TestProjectUnknownRoom(t *testing.T) {
	f := setup(t, 1, 7)
	_, err := f.svc.Project(context.Background(), uuid.New(), window("2025-01-01", "2025-01-02"))
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestBedAssignments(t *testing.T) {
	f := setup(t, 1, 365)
	a := f.book(t, "2025-01-01", "2025-01-02")
	b := f.book(t, "2025-01-03", "2025-01-04")

	got, err := f.svc.BedAssignments(context.Background(), f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.BedsUsed)
	require.Len(t, got.Beds, 2)
	assert.Equal(t, a.ID, got.Beds[0].BookingID)
	assert.Equal(t, b.ID, got.Beds[1].BookingID)
	assert.Equal(t, 1, got.Beds[0].BedNumber)
	assert.Equal(t, 1, got.Beds[1].BedNumber)
	assert.Empty(t, got.Unassignable)
}

func TestAllocationCache(t *testing.T) {
	f := setup(t, 2, 365)
	f.book(t, "2025-01-01", "2025-01-02")
	ctx := context.Background()

	_, err := f.svc.BedAssignments(ctx, f.room.ID)
	require.NoError(t, err)
	_, err = f.svc.BedAssignments(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.AllocationCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.AllocationCache.WithLabelValues("hit")))

	// A changed booking set misses even without invalidation.
	f.book(t, "2025-01-02", "2025-01-03")
	_, err = f.svc.BedAssignments(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.AllocationCache.WithLabelValues("miss")))

	assert.Equal(t, 2, f.svc.cache.ItemCount())
	f.svc.InvalidateRoom(f.room.ID)
	assert.Equal(t, 0, f.svc.cache.ItemCount())
}

func TestCacheKeyIgnoresOrder(t *testing.T) {
	room := engine.Room{ID: uuid.New(), Capacity: 2}
	s1 := engine.Stay{BookingID: uuid.New(), Range: window("2025-01-01", "2025-01-02")}
	s2 := engine.Stay{BookingID: uuid.New(), Range: window("2025-01-02", "2025-01-03")}

	assert.Equal(t, cacheKey(room, []engine.Stay{s1, s2}), cacheKey(room, []engine.Stay{s2, s1}))
	assert.NotEqual(t, cacheKey(room, []engine.Stay{s1}), cacheKey(room, []engine.Stay{s1, s2}))

	bigger := room
	bigger.Capacity = 3
	assert.NotEqual(t, cacheKey(room, []engine.Stay{s1}), cacheKey(bigger, []engine.Stay{s1}))
}
