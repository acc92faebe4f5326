// Package roomlock serializes writers of a single room across the
// application lock and the store's room transaction.
package roomlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/pkg/lock"
	"github.com/jwalitptl/ward-api/pkg/metrics"
)

type Guard struct {
	locker   lock.Locker
	bookings repository.BookingRepository
	metrics  *metrics.Metrics
}

func NewGuard(locker lock.Locker, bookings repository.BookingRepository, m *metrics.Metrics) *Guard {
	return &Guard{locker: locker, bookings: bookings, metrics: m}
}

func Key(roomID uuid.UUID) string {
	return "room:" + roomID.String()
}

// Lock takes only the application lock on the room.
func (g *Guard) Lock(ctx context.Context, roomID uuid.UUID) (func(), error) {
	start := time.Now()
	unlock, err := g.locker.Lock(ctx, Key(roomID))
	g.metrics.LockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to lock room %s: %w", roomID, err)
	}
	return unlock, nil
}

// Do runs fn inside the room's store transaction while holding the
// application lock.
func (g *Guard) Do(ctx context.Context, roomID uuid.UUID, fn func(tx repository.RoomTx) error) error {
	unlock, err := g.Lock(ctx, roomID)
	if err != nil {
		return err
	}
	defer unlock()
	return g.bookings.WithRoomLock(ctx, roomID, fn)
}
