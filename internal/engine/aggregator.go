package engine

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/pkg/daterange"
)

// RoomBookings is one room with its active stays.
type RoomBookings struct {
	Room     Room
	CorpusID uuid.UUID
	Active   []Stay
}

type RoomOccupancy struct {
	RoomID       uuid.UUID `json:"room_id"`
	CorpusID     uuid.UUID `json:"corpus_id"`
	Capacity     int       `json:"capacity"`
	Occupied     int       `json:"occupied"`
	Available    int       `json:"available"`
	LeavingToday int       `json:"leaving_today"`
}

// OccupancyStats are the totals over a set of rooms plus the per-room rows.
type OccupancyStats struct {
	TotalCapacity int             `json:"total_capacity"`
	Occupied      int             `json:"occupied"`
	Available     int             `json:"available"`
	LeavingToday  int             `json:"leaving_today"`
	Rooms         []RoomOccupancy `json:"rooms"`
}

// SummarizeRoom uses the same day count as Project's current_occupied.
func SummarizeRoom(rb RoomBookings, today daterange.Date) RoomOccupancy {
	occupied := OccupiedOn(today, rb.Active)
	return RoomOccupancy{
		RoomID:       rb.Room.ID,
		CorpusID:     rb.CorpusID,
		Capacity:     rb.Room.Capacity,
		Occupied:     occupied,
		Available:    rb.Room.Capacity - occupied,
		LeavingToday: LeavingOn(today, rb.Active),
	}
}

// Summarize sums SummarizeRoom over rooms.
func Summarize(rooms []RoomBookings, today daterange.Date) OccupancyStats {
	stats := OccupancyStats{Rooms: make([]RoomOccupancy, 0, len(rooms))}
	for _, rb := range rooms {
		row := SummarizeRoom(rb, today)
		stats.Rooms = append(stats.Rooms, row)
		stats.TotalCapacity += row.Capacity
		stats.Occupied += row.Occupied
		stats.Available += row.Available
		stats.LeavingToday += row.LeavingToday
	}
	return stats
}
