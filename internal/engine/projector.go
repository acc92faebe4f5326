package engine

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/pkg/daterange"
)

// BedState is the status of one bed over a projection window.
type BedState string

const (
	BedAvailable BedState = "available"
	BedBooked    BedState = "booked"
	BedOccupied  BedState = "occupied"
)

type DayOccupancy struct {
	Date      daterange.Date `json:"date"`
	Occupied  int            `json:"occupied"`
	Available int            `json:"available"`
}

type BedStatus struct {
	BedNumber     int             `json:"bed_number"`
	Status        BedState        `json:"status"`
	OccupiedBy    *uuid.UUID      `json:"occupied_by,omitempty"`
	AvailableFrom *daterange.Date `json:"available_from,omitempty"`
}

// Snapshot is the read model for one room over a window.
type Snapshot struct {
	RoomID          uuid.UUID       `json:"room_id"`
	Window          daterange.Range `json:"date_range"`
	Capacity        int             `json:"capacity"`
	CurrentOccupied int             `json:"current_occupied"`
	Days            []DayOccupancy  `json:"days"`
	Beds            []BedStatus     `json:"per_bed"`
}

// Project builds the availability snapshot of room over window. alloc must be
// the allocation of the room's full active set, not only the stays inside the
// window, so that neighbouring bookings shape available_from.
func Project(room Room, window daterange.Range, active []Stay, alloc Allocation, today daterange.Date) Snapshot {
	snap := Snapshot{
		RoomID:          room.ID,
		Window:          window,
		Capacity:        room.Capacity,
		CurrentOccupied: OccupiedOn(today, active),
	}

	counts := DailyOccupancy(window, active)
	snap.Days = make([]DayOccupancy, len(counts))
	for i, n := range counts {
		snap.Days[i] = DayOccupancy{
			Date:      window.Start.AddDays(i),
			Occupied:  n,
			Available: room.Capacity - n,
		}
	}

	perBed := make(map[int][]Stay, room.Capacity)
	for _, s := range SortStays(active) {
		if bed, ok := alloc.BedOf(s.BookingID); ok {
			perBed[bed] = append(perBed[bed], s)
		}
	}

	scanFrom := daterange.Max(window.Start, today)
	snap.Beds = make([]BedStatus, 0, room.Capacity)
	for bed := 1; bed <= room.Capacity; bed++ {
		snap.Beds = append(snap.Beds, bedStatus(bed, perBed[bed], window, scanFrom))
	}
	return snap
}

// bedStatus expects stays sorted by start and pairwise disjoint, which holds
// for the stays an allocation puts on a single bed.
func bedStatus(bed int, stays []Stay, window daterange.Range, scanFrom daterange.Date) BedStatus {
	status := BedStatus{BedNumber: bed, Status: BedAvailable}

	for _, s := range stays {
		if !s.Range.Overlaps(window) {
			continue
		}
		id := s.BookingID
		status.OccupiedBy = &id
		if s.Range.Covers(window) {
			status.Status = BedOccupied
		} else {
			status.Status = BedBooked
		}
		break
	}

	free := nextFreeDay(stays, scanFrom)
	status.AvailableFrom = &free
	return status
}

func nextFreeDay(stays []Stay, from daterange.Date) daterange.Date {
	day := from
	for _, s := range stays {
		if s.Range.End < day {
			continue
		}
		if s.Range.Start > day {
			break
		}
		day = s.Range.End.AddDays(1)
	}
	return day
}
