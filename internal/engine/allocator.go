// Package engine holds the pure bed-level computations: allocation, conflict
// validation, availability projection and occupancy aggregation. Nothing in
// here performs I/O or keeps state between calls, so every function is safe
// to call from any number of goroutines.
package engine

import (
	"bytes"
	"cmp"
	"container/heap"
	"slices"

	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/pkg/daterange"
)

// Stay is the part of a booking the engine cares about.
type Stay struct {
	BookingID uuid.UUID       `json:"booking_id"`
	Range     daterange.Range `json:"range"`
}

// Room is the capacity-bearing unit bookings are allocated into.
type Room struct {
	ID       uuid.UUID `json:"id"`
	Capacity int       `json:"capacity"`
}

// Allocation maps every assignable booking to a bed number in 1..capacity.
type Allocation struct {
	Beds         map[uuid.UUID]int `json:"beds"`
	Unassignable []uuid.UUID       `json:"unassignable"`
	BedsUsed     int               `json:"beds_used"`
}

// Feasible reports whether every booking got a bed.
func (a Allocation) Feasible() bool {
	return len(a.Unassignable) == 0
}

func (a Allocation) BedOf(id uuid.UUID) (int, bool) {
	bed, ok := a.Beds[id]
	return bed, ok
}

// Allocate assigns beds greedily in (start, booking id) order, always taking
// the lowest-numbered bed that is free before the booking starts. Bookings
// that cannot be placed without exceeding capacity are reported in
// Unassignable and do not consume a bed. Booking ids must be unique.
func Allocate(capacity int, stays []Stay) Allocation {
	sorted := SortStays(stays)
	alloc := Allocation{Beds: make(map[uuid.UUID]int, len(sorted))}

	busy := &busyBeds{}
	free := &freeBeds{}
	next := 1

	for _, s := range sorted {
		for busy.Len() > 0 && (*busy)[0].end < s.Range.Start {
			released := heap.Pop(busy).(busyBed)
			heap.Push(free, released.bed)
		}

		var bed int
		switch {
		case free.Len() > 0:
			bed = heap.Pop(free).(int)
		case next <= capacity:
			bed = next
			next++
		default:
			alloc.Unassignable = append(alloc.Unassignable, s.BookingID)
			continue
		}

		alloc.Beds[s.BookingID] = bed
		heap.Push(busy, busyBed{bed: bed, end: s.Range.End})
	}

	alloc.BedsUsed = next - 1
	return alloc
}

// SortStays returns a copy ordered by start date, then booking id.
func SortStays(stays []Stay) []Stay {
	sorted := slices.Clone(stays)
	slices.SortFunc(sorted, compareStays)
	return sorted
}

func compareStays(a, b Stay) int {
	if c := cmp.Compare(a.Range.Start, b.Range.Start); c != 0 {
		return c
	}
	return bytes.Compare(a.BookingID[:], b.BookingID[:])
}

type busyBed struct {
	bed int
	end daterange.Date
}

// busyBeds is a min-heap on end date, lowest bed number first on ties.
type busyBeds []busyBed

func (h busyBeds) Len() int { return len(h) }
func (h busyBeds) Less(i, j int) bool {
	if h[i].end != h[j].end {
		return h[i].end < h[j].end
	}
	return h[i].bed < h[j].bed
}
func (h busyBeds) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *busyBeds) Push(x interface{}) { *h = append(*h, x.(busyBed)) }
func (h *busyBeds) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type freeBeds []int

func (h freeBeds) Len() int            { return len(h) }
func (h freeBeds) Less(i, j int) bool  { return h[i] < h[j] }
func (h freeBeds) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *freeBeds) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *freeBeds) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
