package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/ward-api/internal/engine"
)

type Room struct {
	Base
	CorpusID    uuid.UUID       `db:"corpus_id" json:"corpus_id"`
	RoomName    string          `db:"room_name" json:"room_name"`
	Capacity    int             `db:"capacity" json:"capacity"`
	FloorNumber int             `db:"floor_number" json:"floor_number"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

// Engine returns the part of the room the allocation engine works with.
func (r *Room) Engine() engine.Room {
	return engine.Room{ID: r.ID, Capacity: r.Capacity}
}

type CreateRoomRequest struct {
	CorpusID    uuid.UUID       `json:"corpus_id" binding:"required"`
	RoomName    string          `json:"room_name" binding:"required,max=100"`
	Capacity    int             `json:"capacity" binding:"required,min=1"`
	FloorNumber int             `json:"floor_number"`
	Price       decimal.Decimal `json:"price" binding:"min=0"`
}

type UpdateRoomRequest struct {
	RoomName    *string          `json:"room_name" binding:"omitempty,max=100"`
	Capacity    *int             `json:"capacity" binding:"omitempty,min=1"`
	FloorNumber *int             `json:"floor_number"`
	Price       *decimal.Decimal `json:"price" binding:"omitempty,min=0"`
}

type RoomFilters struct {
	CorpusID *uuid.UUID
}
