package model

// Corpus is a building that contains rooms.
type Corpus struct {
	Base
	CorpusNumber int    `db:"corpus_number" json:"corpus_number"`
	TotalRooms   int    `db:"total_rooms" json:"total_rooms"`
	Description  string `db:"description" json:"description"`
}

type CreateCorpusRequest struct {
	CorpusNumber int    `json:"corpus_number" binding:"required,min=1"`
	TotalRooms   int    `json:"total_rooms" binding:"min=0"`
	Description  string `json:"description" binding:"max=1000"`
}

type UpdateCorpusRequest struct {
	CorpusNumber *int    `json:"corpus_number" binding:"omitempty,min=1"`
	TotalRooms   *int    `json:"total_rooms" binding:"omitempty,min=0"`
	Description  *string `json:"description" binding:"omitempty,max=1000"`
}
