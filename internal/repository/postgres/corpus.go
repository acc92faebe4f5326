package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
)

type corpusRepository struct {
	BaseRepository
}

func NewCorpusRepository(base BaseRepository) repository.CorpusRepository {
	return &corpusRepository{base}
}

const corpusColumns = `id, corpus_number, total_rooms, description, created_at, updated_at`

func (r *corpusRepository) Create(ctx context.Context, corpus *model.Corpus) error {
	query := `
		INSERT INTO corpuses (
			id, corpus_number, total_rooms, description, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	if corpus.ID == uuid.Nil {
		corpus.ID = uuid.New()
	}
	corpus.CreatedAt = time.Now()
	corpus.UpdatedAt = corpus.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		corpus.ID,
		corpus.CorpusNumber,
		corpus.TotalRooms,
		corpus.Description,
		corpus.CreatedAt,
		corpus.UpdatedAt,
	)
	if isPQCode(err, uniqueViolation) {
		return repository.ErrDuplicateCorpus
	}
	if err != nil {
		return fmt.Errorf("failed to create corpus: %w", err)
	}
	return nil
}

func (r *corpusRepository) Get(ctx context.Context, id uuid.UUID) (*model.Corpus, error) {
	query := `SELECT ` + corpusColumns + ` FROM corpuses WHERE id = $1`

	var corpus model.Corpus
	err := r.db.GetContext(ctx, &corpus, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrCorpusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get corpus: %w", err)
	}
	return &corpus, nil
}

func (r *corpusRepository) Update(ctx context.Context, corpus *model.Corpus) error {
	query := `
		UPDATE corpuses
		SET corpus_number = $1, total_rooms = $2, description = $3, updated_at = $4
		WHERE id = $5
	`
	corpus.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		corpus.CorpusNumber,
		corpus.TotalRooms,
		corpus.Description,
		corpus.UpdatedAt,
		corpus.ID,
	)
	if isPQCode(err, uniqueViolation) {
		return repository.ErrDuplicateCorpus
	}
	if err != nil {
		return fmt.Errorf("failed to update corpus: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrCorpusNotFound
	}
	return nil
}

func (r *corpusRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var rooms int
		if err := tx.GetContext(ctx, &rooms, `SELECT COUNT(*) FROM rooms WHERE corpus_id = $1`, id); err != nil {
			return fmt.Errorf("failed to count corpus rooms: %w", err)
		}
		if rooms > 0 {
			return repository.ErrCorpusInUse
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM corpuses WHERE id = $1`, id)
		if isPQCode(err, foreignKeyViolation) {
			return repository.ErrCorpusInUse
		}
		if err != nil {
			return fmt.Errorf("failed to delete corpus: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return repository.ErrCorpusNotFound
		}
		return nil
	})
}

func (r *corpusRepository) List(ctx context.Context) ([]*model.Corpus, error) {
	query := `SELECT ` + corpusColumns + ` FROM corpuses ORDER BY corpus_number`

	var corpuses []*model.Corpus
	if err := r.db.SelectContext(ctx, &corpuses, query); err != nil {
		return nil, fmt.Errorf("failed to list corpuses: %w", err)
	}
	return corpuses, nil
}
