package offline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed offline message repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

func (r *PGRepository) Insert(ctx context.Context, userID int64, message string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO offlinemessage (userid, message) VALUES ($1, $2)`, userID, message)
	if err != nil {
		return fmt.Errorf("insert offline message: %w", err)
	}
	return nil
}

func (r *PGRepository) Query(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT message FROM offlinemessage WHERE userid = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query offline messages: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("scan offline message row: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offline message rows: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Remove(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM offlinemessage WHERE userid = $1`, userID); err != nil {
		return fmt.Errorf("remove offline messages: %w", err)
	}
	return nil
}
