package friend

import (
	"fmt"

	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/relaychat-im/relaychat-server/internal/user"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed friend repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

func (r *PGRepository) Add(ctx context.Context, userID, friendID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO friend (userid, friendid) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, friendID,
	)
	if err != nil {
		return fmt.Errorf("insert friend: %w", err)
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, userID int64) ([]user.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT a.id, a.name, a.password, a.state
		 FROM "user" a
		 INNER JOIN friend b ON a.id = b.friendid
		 WHERE b.userid = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Password, &u.State); err != nil {
			return nil, fmt.Errorf("scan friend row: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend rows: %w", err)
	}
	return out, nil
}
