package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/relaychat-im/relaychat-server/internal/postgres"
)

// selectColumns lists the columns returned by queries that produce a *User. Every method that scans into a User
// must select these columns in this exact order.
const selectColumns = `id, name, password, state`

// scanUser scans a single row into a *User. The row must contain the columns listed in selectColumns.
func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Password, &u.State); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed user repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

func (r *PGRepository) Create(ctx context.Context, name, password string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO "user" (name, password, state) VALUES ($1, $2, 'offline') RETURNING id`,
		name, password,
	).Scan(&id)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM "user" WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *PGRepository) GetByName(ctx context.Context, name string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM "user" WHERE name = $1`, name)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *PGRepository) SetState(ctx context.Context, id int64, state State) error {
	tag, err := r.db.Exec(ctx, `UPDATE "user" SET state = $1 WHERE id = $2`, state, id)
	if err != nil {
		return fmt.Errorf("update user state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) ResetAllToOffline(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `UPDATE "user" SET state = 'offline' WHERE state != 'offline'`); err != nil {
		return fmt.Errorf("reset all users offline: %w", err)
	}
	return nil
}
