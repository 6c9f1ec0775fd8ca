package group

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/relaychat-im/relaychat-server/internal/postgres"
	"github.com/relaychat-im/relaychat-server/internal/user"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed group repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

func (r *PGRepository) Create(ctx context.Context, creatorID int64, name, desc string) (int64, error) {
	var groupID int64
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO allgroup (groupname, groupdesc) VALUES ($1, $2) RETURNING id`,
			name, desc,
		).Scan(&groupID)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO groupuser (groupid, userid, grouprole) VALUES ($1, $2, $3)`,
			groupID, creatorID, RoleCreator,
		)
		if err != nil {
			return fmt.Errorf("insert creator membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return groupID, nil
}

func (r *PGRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM allgroup WHERE id = $1)`, groupID).Scan(&exists); err != nil {
		return fmt.Errorf("check group exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO groupuser (groupid, userid, grouprole) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		groupID, userID, RoleNormal,
	)
	if err != nil {
		return fmt.Errorf("insert group membership: %w", err)
	}
	return nil
}

func (r *PGRepository) ListForUser(ctx context.Context, userID int64) ([]WithMembers, error) {
	rows, err := r.db.Query(ctx,
		`SELECT g.id, g.groupname, g.groupdesc
		 FROM allgroup g
		 INNER JOIN groupuser gu ON gu.groupid = g.id
		 WHERE gu.userid = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query groups for user: %w", err)
	}

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Desc); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}
	rows.Close()

	out := make([]WithMembers, 0, len(groups))
	for _, g := range groups {
		members, err := r.membersWithRoles(ctx, g.ID, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, WithMembers{Group: g, Users: members})
	}
	return out, nil
}

func (r *PGRepository) Members(ctx context.Context, groupID int64, excludeUserID int64) ([]user.User, error) {
	members, err := r.membersWithRoles(ctx, groupID, excludeUserID)
	if err != nil {
		return nil, err
	}
	out := make([]user.User, 0, len(members))
	for _, m := range members {
		out = append(out, m.User)
	}
	return out, nil
}

func (r *PGRepository) membersWithRoles(ctx context.Context, groupID int64, excludeUserID int64) ([]Member, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.name, u.password, u.state, gu.grouprole
		 FROM "user" u
		 INNER JOIN groupuser gu ON gu.userid = u.id
		 WHERE gu.groupid = $1 AND ($2 = 0 OR u.id != $2)`,
		groupID, excludeUserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		var role string
		if err := rows.Scan(&m.ID, &m.Name, &m.Password, &m.State, &role); err != nil {
			return nil, fmt.Errorf("scan group member row: %w", err)
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group member rows: %w", err)
	}
	return out, nil
}
