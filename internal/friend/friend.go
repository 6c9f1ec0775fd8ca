// Package friend manages the one-directional friend relation: Add(userid, friendid) grants userid a friend entry
// for friendid, but not the reverse. This asymmetry matches the original chat service and is intentionally
// preserved rather than corrected.
package friend

import (
	"context"

	"github.com/relaychat-im/relaychat-server/internal/user"
)

// Repository defines the data-access contract for friend relations.
type Repository interface {
	// Add inserts a (userid, friendid) row. It is not an error to add the same friend twice; the underlying
	// constraint violation is treated as a no-op.
	Add(ctx context.Context, userID, friendID int64) error
	// List returns the users that appear in userid's friend list, i.e. every friendid for which a row
	// (userid, friendid) exists.
	List(ctx context.Context, userID int64) ([]user.User, error)
}
