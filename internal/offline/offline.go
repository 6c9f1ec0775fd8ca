// Package offline spools messages for users who could not be reached at send time, and replays them at the next
// login. Delivery is not guaranteed: the read-then-delete cycle at login is not atomic, so a message published
// during the narrow window between the read and the delete can be lost.
package offline

import "context"

// Repository defines the data-access contract for offline messages.
type Repository interface {
	// Insert spools one message for userID.
	Insert(ctx context.Context, userID int64, message string) error
	// Query returns every spooled message for userID in insertion order. It does not delete them.
	Query(ctx context.Context, userID int64) ([]string, error)
	// Remove deletes every spooled message for userID.
	Remove(ctx context.Context, userID int64) error
}
