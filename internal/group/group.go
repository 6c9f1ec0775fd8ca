// Package group manages chat groups and their memberships.
package group

import (
	"context"
	"errors"

	"github.com/relaychat-im/relaychat-server/internal/user"
)

// Sentinel errors for the group package.
var (
	ErrNotFound = errors.New("group not found")
)

// Role is a member's role within a group.
type Role string

const (
	RoleCreator Role = "creator"
	RoleNormal  Role = "normal"
)

// Group is one row of the allgroup table.
type Group struct {
	ID   int64
	Name string
	Desc string
}

// Member pairs a user with their role inside one group.
type Member struct {
	user.User
	Role Role
}

// WithMembers bundles a Group with its current membership, the shape the login and create-group replies need.
type WithMembers struct {
	Group
	Users []Member
}

// Repository defines the data-access contract for groups and group memberships.
type Repository interface {
	// Create inserts a group row and a creator membership row for creatorID in one transaction, returning the
	// assigned group id.
	Create(ctx context.Context, creatorID int64, name, desc string) (int64, error)
	// AddMember inserts a normal-role membership row for userID in groupID.
	AddMember(ctx context.Context, groupID, userID int64) error
	// ListForUser returns every group userID belongs to, each with its full membership list.
	ListForUser(ctx context.Context, userID int64) ([]WithMembers, error)
	// Members returns every member of groupID, excluding excludeUserID if it is non-zero.
	Members(ctx context.Context, groupID int64, excludeUserID int64) ([]user.User, error)
}
