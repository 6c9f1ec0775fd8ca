// Package user defines the persisted account record and its repository contract.
package user

import (
	"context"
	"errors"
)

// Sentinel errors for the user package.
var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("username already taken")
	ErrNameLength    = errors.New("name must be between 1 and 50 characters")
	ErrPasswordLength = errors.New("password must be between 1 and 100 characters")
)

// State is the server-recorded online/offline flag for a user, shared by every node. The router rejects a login
// while it reads online, and publishes to the bus for a recipient that reads online but is not bound locally;
// whether the user is connected to this node is decided by the local connection registry.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// User is one row of the user table.
type User struct {
	ID       int64
	Name     string
	Password string
	State    State
}

// ValidateName checks that name is between 1 and maxLen Unicode characters.
func ValidateName(name string, maxLen int) error {
	n := len([]rune(name))
	if n < 1 || n > maxLen {
		return ErrNameLength
	}
	return nil
}

// ValidatePassword checks that password is between 1 and maxLen Unicode characters.
func ValidatePassword(password string, maxLen int) error {
	n := len([]rune(password))
	if n < 1 || n > maxLen {
		return ErrPasswordLength
	}
	return nil
}

// Repository defines the data-access contract for user accounts.
type Repository interface {
	// Create inserts a new user with state offline and returns the assigned id. It returns ErrAlreadyExists if the
	// name is already taken.
	Create(ctx context.Context, name, password string) (int64, error)
	// GetByID returns the user row for id, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByName returns the user row for name, or ErrNotFound.
	GetByName(ctx context.Context, name string) (*User, error)
	// SetState updates the persisted state column for id.
	SetState(ctx context.Context, id int64, state State) error
	// ResetAllToOffline marks every user row offline. Called once at process startup, since an in-memory connection
	// registry from a previous run no longer exists.
	ResetAllToOffline(ctx context.Context) error
}
