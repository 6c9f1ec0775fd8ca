// Package registry holds the per-instance mapping from online user id to the connection currently serving that
// user, the core piece of local delivery state described by the router.
package registry

import (
	"errors"
	"sync"

	"github.com/relaychat-im/relaychat-server/internal/transport"
)

// ErrAlreadyBound is returned by Bind when userID already has a connection bound on this instance. A bound entry
// is never overwritten silently; the caller must unbind it first.
var ErrAlreadyBound = errors.New("registry: user already bound")

// Registry is a thread-safe bidirectional map between user id and connection. A user is "online on this instance"
// exactly when it has an entry here; the registry holds no other state.
type Registry struct {
	mu       sync.Mutex
	byUser   map[int64]transport.Conn
	byConnID map[string]int64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byUser:   make(map[int64]transport.Conn),
		byConnID: make(map[string]int64),
	}
}

// Bind associates userID with conn. It returns ErrAlreadyBound without changing any state if userID already has a
// connection bound on this instance; the caller must unbind it first.
func (r *Registry) Bind(userID int64, conn transport.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[userID]; ok {
		return ErrAlreadyBound
	}
	r.byUser[userID] = conn
	r.byConnID[conn.ID()] = userID
	return nil
}

// UnbindByConn removes whatever user is bound to conn, if any, and reports the user id that was unbound. This
// replaces a pointer-equality scan with a direct map lookup keyed by the connection's stable id.
func (r *Registry) UnbindByConn(conn transport.Conn) (userID int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.byConnID[conn.ID()]
	if !ok {
		return 0, false
	}
	delete(r.byConnID, conn.ID())
	delete(r.byUser, userID)
	return userID, true
}

// UnbindUser removes userID's binding unconditionally, e.g. on an explicit logout. It reports whether a binding
// existed.
func (r *Registry) UnbindUser(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byUser[userID]
	if !ok {
		return false
	}
	delete(r.byConnID, conn.ID())
	delete(r.byUser, userID)
	return true
}

// Lookup returns the connection bound to userID, if any.
func (r *Registry) Lookup(userID int64) (transport.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byUser[userID]
	return conn, ok
}

// Send writes frame to the connection bound to userID, if any is currently bound on this instance. It reports
// whether a local connection was found, independent of whether the write itself succeeded. The lock is held across
// the write, so a concurrent unbind cannot remove the entry between the lookup and the send.
func (r *Registry) Send(userID int64, frame []byte) (delivered bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byUser[userID]
	if !ok {
		return false, nil
	}
	return true, conn.Send(frame)
}

// Count returns the number of users currently bound on this instance.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}
