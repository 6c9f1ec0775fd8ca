// Package bootstrap runs one-time startup repair before the server shell begins accepting connections.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/relaychat-im/relaychat-server/internal/user"
)

// ResetOnlineState marks every user offline. It must run once before the TCP listener starts accepting
// connections: the registry that would otherwise track who is online on this instance is in-memory and does not
// survive a restart, so any row left "online" by an unclean shutdown would otherwise wedge that account out of
// future logins (see the duplicate-login rejection in the login handler).
func ResetOnlineState(ctx context.Context, users user.Repository) error {
	if err := users.ResetAllToOffline(ctx); err != nil {
		return fmt.Errorf("reset online state: %w", err)
	}
	return nil
}
