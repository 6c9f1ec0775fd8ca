package group

import "testing"

func TestRoleConstants(t *testing.T) {
	t.Parallel()

	if RoleCreator == RoleNormal {
		t.Error("RoleCreator and RoleNormal must be distinct")
	}
}

func TestErrNotFound_HasMessage(t *testing.T) {
	t.Parallel()

	if ErrNotFound.Error() == "" {
		t.Error("ErrNotFound must have a message")
	}
}
