package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/relaychat-im/relaychat-server/internal/user"
)

type fakeUsers struct {
	resetCalled bool
	resetErr    error
}

func (f *fakeUsers) Create(context.Context, string, string) (int64, error)       { return 0, nil }
func (f *fakeUsers) GetByID(context.Context, int64) (*user.User, error)          { return nil, nil }
func (f *fakeUsers) GetByName(context.Context, string) (*user.User, error)       { return nil, nil }
func (f *fakeUsers) SetState(context.Context, int64, user.State) error          { return nil }
func (f *fakeUsers) ResetAllToOffline(context.Context) error {
	f.resetCalled = true
	return f.resetErr
}

func TestResetOnlineState_CallsRepository(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	if err := ResetOnlineState(context.Background(), users); err != nil {
		t.Fatalf("ResetOnlineState() error = %v", err)
	}
	if !users.resetCalled {
		t.Error("ResetOnlineState() did not call ResetAllToOffline")
	}
}

func TestResetOnlineState_PropagatesError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("db unavailable")
	users := &fakeUsers{resetErr: wantErr}
	err := ResetOnlineState(context.Background(), users)
	if !errors.Is(err, wantErr) {
		t.Errorf("ResetOnlineState() error = %v, want wrapping %v", err, wantErr)
	}
}
