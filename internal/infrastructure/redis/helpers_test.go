package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

type fakeAccounts struct {
	existing    map[string]bool
	existsCalls int
	registerErr error
	existsErr   error
}

func (f *fakeAccounts) CheckUserExists(ctx context.Context, userID string) (bool, error) {
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[userID], nil
}

func (f *fakeAccounts) Register(ctx context.Context, a domain.Account) (domain.Account, error) {
	if f.registerErr != nil {
		return domain.Account{}, f.registerErr
	}
	f.existing[a.UserID] = true
	return a, nil
}
