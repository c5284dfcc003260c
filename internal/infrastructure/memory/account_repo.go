package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

// AccountRepo is an in-process account store for dev and tests.
type AccountRepo struct {
	mu    sync.RWMutex
	byID  map[string]domain.Account
	order []string
	nowFn func() time.Time
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		byID:  make(map[string]domain.Account),
		nowFn: time.Now,
	}
}

func (r *AccountRepo) CheckUserExists(ctx context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byID[userID]
	return ok, nil
}

func (r *AccountRepo) Register(ctx context.Context, a domain.Account) (domain.Account, error) {
	if a.UserID == "" {
		return domain.Account{}, domain.ErrMissingField("user_id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.UserID]; exists {
		return domain.Account{}, domain.ErrAccountExists()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.nowFn().UTC()
	}
	r.byID[a.UserID] = a
	r.order = append(r.order, a.UserID)
	return a, nil
}

// List returns accounts in creation order.
func (r *AccountRepo) List() []domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Account, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
