package provider

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

/*
Fakes for ports
*/

type fakeOAuth struct {
	completeErr error
	identity    domain.RemoteIdentity
	identifyErr error

	gotRequest  RequestToken
	gotQuery    string
	gotAccess   AccessToken
	completeCnt int
	identifyCnt int
}

func (f *fakeOAuth) Complete(ctx context.Context, rt RequestToken, q string) (AccessToken, error) {
	f.completeCnt++
	f.gotRequest = rt
	f.gotQuery = q
	if f.completeErr != nil {
		return AccessToken{}, f.completeErr
	}
	return AccessToken{Key: "access-key", Secret: "access-secret"}, nil
}

func (f *fakeOAuth) Identify(ctx context.Context, at AccessToken) (domain.RemoteIdentity, error) {
	f.identifyCnt++
	f.gotAccess = at
	if f.identifyErr != nil {
		return domain.RemoteIdentity{}, f.identifyErr
	}
	return f.identity, nil
}

type fakeAccounts struct {
	mu sync.Mutex

	existing map[string]bool

	existsErr   error
	registerErr error
	// lost races leave no account behind, as if the winner rolled back
	phantomRace bool

	existsCalls []string
	registered  []domain.Account
}

func newFakeAccounts(existing ...string) *fakeAccounts {
	f := &fakeAccounts{existing: map[string]bool{}}
	for _, id := range existing {
		f.existing[id] = true
	}
	return f
}

func (f *fakeAccounts) CheckUserExists(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.existsCalls = append(f.existsCalls, userID)
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[userID], nil
}

func (f *fakeAccounts) Register(ctx context.Context, acct domain.Account) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.registered = append(f.registered, acct)
	if f.registerErr != nil {
		if domain.Is(f.registerErr, "account_exists") && !f.phantomRace {
			f.existing[acct.UserID] = true
		}
		return domain.Account{}, f.registerErr
	}
	f.existing[acct.UserID] = true
	return acct, nil
}

type fakeLock struct {
	acquireErr error
	// runs once the lock is held, before Acquire returns
	onAcquire  func()

	acquired []string
	released int
}

func (f *fakeLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired = append(f.acquired, key)
	if f.onAcquire != nil {
		f.onAcquire()
	}
	return func() { f.released++ }, nil
}

type fakePublisher struct {
	err       error
	onPublish func()
	events    []AccountProvisionedEvent
}

func (f *fakePublisher) PublishAccountProvisioned(ctx context.Context, evt AccountProvisionedEvent) error {
	if f.onPublish != nil {
		f.onPublish()
	}
	f.events = append(f.events, evt)
	return f.err
}

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	user   string
	reason string
}

type fakeAuditor struct {
	entries []auditEntry
}

func (f *fakeAuditor) LoginSucceeded(ctx context.Context, userID, remote string) {
	f.entries = append(f.entries, auditEntry{action: "login_success", user: userID})
}

func (f *fakeAuditor) LoginFailed(ctx context.Context, claimed, reason string) {
	f.entries = append(f.entries, auditEntry{action: "login_failed", user: claimed, reason: reason})
}

func (f *fakeAuditor) AccountProvisioned(ctx context.Context, userID, remote string) {
	f.entries = append(f.entries, auditEntry{action: "account_provisioned", user: userID})
}

func (f *fakeAuditor) last() auditEntry {
	if len(f.entries) == 0 {
		return auditEntry{}
	}
	return f.entries[len(f.entries)-1]
}
