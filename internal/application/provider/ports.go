package provider

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

/*
OAuthClient
-----------
Completes the wiki's OAuth 1.0a handshake and asks the wiki who the user is.
The consumer credential lives inside the implementation.
*/
type RequestToken struct {
	Key    string
	Secret string
}

type AccessToken struct {
	Key    string
	Secret string
}

type OAuthClient interface {
	Complete(ctx context.Context, rt RequestToken, callbackQuery string) (AccessToken, error)
	Identify(ctx context.Context, at AccessToken) (domain.RemoteIdentity, error)
}

/*
AccountHandler
--------------
The homeserver's account store as seen from here: an existence check and a
create. Register returns domain.ErrAccountExists when the account appeared
in the meantime.
*/
type AccountHandler interface {
	CheckUserExists(ctx context.Context, userID string) (bool, error)
	Register(ctx context.Context, acct domain.Account) (domain.Account, error)
}

/*
RegistrationLock
----------------
Serializes provisioning per canonical identifier, across replicas when
backed by Redis.
*/
type RegistrationLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

/*
EventPublisher
--------------
Announces provisioned accounts (welcome flows, directory sync).
Publishing is best effort and never fails a login.
*/
type EventPublisher interface {
	PublishAccountProvisioned(ctx context.Context, evt AccountProvisionedEvent) error
}

type AccountProvisionedEvent struct {
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	Localpart      string    `json:"localpart"`
	RemoteUsername string    `json:"remote_username"`
	OccurredAt     time.Time `json:"occurred_at"`
}

/*
Auditor
-------
Business-event sink, implemented by audit.Logger.
*/
type Auditor interface {
	LoginSucceeded(ctx context.Context, userID, remoteUsername string)
	LoginFailed(ctx context.Context, claimed, reason string)
	AccountProvisioned(ctx context.Context, userID, remoteUsername string)
}
