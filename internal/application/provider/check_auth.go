package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/pkg/reqctx"
)

// State is a step of a single check-auth call.
type State string

const (
	StateStart               State = "start"
	StateTokenExchanging     State = "token_exchanging"
	StateIdentityFetched     State = "identity_fetched"
	StateReconciling         State = "reconciling"
	StateAccountExists       State = "account_exists"
	StateAccountProvisioning State = "account_provisioning"
	StateSucceeded           State = "succeeded"
	StateFailed              State = "failed"
)

// attempt tracks one call through the state machine. It is never shared.
type attempt struct {
	claimed string
	state   State
	log     zerolog.Logger
}

func (a *attempt) to(next State) {
	a.log.Debug().Str("from", string(a.state)).Str("to", string(next)).Msg("check-auth transition")
	a.state = next
}

// CheckAuth verifies a login of type org.wikimedia.oauth_v1.
//
// On success it returns the canonical "@localpart:domain" identifier,
// creating the account on first login. Every OAuth, identity or
// reconciliation problem yields domain.ErrAuthFailed with no further detail;
// the reason only reaches logs, metrics and the audit trail. Account store
// faults yield domain.ErrProvisioningFailed. No step is retried.
func (s *Service) CheckAuth(ctx context.Context, claimed, loginType string, params map[string]string) (*AuthResult, error) {
	a := &attempt{
		claimed: claimed,
		state:   StateStart,
		log:     reqctx.Logger(ctx, s.log).With().Str("claimed_user", claimed).Logger(),
	}
	a.log.Info().Msg("check-auth requested")

	if loginType != domain.LoginTypeMediaWikiOAuth {
		return s.reject(ctx, a, metrics.ResultInvalid, domain.ErrUnsupportedLoginType(loginType))
	}
	for _, p := range domain.LoginTypeParams() {
		if params[p] == "" {
			return s.reject(ctx, a, metrics.ResultInvalid, domain.ErrMissingField(p))
		}
	}

	// 1-2) complete the handshake with the client's request token
	a.to(StateTokenExchanging)
	access, err := s.oauth.Complete(ctx, RequestToken{
		Key:    params[domain.ParamRequestKey],
		Secret: params[domain.ParamRequestSecret],
	}, params[domain.ParamOAuthQuery])
	if err != nil {
		a.log.Error().Err(err).Msg("OAuth authentication failed")
		return s.reject(ctx, a, metrics.ResultOAuthFailed, domain.ErrAuthFailed())
	}

	// 3) ask the wiki who this is
	identity, err := s.oauth.Identify(ctx, access)
	if err != nil {
		a.log.Error().Err(err).Msg("OAuth identify failed")
		return s.reject(ctx, a, metrics.ResultIdentifyFail, domain.ErrAuthFailed())
	}
	a.to(StateIdentityFetched)
	a.log = a.log.With().Str("remote_username", identity.Username).Logger()

	// 4-5) the claimed localpart must be exactly the verified wiki username
	a.to(StateReconciling)
	localpart, canonical, err := domain.ParseClaimed(claimed, s.domain)
	if err != nil {
		a.log.Error().Err(err).Msg("claimed identifier is malformed")
		return s.reject(ctx, a, metrics.ResultMismatch, domain.ErrAuthFailed())
	}
	if localpart != identity.Username {
		a.log.Error().
			Str("localpart", localpart).
			Msg("claimed localpart does not match wiki username")
		return s.reject(ctx, a, metrics.ResultMismatch, domain.ErrAuthFailed())
	}
	a.log.Info().Str("user_id", canonical).Msg("user authenticated")

	// 6) first login creates the account
	provisioned, err := s.ensureAccount(ctx, a, domain.Account{
		UserID:         canonical,
		Localpart:      localpart,
		RemoteUsername: identity.Username,
	})
	if err != nil {
		return s.reject(ctx, a, metrics.ResultProvisionFail, err)
	}

	// 7) the homeserver issues its own credential
	a.to(StateSucceeded)
	metrics.RecordCheckAuth(metrics.ResultSuccess)
	s.audit.LoginSucceeded(ctx, canonical, identity.Username)

	return &AuthResult{UserID: canonical, Credential: nil, Provisioned: provisioned}, nil
}

func (s *Service) reject(ctx context.Context, a *attempt, result string, err error) (*AuthResult, error) {
	a.to(StateFailed)
	metrics.RecordCheckAuth(result)
	s.audit.LoginFailed(ctx, a.claimed, result)
	return nil, err
}

// ensureAccount checks for the account and creates it on first login.
// Existing accounts never touch the registration lock. A create that loses
// to a concurrent login is treated as success.
func (s *Service) ensureAccount(ctx context.Context, a *attempt, acct domain.Account) (bool, error) {
	exists, err := s.accounts.CheckUserExists(ctx, acct.UserID)
	if err != nil {
		a.log.Error().Err(err).Msg("account existence check failed")
		return false, domain.ErrProvisioningFailed(err)
	}
	if exists {
		a.to(StateAccountExists)
		a.log.Info().Msg("user already exists, registration skipped")
		return false, nil
	}

	acct.CreatedAt = s.now().UTC()
	provisioned, err := s.provision(ctx, a, acct)
	if err != nil || !provisioned {
		return false, err
	}

	// published outside the registration lock
	if s.pub != nil {
		evt := AccountProvisionedEvent{
			EventID:        s.newID(),
			UserID:         acct.UserID,
			Localpart:      acct.Localpart,
			RemoteUsername: acct.RemoteUsername,
			OccurredAt:     acct.CreatedAt,
		}
		if err := s.pub.PublishAccountProvisioned(ctx, evt); err != nil {
			a.log.Warn().Err(err).Msg("account provisioned event not published")
		}
	}
	return true, nil
}

// provision creates the account under a per-identifier lock. The existence
// check is repeated once the lock is held.
func (s *Service) provision(ctx context.Context, a *attempt, acct domain.Account) (bool, error) {
	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, "register:"+acct.UserID, s.lockTTL)
		if err != nil {
			a.log.Error().Err(err).Msg("registration lock unavailable")
			return false, domain.ErrProvisioningFailed(err)
		}
		defer release()

		exists, err := s.accounts.CheckUserExists(ctx, acct.UserID)
		if err != nil {
			a.log.Error().Err(err).Msg("account existence check failed")
			return false, domain.ErrProvisioningFailed(err)
		}
		if exists {
			a.to(StateAccountExists)
			a.log.Info().Msg("user created while waiting for lock, registration skipped")
			return false, nil
		}
	}

	a.to(StateAccountProvisioning)
	a.log.Info().Msg("user does not exist yet, creating")

	created, err := s.accounts.Register(ctx, acct)
	if err != nil {
		if domain.Is(err, "account_exists") {
			metrics.RecordRegistrationRace()
			a.log.Warn().Msg("account created concurrently, re-checking")
			exists, cerr := s.accounts.CheckUserExists(ctx, acct.UserID)
			if cerr != nil || !exists {
				a.log.Error().Err(cerr).Msg("account reported as existing but not found")
				return false, domain.ErrProvisioningFailed(err)
			}
			a.to(StateAccountExists)
			return false, nil
		}
		a.log.Error().Err(err).Msg("account registration failed")
		return false, domain.ErrProvisioningFailed(err)
	}
	if created.UserID != "" && created.UserID != acct.UserID {
		a.log.Error().Str("registered_as", created.UserID).Msg("account store registered a different identifier")
		return false, domain.ErrProvisioningFailed(nil)
	}

	metrics.RecordProvisioned()
	s.audit.AccountProvisioned(ctx, acct.UserID, acct.RemoteUsername)
	a.log.Info().Msg("registration based on wiki OAuth was successful")
	return true, nil
}

func newEventID() string { return uuid.NewString() }
