package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

const defaultLockTTL = 10 * time.Second

// Service is the authentication provider the homeserver delegates
// org.wikimedia.oauth_v1 logins to.
type Service struct {
	oauth    OAuthClient
	accounts AccountHandler
	lock     RegistrationLock
	pub      EventPublisher
	audit    Auditor
	log      zerolog.Logger

	domain  string
	lockTTL time.Duration
	now     func() time.Time
	newID   func() string
}

type Config struct {
	// ServerName is the homeserver's own identity.
	ServerName string
	Provider   config.ProviderConfig
	LockTTL    time.Duration
}

func NewService(
	oauth OAuthClient,
	accounts AccountHandler,
	lock RegistrationLock,
	pub EventPublisher,
	cfg Config,
	lg zerolog.Logger,
) *Service {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Service{
		oauth:    oauth,
		accounts: accounts,
		lock:     lock,
		pub:      pub,
		audit:    nopAuditor{},
		log:      lg.With().Str("component", "provider").Logger(),

		domain:  cfg.Provider.Domain(cfg.ServerName),
		lockTTL: ttl,
		now:     time.Now,
		newID:   newEventID,
	}
}

func (s *Service) WithAudit(a Auditor) *Service {
	if a != nil {
		s.audit = a
	}
	return s
}

// AuthResult is a successful check-auth outcome. Credential is always nil;
// the homeserver issues its own access token.
type AuthResult struct {
	UserID      string
	Credential  *string
	Provisioned bool
}

// SupportedLoginTypes maps each login type this provider handles to the
// parameters a client must send with it.
func SupportedLoginTypes() map[string][]string {
	return map[string][]string{
		domain.LoginTypeMediaWikiOAuth: domain.LoginTypeParams(),
	}
}

func (s *Service) SupportedLoginTypes() map[string][]string {
	return SupportedLoginTypes()
}

// Domain is the server name canonical identifiers are scoped to.
func (s *Service) Domain() string { return s.domain }

type nopAuditor struct{}

func (nopAuditor) LoginSucceeded(context.Context, string, string)     {}
func (nopAuditor) LoginFailed(context.Context, string, string)        {}
func (nopAuditor) AccountProvisioned(context.Context, string, string) {}
