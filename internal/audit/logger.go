package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/pkg/reqctx"
)

// Logger provides structured audit logging for login and provisioning events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// LoginSucceeded logs a login the wiki vouched for
func (l *Logger) LoginSucceeded(ctx context.Context, userID, remoteUsername string) {
	l.log.Info().
		Str("action", "login_success").
		Str("user_id", userID).
		Str("remote_username", remoteUsername).
		Str("request_id", reqctx.RequestID(ctx)).
		Msg("User logged in via wiki OAuth")
}

// LoginFailed logs a rejected login attempt. reason is an internal code and
// never reaches the client.
func (l *Logger) LoginFailed(ctx context.Context, claimed, reason string) {
	l.log.Warn().
		Str("action", "login_failed").
		Str("claimed_user", claimed).
		Str("reason", reason).
		Str("request_id", reqctx.RequestID(ctx)).
		Msg("Login attempt failed")
}

// AccountProvisioned logs a first-login account creation
func (l *Logger) AccountProvisioned(ctx context.Context, userID, remoteUsername string) {
	l.log.Info().
		Str("action", "account_provisioned").
		Str("user_id", userID).
		Str("remote_username", remoteUsername).
		Str("request_id", reqctx.RequestID(ctx)).
		Msg("Account created on first login")
}
