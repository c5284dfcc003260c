package memory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
)

// NoopPublisher logs events instead of sending them. Used when RabbitMQ is
// not configured.
type NoopPublisher struct {
	log zerolog.Logger
}

func NewNoopPublisher(lg zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: lg.With().Str("component", "noop-pub").Logger()}
}

func (p *NoopPublisher) PublishAccountProvisioned(ctx context.Context, evt provider.AccountProvisionedEvent) error {
	p.log.Info().
		Str("event_id", evt.EventID).
		Str("user_id", evt.UserID).
		Str("remote_username", evt.RemoteUsername).
		Msg("account provisioned (not published)")
	return nil
}
