// Package rabbitmq publishes provisioning events to a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

const (
	DefaultExchange = "mwauth.events"

	RoutingKeyAccountProvisioned = "account.provisioned"

	appID = "mwauth-service"

	// bound on a publish when the caller's ctx has no deadline
	publishTimeout = 2 * time.Second
)

var ErrUnroutable = errors.New("rabbitmq: message unroutable")

// Publisher keeps one confirm-mode channel and reconnects lazily on the
// next publish after a failure. Publishes are serialized.
type Publisher struct {
	url      string
	exchange string
	log      zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	returns <-chan amqp.Return
}

func NewPublisher(url, exchange string, lg zerolog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
		log:      lg.With().Str("component", "rabbitmq").Str("exchange", exchange).Logger(),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnect()
	return nil
}

// Ping reports whether the broker connection is up. It does not reconnect.
func (p *Publisher) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected() {
		return domain.ErrRabbitUnavailable(errors.New("connection closed"))
	}
	return nil
}

func (p *Publisher) PublishAccountProvisioned(ctx context.Context, evt provider.AccountProvisionedEvent) error {
	msg, err := newMessage(evt.EventID, evt, evt.OccurredAt)
	if err != nil {
		return err
	}
	msg.Type = RoutingKeyAccountProvisioned
	return p.publish(ctx, RoutingKeyAccountProvisioned, msg)
}

func newMessage(id string, payload any, ts time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal payload: %w", err)
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		AppId:        appID,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    ts.UTC(),
		Body:         body,
	}, nil
}

func (p *Publisher) connect() error {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(appID)

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat:  10 * time.Second,
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err == nil {
		err = ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	}
	if err == nil {
		err = ch.Confirm(false)
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel setup: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.returns = ch.NotifyReturn(make(chan amqp.Return, 1))
	return nil
}

func (p *Publisher) connected() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed()
}

func (p *Publisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected() {
		p.log.Info().Msg("reconnecting to broker")
		p.disconnect()
		if err := p.connect(); err != nil {
			return domain.ErrRabbitUnavailable(err)
		}
	}

	// a return left over from an abandoned publish must not be blamed on
	// this one
	select {
	case <-p.returns:
	default:
	}

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, true, false, msg)
	if err != nil {
		p.disconnect()
		return domain.ErrRabbitUnavailable(fmt.Errorf("publish: %w", err))
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return domain.ErrRabbitUnavailable(fmt.Errorf("await confirm: %w", err))
	}

	// The broker sends basic.return before the ack of a mandatory publish,
	// so by now it is already buffered.
	select {
	case ret := <-p.returns:
		return unroutable(routingKey, ret)
	default:
	}
	if !acked {
		return fmt.Errorf("rabbitmq nack: key=%s tag=%d", routingKey, dc.DeliveryTag)
	}

	p.log.Debug().Str("routing_key", routingKey).Str("message_id", msg.MessageId).Msg("published")
	return nil
}

func unroutable(routingKey string, ret amqp.Return) error {
	return fmt.Errorf("%w: key=%s code=%d text=%s", ErrUnroutable, routingKey, ret.ReplyCode, ret.ReplyText)
}

func (p *Publisher) disconnect() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
