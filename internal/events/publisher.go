// Package events publishes message-created events to an AMQP topic exchange
// so downstream consumers (CRM sync, analytics) can react without polling.
// Publishing is fire-and-forget; a broker outage never fails a send.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/omnigatehq/omnigate/internal/config"
	"github.com/omnigatehq/omnigate/internal/message"
)

// MessageCreated is the event body emitted for every persisted message.
type MessageCreated struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Channel        string    `json:"channel"`
	ContentType    string    `json:"contentType"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Publisher emits gateway events.
type Publisher interface {
	MessageCreated(ctx context.Context, msg message.Message)
	Close() error
}

// NewPublisher creates the AMQP publisher, or a no-op one when no broker is
// configured.
func NewPublisher(log *slog.Logger, cfg config.EventsConfig) (Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Enabled() {
		return &noopPublisher{}, nil
	}
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &amqpPublisher{
		logger:   log.With(slog.String("service", "events")),
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
	}, nil
}

type amqpPublisher struct {
	logger   *slog.Logger
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func (p *amqpPublisher) MessageCreated(ctx context.Context, msg message.Message) {
	event := MessageCreated{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Sender:         string(msg.Sender),
		Channel:        msg.Channel.String(),
		ContentType:    msg.ContentType,
		CreatedAt:      msg.CreatedAt,
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encode event", slog.Any("error", err))
		return
	}
	routingKey := "message.created." + string(msg.Sender)

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("publish message-created event",
			slog.String("message_id", msg.ID),
			slog.Any("error", err))
	}
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

type noopPublisher struct{}

func (*noopPublisher) MessageCreated(context.Context, message.Message) {}
func (*noopPublisher) Close() error                                   { return nil }
