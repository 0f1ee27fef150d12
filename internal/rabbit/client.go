// Package rabbit carries notification messages through a durable RabbitMQ queue.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"eventform/internal/mailer"
)

// Consumer feeds queued message bodies to a handler until the connection closes.
type Consumer interface {
	Consume(handler func([]byte) error) error
}

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	log      *zerolog.Logger

	// amqp channels are not safe for concurrent publishing
	publishMu sync.Mutex
}

// NewRabbit connects and declares a durable direct exchange with one queue
// bound under its own name.
func NewRabbit(url, exchange, queue string, log *zerolog.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	c := &Client{conn: conn, channel: ch, exchange: exchange, queue: queue, log: log}
	if err := c.declare(); err != nil {
		c.Close()
		return nil, err
	}

	log.Info().Str("exchange", exchange).Str("queue", queue).Msg("🐇 RabbitMQ notification queue ready")
	return c, nil
}

func (c *Client) declare() error {
	if err := c.channel.ExchangeDeclare(c.exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := c.channel.QueueBind(c.queue, c.queue, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queue, err)
	}
	return nil
}

func (c *Client) Close() {
	if err := c.channel.Close(); err != nil {
		c.log.Warn().Err(err).Msg("closing rabbitmq channel")
	}
	if err := c.conn.Close(); err != nil {
		c.log.Warn().Err(err).Msg("closing rabbitmq connection")
	}
}

// Enqueue publishes msg as a persistent JSON message for the consumer worker.
func (c *Client) Enqueue(ctx context.Context, msg mailer.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	err = c.channel.PublishWithContext(ctx, c.exchange, c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.RefID + ":" + msg.Kind,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s notification: %w", msg.Kind, err)
	}
	return nil
}

// Consume acks a delivery once handler returns nil. A handler error drops the
// delivery; it is never requeued.
func (c *Client) Consume(handler func([]byte) error) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	go func() {
		for d := range deliveries {
			if err := handler(d.Body); err != nil {
				c.log.Warn().Err(err).Str("message_id", d.MessageId).Msg("dropping undeliverable notification")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}()
	return nil
}
