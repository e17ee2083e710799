/**
 * @description
 * This package provides a thin RabbitMQ client for the payout job queue. The
 * producer publishes persistent job payloads to a durable queue; the consumer
 * on the other side feeds them into the worker runtime.
 *
 * @dependencies
 * - context, errors, net/url, strings, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */

package rabbitmq

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// JobProducer holds the RabbitMQ connection and channel for publishing jobs.
type JobProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewJobProducer connects to RabbitMQ and opens a publishing channel.
func NewJobProducer(amqpURL string) (*JobProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &JobProducer{conn: conn, channel: ch}, nil
}

// Publish declares the durable queue and publishes a persistent message to
// it through the default exchange. Errors bubble up so the caller can apply
// the enqueue-failure contract.
func (p *JobProducer) Publish(ctx context.Context, queue string, body []byte) error {
	if _, err := p.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx,
		"",    // default exchange routes by queue name
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Close shuts down the channel and connection.
func (p *JobProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
