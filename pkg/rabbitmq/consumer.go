package rabbitmq

import (
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobConsumer reads payout job deliveries from the durable queue and passes
// them to a handler. The handler's return value drives ack/nack.
type JobConsumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewJobConsumer connects to RabbitMQ and opens a consuming channel.
func NewJobConsumer(amqpURL string) (*JobConsumer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &JobConsumer{conn: conn, ch: ch}, nil
}

// Consume declares the durable queue and starts delivering messages to
// handler on a background goroutine. A false return from handler re-queues
// the delivery.
func (c *JobConsumer) Consume(queueName string, prefetch int, handler func([]byte) bool) error {
	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	if prefetch > 0 {
		if err := c.ch.Qos(prefetch, 0, false); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			if handler(d.Body) {
				d.Ack(false)
			} else {
				log.Printf("Handler for queue %s failed; re-queuing", q.Name)
				d.Nack(false, true)
			}
		}
	}()

	return nil
}

// Close shuts down the channel and connection, ending the delivery loop.
func (c *JobConsumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
