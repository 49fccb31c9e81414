package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gigauth/internal/models"

	amqp "github.com/streadway/amqp"
)

// AccountEventsQueue receives every published account event.
const AccountEventsQueue = "account_events"

// Channel is the subset of *amqp.Channel the client uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel Channel
	mu      sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL     string
	Retries int
	Delay   time.Duration
}

// NewClient connects to RabbitMQ, retrying the dial, and declares the account events queue.
func NewClient(cfg Config) (*Client, error) {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}
	var conn *amqp.Connection
	var err error
	for attempt := 0; attempt < retries; attempt++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		time.Sleep(cfg.Delay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c, err := NewClientWithChannel(ch)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// NewClientWithChannel builds a client over an already open channel and declares the
// account events queue on it.
func NewClientWithChannel(ch Channel) (*Client, error) {
	if err := declare(ch); err != nil {
		ch.Close()
		return nil, err
	}
	return &Client{channel: ch}, nil
}

func declare(ch Channel) error {
	_, err := ch.QueueDeclare(
		AccountEventsQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", AccountEventsQueue, err)
	}
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishAccountEvent sends event as a persistent JSON message to the account events queue.
func (c *Client) PublishAccountEvent(event models.AccountEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal account event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",                 // default exchange
		AccountEventsQueue, // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// ConsumeAccountEvents decodes messages from the account events queue and passes them to
// handle. Messages are acked when handle succeeds, requeued when it fails, and dropped
// when they cannot be decoded. It returns once the consumer is registered; delivery runs
// in its own goroutine until the channel closes.
func (c *Client) ConsumeAccountEvents(handle func(models.AccountEvent) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}
	msgs, err := c.channel.Consume(
		AccountEventsQueue, // queue
		"",                 // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			_ = dispatch(msg, handle)
		}
	}()
	return nil
}

// dispatch handles a single delivery and settles it.
func dispatch(msg amqp.Delivery, handle func(models.AccountEvent) error) error {
	var event models.AccountEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		_ = msg.Nack(false, false)
		return fmt.Errorf("undecodable account event: %w", err)
	}
	if err := handle(event); err != nil {
		_ = msg.Nack(false, true)
		return err
	}
	return msg.Ack(false)
}
