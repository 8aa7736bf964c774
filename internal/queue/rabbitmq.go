package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	// queue for committed ledger events
	EventQueue = "ledger.events"
)

// handles RabbitMQ operations
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	logger  *zap.Logger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

func NewRabbitMQ(uri string, logger *zap.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		EventQueue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		queue:   q,
		logger:  logger,
	}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}

// Publish sends a ledger event to the queue
func (r *RabbitMQ) Publish(ctx context.Context, event *models.LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.Publish(
		"",         // exchange
		EventQueue, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Type:         string(event.Type),
			Timestamp:    event.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent, // make message persistent
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Delivery is a decoded event waiting to be acknowledged by the consumer.
type Delivery struct {
	Event *models.LedgerEvent
	msg   amqp.Delivery
}

// Ack confirms the event was handled.
func (d Delivery) Ack() error {
	return d.msg.Ack(false)
}

// Nack returns the event to the queue for another attempt.
func (d Delivery) Nack() error {
	return d.msg.Nack(false, true)
}

// consumes ledger events from the queue
func (r *RabbitMQ) ConsumeEvents(ctx context.Context) (<-chan Delivery, error) {
	msgs, err := r.channel.Consume(
		EventQueue, // queue
		"",         // consumer
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	out := make(chan Delivery)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				event, err := decodeEvent(msg.Body)
				if err != nil {
					r.logger.Error("dropping undecodable event", zap.String("message_id", msg.MessageId), zap.Error(err))
					msg.Reject(false) // Don't requeue
					continue
				}

				select {
				case out <- Delivery{Event: event, msg: msg}:
				case <-ctx.Done():
					msg.Nack(false, true)
					return
				}
			}
		}
	}()

	return out, nil
}

func decodeEvent(body []byte) (*models.LedgerEvent, error) {
	var event models.LedgerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.ID == "" || event.Transaction == nil {
		return nil, fmt.Errorf("event is missing id or transaction")
	}
	return &event, nil
}
