package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPQueue receives a durable copy of every task lifecycle event.
const AMQPQueue = "task.events"

// AuditMessage is the body published for each event.
type AuditMessage struct {
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt string          `json:"emitted_at"`
}

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type auditJob struct {
	event string
	body  []byte
	at    time.Time
}

// AMQPPublisher records task events on a RabbitMQ queue for downstream
// consumers. A single goroutine publishes them in emit order, off the
// request path; failures are logged.
type AMQPPublisher struct {
	ch        amqpChannel
	closeConn func() error

	mu     sync.RWMutex
	queue  chan auditJob
	closed bool
	done   chan struct{}
}

// DialAMQP connects to the broker and declares the durable queue.
func DialAMQP(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
	}

	if _, err := ch.QueueDeclare(
		AMQPQueue, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare failed: %w", err)
	}

	return newAMQPPublisher(ch, conn.Close, publishBuffer), nil
}

func newAMQPPublisher(ch amqpChannel, closeConn func() error, buffer int) *AMQPPublisher {
	if buffer < 1 {
		buffer = 1
	}
	p := &AMQPPublisher{
		ch:        ch,
		closeConn: closeConn,
		queue:     make(chan auditJob, buffer),
		done:      make(chan struct{}),
	}
	go p.publishLoop()
	return p
}

// Emit never blocks. A full queue drops the event.
func (p *AMQPPublisher) Emit(event string, payload any) {
	at := time.Now().UTC()
	body, err := encodeAudit(event, payload, at)
	if err != nil {
		log.Printf("broadcast: marshal audit %s failed: %v", event, err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- auditJob{event: event, body: body, at: at}:
	default:
		log.Printf("broadcast: rabbitmq queue full, dropped %s", event)
	}
}

func (p *AMQPPublisher) publishLoop() {
	defer close(p.done)
	for job := range p.queue {
		if err := p.publish(job); err != nil {
			log.Printf("broadcast: rabbitmq publish %s failed: %v", job.event, err)
		}
	}
}

func (p *AMQPPublisher) publish(job auditJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(ctx,
		"",        // default exchange
		AMQPQueue, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    job.at,
			Type:         job.event,
			Body:         job.body,
		},
	)
}

// Close drains the queued events, then closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	_ = p.ch.Close()
	if p.closeConn == nil {
		return nil
	}
	return p.closeConn()
}

func encodeAudit(event string, payload any, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(AuditMessage{
		Event:     event,
		Payload:   raw,
		EmittedAt: at.Format(time.RFC3339),
	})
}
