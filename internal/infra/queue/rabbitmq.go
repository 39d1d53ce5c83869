package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"crypto-sentiment-monitor/internal/domain"
	"crypto-sentiment-monitor/internal/infra/metrics"
)

// RabbitJobQueue реализует очередь задач через AMQP.
// Подписка на очередь оформляется лениво при первом Receive и ровно один
// раз: у канала один подписчик, все последующие Receive читают его поток
// доставок. Процесс, который только публикует, подписчиком не становится.
type RabbitJobQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
	consumeErr error
}

var _ domain.JobQueue = (*RabbitJobQueue)(nil)

// NewRabbitJobQueue подключается к RabbitMQ и объявляет durable-очередь.
func NewRabbitJobQueue(amqpURL, queue string) (*RabbitJobQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitJobQueue{conn: conn, channel: ch, queue: queue}, nil
}

// subscribe оформляет единственную подписку канала. Повторные вызовы
// возвращают уже открытый поток доставок либо ошибку первой попытки.
func (q *RabbitJobQueue) subscribe() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries == nil && q.consumeErr == nil {
		q.deliveries, q.consumeErr = q.channel.Consume(q.queue, "", false, false, false, false, nil)
	}
	return q.deliveries, q.consumeErr
}

// Enqueue публикует задачу в очередь.
func (q *RabbitJobQueue) Enqueue(ctx context.Context, job domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из потока единственного подписчика.
// Подтверждение с success=false возвращает задачу в очередь через nack
// с requeue.
func (q *RabbitJobQueue) Receive(ctx context.Context) (domain.Job, domain.AckFunc, error) {
	deliveries, err := q.subscribe()
	if err != nil {
		return domain.Job{}, nil, fmt.Errorf("consume: %w", err)
	}
	select {
	case <-ctx.Done():
		return domain.Job{}, nil, ctx.Err()
	case delivery, ok := <-deliveries:
		if !ok {
			return domain.Job{}, nil, errors.New("rabbitmq: канал доставки закрыт")
		}
		var job domain.Job
		if err := json.Unmarshal(delivery.Body, &job); err != nil {
			_ = delivery.Nack(false, false)
			return domain.Job{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return delivery.Ack(false)
			}
			return delivery.Nack(false, true)
		}
		return job, ack, nil
	}
}

// Close освобождает соединение.
func (q *RabbitJobQueue) Close() error {
	if err := q.channel.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
