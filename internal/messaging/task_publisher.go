package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TaskPublisher ставит задачи генерации в очередь для воркера.
type TaskPublisher interface {
	PublishTask(ctx context.Context, payload GenerationTaskPayload) error
	Close() error
}

// RabbitMQTaskPublisher реализует TaskPublisher для RabbitMQ.
type RabbitMQTaskPublisher struct {
	ch     *amqp091.Channel
	logger *zap.Logger
}

// NewRabbitMQTaskPublisher создает издателя задач генерации.
// Предполагается, что соединение уже установлено и переподключения
// управляются внешним кодом.
func NewRabbitMQTaskPublisher(conn *amqp091.Connection, logger *zap.Logger) (*RabbitMQTaskPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Очередь задач durable, с DLX для сообщений, которые воркер отверг
	_, err = ch.QueueDeclare(
		StoryTasksQueue,
		true,
		false,
		false,
		false,
		amqp091.Table(TaskQueueArgs()),
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue '%s': %w", StoryTasksQueue, err)
	}

	logger.Info("Очередь задач генерации объявлена", zap.String("queue", StoryTasksQueue))

	return &RabbitMQTaskPublisher{ch: ch, logger: logger.Named("TaskPublisher")}, nil
}

// PublishTask публикует задачу генерации в очередь.
func (p *RabbitMQTaskPublisher) PublishTask(ctx context.Context, payload GenerationTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload for TaskID %s: %w", payload.TaskID, err)
	}

	err = p.ch.PublishWithContext(ctx,
		"",
		StoryTasksQueue,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "bedtime-server",
			MessageId:    payload.TaskID,
		},
	)
	if err != nil {
		p.logger.Error("Ошибка публикации задачи в RabbitMQ",
			zap.String("task_id", payload.TaskID), zap.Error(err))
		return fmt.Errorf("failed to publish task %s: %w", payload.TaskID, err)
	}

	p.logger.Debug("Задача генерации опубликована",
		zap.String("task_id", payload.TaskID), zap.String("user_id", payload.UserID))
	return nil
}

// Close закрывает канал RabbitMQ.
func (p *RabbitMQTaskPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
