package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"bedtime-server/internal/messaging"
)

// Notifier определяет интерфейс для отправки уведомлений о завершении задачи.
type Notifier interface {
	// Notify отправляет уведомление в соответствующую очередь.
	Notify(ctx context.Context, payload messaging.NotificationPayload) error
}

// rabbitMQNotifier реализует Notifier для отправки сообщений в RabbitMQ.
type rabbitMQNotifier struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQNotifier создает новый экземпляр Notifier для RabbitMQ.
// Важно: предполагается, что канал уже открыт и будет закрыт в другом месте
// (например, в main.go).
func NewRabbitMQNotifier(ch *amqp.Channel, logger *zap.Logger) (Notifier, error) {
	queueName := messaging.StoryNotificationsQueue

	_, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось объявить очередь уведомлений '%s': %w", queueName, err)
	}
	logger.Info("Очередь уведомлений объявлена", zap.String("queue", queueName))

	return &rabbitMQNotifier{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("Notifier"),
	}, nil
}

// Notify публикует уведомление в очередь RabbitMQ.
func (n *rabbitMQNotifier) Notify(ctx context.Context, payload messaging.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления для TaskID %s: %w", payload.TaskID, err)
	}

	err = n.channel.PublishWithContext(ctx,
		"",
		n.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "bedtime-server",
			MessageId:    payload.TaskID + "-notif",
		},
	)
	if err != nil {
		n.logger.Error("Ошибка публикации уведомления в RabbitMQ",
			zap.String("task_id", payload.TaskID), zap.Error(err))
		return fmt.Errorf("ошибка публикации уведомления для TaskID %s: %w", payload.TaskID, err)
	}

	n.logger.Debug("Уведомление отправлено",
		zap.String("task_id", payload.TaskID),
		zap.String("status", string(payload.Status)))
	return nil
}
