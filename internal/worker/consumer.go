package worker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"bedtime-server/internal/messaging"
)

// Consumer читает задачи генерации из RabbitMQ и передает их обработчику.
// Работает с prefetch=1: одна долгая AI-задача на воркер за раз.
type Consumer struct {
	ch      *amqp.Channel
	handler *TaskHandler
	logger  *zap.Logger
}

// NewConsumer настраивает топологию очередей (DLX, DLQ, основная очередь
// задач) и возвращает готовый к запуску консьюмер.
func NewConsumer(ch *amqp.Channel, handler *TaskHandler, logger *zap.Logger) (*Consumer, error) {
	if err := declareTopology(ch); err != nil {
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		ch:      ch,
		handler: handler,
		logger:  logger.Named("Consumer"),
	}, nil
}

// declareTopology объявляет DLX, DLQ и основную очередь задач. Сообщения,
// отклоненные обработчиком (nack без requeue), уходят в DLQ для разбора.
func declareTopology(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		messaging.DeadLetterExchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLX '%s': %w", messaging.DeadLetterExchange, err)
	}

	_, err = ch.QueueDeclare(
		messaging.DeadLetterQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ '%s': %w", messaging.DeadLetterQueue, err)
	}

	err = ch.QueueBind(messaging.DeadLetterQueue, messaging.DeadLetterKey, messaging.DeadLetterExchange, false, nil)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ to DLX: %w", err)
	}

	_, err = ch.QueueDeclare(
		messaging.StoryTasksQueue,
		true,
		false,
		false,
		false,
		amqp.Table(messaging.TaskQueueArgs()),
	)
	if err != nil {
		return fmt.Errorf("failed to declare task queue '%s': %w", messaging.StoryTasksQueue, err)
	}
	return nil
}

// Run потребляет сообщения до отмены контекста или закрытия канала.
// Ошибка обработчика означает nack без requeue (сообщение уходит в DLQ),
// успех подтверждается ack.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(
		messaging.StoryTasksQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Консьюмер запущен, ожидание задач",
		zap.String("queue", messaging.StoryTasksQueue))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Контекст отменен, консьюмер останавливается")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Канал сообщений закрыт, консьюмер завершается")
				return nil
			}
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg amqp.Delivery) {
	if err := c.handler.Handle(ctx, msg.Body); err != nil {
		c.logger.Error("Ошибка обработки задачи, сообщение уходит в DLQ",
			zap.String("message_id", msg.MessageId), zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.Error("Не удалось отклонить сообщение", zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("Не удалось подтвердить сообщение", zap.Error(ackErr))
	}
}
