package messaging

import (
	"github.com/google/uuid"

	"bedtime-server/internal/model"
)

// Имена очередей и инфраструктуры RabbitMQ.
const (
	StoryTasksQueue         = "story_generation_tasks"
	StoryNotificationsQueue = "story_notifications"

	DeadLetterExchange = "story_generation_dlx"
	DeadLetterQueue    = "story_generation_dlq"
	DeadLetterKey      = "dlq"
)

// TaskQueueArgs - аргументы очереди задач. Должны совпадать у всех, кто
// объявляет очередь, иначе RabbitMQ ответит PRECONDITION_FAILED.
func TaskQueueArgs() map[string]interface{} {
	return map[string]interface{}{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": DeadLetterKey,
	}
}

// GenerationTaskPayload - данные, передаваемые в очередь для воркера генерации
type GenerationTaskPayload struct {
	TaskID string                `json:"taskId"` // Совпадает с ID истории
	UserID string                `json:"userId"`
	Params model.StoryParameters `json:"params"`
}

// NotificationStatus - статус завершения задачи для уведомления
type NotificationStatus string

const (
	NotificationStatusSuccess  NotificationStatus = "success"
	NotificationStatusRejected NotificationStatus = "rejected"
	NotificationStatusError    NotificationStatus = "error"
)

// NotificationPayload - данные, отправляемые в очередь уведомлений после
// завершения генерации.
type NotificationPayload struct {
	TaskID       string             `json:"taskId"`
	UserID       string             `json:"userId"`
	StoryID      uuid.UUID          `json:"storyId"`
	Status       NotificationStatus `json:"status"`
	Title        string             `json:"title,omitempty"`
	QualityScore int                `json:"qualityScore,omitempty"`
	ErrorDetails string             `json:"errorDetails,omitempty"`
}
