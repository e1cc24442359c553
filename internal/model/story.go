package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StoryStatus описывает статус записи истории в БД (не путать со статусом workflow,
// который живет только внутри одного запуска конвейера).
type StoryStatus string

const (
	StoryStatusQueued     StoryStatus = "queued"     // Задача поставлена в очередь
	StoryStatusGenerating StoryStatus = "generating" // Воркер взял задачу в работу
	StoryStatusReady      StoryStatus = "ready"      // История готова
	StoryStatusRejected   StoryStatus = "rejected"   // Запрос отклонен валидатором
	StoryStatusError      StoryStatus = "error"      // Генерация завершилась ошибкой
)

// Story представляет сохраненную сказку вместе с метаданными генерации.
type Story struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	Title         string          `json:"title" db:"title"`
	Content       string          `json:"content" db:"content"`
	Status        StoryStatus     `json:"status" db:"status"`
	StoryType     StoryType       `json:"story_type" db:"story_type"`
	Language      string          `json:"language" db:"language"`
	Moral         string          `json:"moral,omitempty" db:"moral"`
	ParentStoryID *uuid.UUID      `json:"parent_story_id,omitempty" db:"parent_story_id"`
	Params        json.RawMessage `json:"params,omitempty" db:"params"` // Исходные StoryParameters как JSON

	// Метаданные контроля качества
	QualityScore  int    `json:"quality_score,omitempty" db:"quality_score"`
	AttemptsMade  int    `json:"attempts_made,omitempty" db:"attempts_made"`
	SelectionNote string `json:"selection_note,omitempty" db:"selection_note"`
	ErrorDetails  string `json:"error_details,omitempty" db:"error_details"`

	// Аудио-дорожка (заполняется внешним синтезатором, если он подключен)
	AudioURL string `json:"audio_url,omitempty" db:"audio_url"`

	TokensUsed       int       `json:"tokens_used,omitempty" db:"tokens_used"`
	ProcessingTimeMs int64     `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
