package model

import "time"

// Ключи шаблонов промтов в БД.
const (
	PromptKeyStorySystem   = "story_system"
	PromptKeyStoryChild    = "story_user_child"
	PromptKeyStoryHero     = "story_user_hero"
	PromptKeyStoryCombined = "story_user_combined"
	PromptKeyContinuation  = "story_user_continuation"
)

// PromptTemplate - шаблон промта, хранящийся в БД и кэшируемый провайдером.
// Плейсхолдеры вида {{CHILD_NAME}} подставляются при рендеринге.
type PromptTemplate struct {
	ID        int64     `json:"id" db:"id"`
	Key       string    `json:"key" db:"key"`
	Language  string    `json:"language" db:"language"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
