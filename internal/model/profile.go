package model

import (
	"time"

	"github.com/google/uuid"
)

// ChildProfile описывает ребенка, для которого генерируется сказка.
type ChildProfile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Age       int       `json:"age" db:"age"`
	Gender    string    `json:"gender,omitempty" db:"gender"`
	Interests []string  `json:"interests,omitempty" db:"interests"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HeroProfile описывает выдуманного героя, который может быть протагонистом сказки.
type HeroProfile struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Traits      []string  `json:"traits,omitempty" db:"traits"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
