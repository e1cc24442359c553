package model

import (
	"fmt"

	"github.com/google/uuid"
)

// StoryType определяет, кто является протагонистом сказки.
type StoryType string

const (
	StoryTypeChild    StoryType = "child"    // протагонист сам ребенок
	StoryTypeHero     StoryType = "hero"     // протагонист выдуманный герой
	StoryTypeCombined StoryType = "combined" // Ребенок и герой вместе
)

// IsValid проверяет, что тип истории известен.
func (t StoryType) IsValid() bool {
	switch t {
	case StoryTypeChild, StoryTypeHero, StoryTypeCombined:
		return true
	}
	return false
}

// Примерная скорость чтения вслух (слов в минуту) для расчета целевой длины.
// Для языков с длинными словами фактическая скорость ниже, но для детских
// текстов разница несущественна.
const wordsPerMinute = 140

// Границы длительности истории в минутах.
const (
	MinDurationMinutes = 2
	MaxDurationMinutes = 20
)

// StoryParameters содержит неизменяемые входные параметры одного запроса генерации.
// Заполняются API-слоем и дальше по конвейеру не модифицируются.
type StoryParameters struct {
	StoryType       StoryType  `json:"story_type"`
	Language        string     `json:"language"`
	Moral           string     `json:"moral"`            // Мораль/ценность истории ("доброта", "честность", ...)
	DurationMinutes int        `json:"duration_minutes"` // Целевая длительность чтения вслух
	TargetWords     int        `json:"target_words"`     // Производное от DurationMinutes
	ThemeHint       string     `json:"theme_hint,omitempty"`
	ParentStoryID   *uuid.UUID `json:"parent_story_id,omitempty"` // Для продолжения существующей истории
	ParentSummary   string     `json:"parent_summary,omitempty"`  // Краткое содержание родительской истории

	Child *ChildProfile `json:"child,omitempty"`
	Hero  *HeroProfile  `json:"hero,omitempty"`
}

// TargetWordCount возвращает целевое количество слов, вычисляя его из
// длительности, если оно не было задано явно.
func (p StoryParameters) TargetWordCount() int {
	if p.TargetWords > 0 {
		return p.TargetWords
	}
	return p.DurationMinutes * wordsPerMinute
}

// ChildAge возвращает возраст целевой аудитории (возраст ребенка или 6 по умолчанию для героя).
func (p StoryParameters) ChildAge() int {
	if p.Child != nil && p.Child.Age > 0 {
		return p.Child.Age
	}
	return 6
}

// Validate проверяет параметры запроса перед постановкой задачи в очередь.
func (p StoryParameters) Validate() error {
	if !p.StoryType.IsValid() {
		return fmt.Errorf("%w: unknown story type '%s'", ErrInvalidInput, p.StoryType)
	}
	if p.Language == "" {
		return fmt.Errorf("%w: language is required", ErrInvalidInput)
	}
	if p.DurationMinutes < MinDurationMinutes || p.DurationMinutes > MaxDurationMinutes {
		return fmt.Errorf("%w: duration must be between %d and %d minutes", ErrInvalidInput, MinDurationMinutes, MaxDurationMinutes)
	}
	switch p.StoryType {
	case StoryTypeChild:
		if p.Child == nil {
			return fmt.Errorf("%w: child profile is required for story type 'child'", ErrInvalidInput)
		}
	case StoryTypeHero:
		if p.Hero == nil {
			return fmt.Errorf("%w: hero profile is required for story type 'hero'", ErrInvalidInput)
		}
	case StoryTypeCombined:
		if p.Child == nil || p.Hero == nil {
			return fmt.Errorf("%w: both child and hero profiles are required for story type 'combined'", ErrInvalidInput)
		}
	}
	if p.Child != nil && (p.Child.Age < 1 || p.Child.Age > 14) {
		return fmt.Errorf("%w: child age must be between 1 and 14", ErrInvalidInput)
	}
	return nil
}
