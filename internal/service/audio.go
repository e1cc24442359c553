package service

import "context"

// VoiceSynthesizer озвучивает готовую историю. Реализация живет в отдельном
// сервисе синтеза; здесь только контракт для слоя доставки.
type VoiceSynthesizer interface {
	// Synthesize возвращает URL готового аудиофайла для текста истории.
	Synthesize(ctx context.Context, storyID string, text string, language string) (audioURL string, err error)
}
