package service

import "context"

// SubscriptionGate проверяет право пользователя на генерацию. Реализация
// живет в биллинговом сервисе; здесь только контракт для API-слоя.
type SubscriptionGate interface {
	// CanGenerate возвращает nil, если пользователю разрешена генерация,
	// и model.ErrSubscriptionRequired при исчерпанном лимите.
	CanGenerate(ctx context.Context, userID string) error
}
