package ratelimit

// RateLimiter ограничивает частоту запросов по ключу клиента (IP)
type RateLimiter interface {
	// Allow проверяет, можно ли пропустить запрос
	Allow(key string) bool

	// Tokens возвращает текущее количество доступных токенов
	Tokens(key string) float64

	// Limits возвращает действующие лимиты клиента (персональные или по умолчанию)
	Limits(key string) ClientLimits

	// Override возвращает персональные лимиты клиента, если они заданы
	Override(key string) (ClientLimits, bool)

	// SetOverride устанавливает персональные лимиты клиента
	SetOverride(key string, rate float64, burst int)

	// UpdateOverride изменяет персональные лимиты клиента
	UpdateOverride(key string, updateFn func(*ClientLimits))

	// DeleteOverride удаляет персональные лимиты, клиент возвращается к лимитам по умолчанию
	DeleteOverride(key string)
}

// ClientLimits настройки лимитов для клиента
type ClientLimits struct {
	Rate  float64 // Количество запросов в секунду
	Burst int     // Максимальный размер корзины
}
