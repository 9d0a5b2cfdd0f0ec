package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// TokenBucket реализует алгоритм маркерного ведра с отдельной корзиной на каждого клиента.
// Полные корзины удаляются в Sweep.
type TokenBucket struct {
	// Дефолтные настройки
	defaultRate  float64
	defaultBurst int

	// Хранилище лимитеров для каждого клиента
	limiters sync.Map // map[string]*rate.Limiter

	// Персональные настройки
	overrides sync.Map // map[string]ClientLimits

	// Мьютекс для синхронизации изменения настроек
	mu sync.Mutex
}

// NewTokenBucket создает новый TokenBucket с указанными параметрами по умолчанию
func NewTokenBucket(defaultRate float64, defaultBurst int) *TokenBucket {
	return &TokenBucket{
		defaultRate:  defaultRate,
		defaultBurst: defaultBurst,
	}
}

// Allow проверяет, можно ли пропустить запрос от клиента
func (tb *TokenBucket) Allow(key string) bool {
	return tb.getLimiter(key).Allow()
}

// Tokens возвращает текущее количество доступных токенов
func (tb *TokenBucket) Tokens(key string) float64 {
	return tb.getLimiter(key).Tokens()
}

// Limits возвращает действующие лимиты клиента
func (tb *TokenBucket) Limits(key string) ClientLimits {
	if limits, ok := tb.Override(key); ok {
		return limits
	}
	return ClientLimits{
		Rate:  tb.defaultRate,
		Burst: tb.defaultBurst,
	}
}

// Override возвращает персональные лимиты клиента
func (tb *TokenBucket) Override(key string) (ClientLimits, bool) {
	if limits, ok := tb.overrides.Load(key); ok {
		return limits.(ClientLimits), true
	}
	return ClientLimits{}, false
}

// SetOverride устанавливает лимиты для конкретного клиента
func (tb *TokenBucket) SetOverride(key string, r float64, burst int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.overrides.Store(key, ClientLimits{Rate: r, Burst: burst})
	tb.limiters.Store(key, rate.NewLimiter(rate.Limit(r), burst))
}

// UpdateOverride обновляет лимиты клиента
func (tb *TokenBucket) UpdateOverride(key string, updateFn func(*ClientLimits)) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	limits := tb.Limits(key)
	updateFn(&limits)

	tb.overrides.Store(key, limits)

	// Существующий лимитер меняем на месте, накопленные токены сохраняются
	if l, ok := tb.limiters.Load(key); ok {
		limiter := l.(*rate.Limiter)
		limiter.SetLimit(rate.Limit(limits.Rate))
		limiter.SetBurst(limits.Burst)
		return
	}
	tb.limiters.Store(key, rate.NewLimiter(rate.Limit(limits.Rate), limits.Burst))
}

// DeleteOverride удаляет персональные лимиты
func (tb *TokenBucket) DeleteOverride(key string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.overrides.Delete(key)
	tb.limiters.Delete(key)
}

// getLimiter возвращает или создает лимитер для клиента
func (tb *TokenBucket) getLimiter(key string) *rate.Limiter {
	if limiter, ok := tb.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limits := tb.Limits(key)
	limiter, _ := tb.limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(limits.Rate), limits.Burst))
	return limiter.(*rate.Limiter)
}

// Sweep удаляет корзины, которые успели наполниться до burst. Такая корзина
// ничем не отличается от новой, поэтому getLimiter пересоздаст ее без потери
// состояния. Возвращает число удаленных корзин.
func (tb *TokenBucket) Sweep() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	removed := 0
	tb.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(limiter.Burst()) && tb.limiters.CompareAndDelete(key, limiter) {
			removed++
		}
		return true
	})
	return removed
}

// Clients возвращает число хранимых корзин
func (tb *TokenBucket) Clients() int {
	n := 0
	tb.limiters.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
