package ratelimit

import "math"

// Unlimited пропускает все запросы. Используется, когда rate limiter выключен.
type Unlimited struct{}

func (Unlimited) Allow(string) bool {
	return true
}

func (Unlimited) Tokens(string) float64 {
	return math.Inf(1)
}

func (Unlimited) Limits(string) ClientLimits {
	return ClientLimits{Rate: math.Inf(1)}
}

func (Unlimited) Override(string) (ClientLimits, bool) {
	return ClientLimits{}, false
}

func (Unlimited) SetOverride(string, float64, int) {}

func (Unlimited) UpdateOverride(string, func(*ClientLimits)) {}

func (Unlimited) DeleteOverride(string) {}

// FromConfig создает лимитер по настройкам; выключенный лимитер дает Unlimited
func FromConfig(enabled bool, r float64, burst int) RateLimiter {
	if !enabled {
		return Unlimited{}
	}
	return NewTokenBucket(r, burst)
}
