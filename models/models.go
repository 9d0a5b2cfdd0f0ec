package models

import "poolserver/pkg/workerpool"

// ClientRateLimit персональные настройки rate limit для клиента
type ClientRateLimit struct {
	Rate  float64 `json:"rate"`  // Запросов в секунду
	Burst int     `json:"burst"` // Максимальный размер корзины

	// Токенов в корзине клиента сейчас, только в ответах
	Tokens *float64 `json:"tokens,omitempty"`
}

// Health ответ служебного эндпоинта /health
type Health struct {
	Status string           `json:"status"`
	Pool   workerpool.Stats `json:"pool"`
}
