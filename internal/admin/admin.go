package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"poolserver/internal/metrics"
	"poolserver/internal/ratelimit"
	"poolserver/models"
	"poolserver/pkg/logger"
	"poolserver/pkg/workerpool"
)

// State текущее состояние приложения. Сервер и лимитер пересоздаются при
// перезагрузке конфигурации, поэтому admin запрашивает их на каждый запрос.
type State interface {
	RateLimiter() ratelimit.RateLimiter
	PoolStats() workerpool.Stats
}

// Server служебный HTTP сервер: метрики, health и управление лимитами клиентов
type Server struct {
	state   State
	metrics *metrics.Collector
	server  *http.Server
	logger  *logger.CustomZapLogger
}

func New(addr string, state State, m *metrics.Collector, appLogger *logger.CustomZapLogger) *Server {
	s := &Server{
		state:   state,
		metrics: m,
		logger:  appLogger.Named("admin"),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ratelimit/{client}", s.handleRateLimit)

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

// Handler возвращает корневой обработчик
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start блокируется до Stop
func (s *Server) Start() error {
	s.logger.Info(fmt.Sprintf("Служебный сервер запущен на %s", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, models.Health{
		Status: "ok",
		Pool:   s.state.PoolStats(),
	})
}

// handleRateLimit обрабатывает CRUD операции для персональных лимитов клиента
func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	client := r.PathValue("client")
	if client == "" {
		http.Error(w, "Invalid URL format. Use /ratelimit/{client}", http.StatusBadRequest)
		return
	}

	limiter := s.state.RateLimiter()
	if _, disabled := limiter.(ratelimit.Unlimited); disabled {
		http.Error(w, "Rate limiter is disabled", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getRateLimit(w, limiter, client)
	case http.MethodPost:
		s.createRateLimit(w, r, limiter, client)
	case http.MethodPut:
		s.updateRateLimit(w, r, limiter, client)
	case http.MethodDelete:
		s.deleteRateLimit(w, limiter, client)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) getRateLimit(w http.ResponseWriter, limiter ratelimit.RateLimiter, client string) {
	limits, ok := limiter.Override(client)
	if !ok {
		http.Error(w, "Client limits not found", http.StatusNotFound)
		return
	}

	tokens := limiter.Tokens(client)
	s.writeJSON(w, http.StatusOK, models.ClientRateLimit{
		Rate:   limits.Rate,
		Burst:  limits.Burst,
		Tokens: &tokens,
	})
}

func (s *Server) createRateLimit(w http.ResponseWriter, r *http.Request, limiter ratelimit.RateLimiter, client string) {
	limits, ok := decodeLimits(w, r)
	if !ok {
		return
	}

	if _, exists := limiter.Override(client); exists {
		http.Error(w, "Rate limits already exist for this client", http.StatusConflict)
		return
	}

	limiter.SetOverride(client, limits.Rate, limits.Burst)

	w.WriteHeader(http.StatusCreated)
	s.logger.Info("Созданы лимиты клиента",
		zap.String("client", client), zap.Float64("rate", limits.Rate), zap.Int("burst", limits.Burst))
}

func (s *Server) updateRateLimit(w http.ResponseWriter, r *http.Request, limiter ratelimit.RateLimiter, client string) {
	limits, ok := decodeLimits(w, r)
	if !ok {
		return
	}

	if _, exists := limiter.Override(client); !exists {
		http.Error(w, "Client limits not found", http.StatusNotFound)
		return
	}

	limiter.UpdateOverride(client, func(cl *ratelimit.ClientLimits) {
		cl.Rate = limits.Rate
		cl.Burst = limits.Burst
	})

	w.WriteHeader(http.StatusOK)
	s.logger.Info("Обновлены лимиты клиента",
		zap.String("client", client), zap.Float64("rate", limits.Rate), zap.Int("burst", limits.Burst))
}

func (s *Server) deleteRateLimit(w http.ResponseWriter, limiter ratelimit.RateLimiter, client string) {
	if _, exists := limiter.Override(client); !exists {
		http.Error(w, "Client limits not found", http.StatusNotFound)
		return
	}

	limiter.DeleteOverride(client)

	w.WriteHeader(http.StatusNoContent)
	s.logger.Info("Удалены лимиты клиента", zap.String("client", client))
}

func decodeLimits(w http.ResponseWriter, r *http.Request) (models.ClientRateLimit, bool) {
	var limits models.ClientRateLimit
	if err := json.NewDecoder(r.Body).Decode(&limits); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return limits, false
	}
	if limits.Rate <= 0 || limits.Burst <= 0 {
		http.Error(w, "Rate and burst must be positive", http.StatusBadRequest)
		return limits, false
	}
	return limits, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Не удалось закодировать ответ", zap.Error(err))
	}
}
