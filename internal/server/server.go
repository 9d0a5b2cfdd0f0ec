package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poolserver/config"
	"poolserver/internal/httpmsg"
	"poolserver/internal/metrics"
	"poolserver/internal/ratelimit"
	"poolserver/pkg/logger"
	"poolserver/pkg/workerpool"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

var (
	ErrAlreadyListening = errors.New("server: already listening")
	ErrServerStopped    = errors.New("server: stopped")
)

// Handler обрабатывает одно соединение и возвращает статус отправленного ответа
type Handler interface {
	ServeConn(rw io.ReadWriter, log *logger.CustomZapLogger) int
}

// Server TCP сервер: принимает соединения и отдает каждое пулу воркеров
type Server struct {
	cfg      config.ServerConfig
	pool     *workerpool.Pool
	handler  Handler
	limiter  ratelimit.RateLimiter
	logger   *logger.CustomZapLogger
	metrics  *metrics.Collector
	mu       sync.Mutex
	listener net.Listener
	stopping atomic.Bool
	stopOnce sync.Once
}

// New создает сервер и пул из cfg.Workers воркеров. Слушать порт сервер начинает в Listen.
func New(cfg config.ServerConfig, handler Handler, limiter ratelimit.RateLimiter,
	log *logger.CustomZapLogger, m *metrics.Collector) *Server {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.NewCollector()
	}

	s := &Server{
		cfg:     cfg,
		handler: handler,
		limiter: limiter,
		logger:  log.Named("server"),
		metrics: m,
	}
	s.pool = workerpool.New(cfg.Workers,
		workerpool.WithName("pool"),
		workerpool.WithLogger(s.logger),
		workerpool.WithObserver(m),
	)
	return s
}

// Start слушает адрес из конфигурации и блокируется в цикле приема соединений
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen открывает слушающий сокет
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping.Load() {
		return ErrServerStopped
	}
	if s.listener != nil {
		return ErrAlreadyListening
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.logger.Info(fmt.Sprintf("Сервер слушает %s (воркеров: %d)", ln.Addr(), s.pool.Size()))
	return nil
}

// Serve принимает соединения, пока сервер не остановлен. После Stop возвращает nil.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			s.logger.Warn(fmt.Sprintf("Ошибка accept, повтор через %v", backoff), zap.Error(err))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if err := s.pool.Submit(func() { s.handle(conn) }); err != nil {
			s.metrics.Connection(metrics.ResultRejected)
			s.logger.Warn("Соединение отклонено: пул остановлен", zap.Error(err))
			_ = conn.Close()
		}
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	client := httpmsg.ClientIP(conn.RemoteAddr())
	log := s.logger.With(
		zap.String("requestID", uuid.NewString()),
		zap.String("client", client),
	)

	_ = conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout))
	_ = conn.SetWriteDeadline(start.Add(s.cfg.WriteTimeout))

	if !s.limiter.Allow(client) {
		s.metrics.Connection(metrics.ResultRateLimited)
		log.Warn("Превышен лимит запросов")
		// Запрос вычитывается, иначе close с непрочитанными данными сбросит соединение
		_, _ = httpmsg.ReadRequest(conn, s.cfg.MaxRequestBytes)
		if _, err := httpmsg.Empty(http.StatusTooManyRequests).WriteTo(conn); err != nil {
			log.Debug("Не удалось отправить 429", zap.Error(err))
		}
		s.metrics.Response(http.StatusTooManyRequests, time.Since(start))
		return
	}

	s.metrics.Connection(metrics.ResultServed)
	status := s.handler.ServeConn(conn, log)
	elapsed := time.Since(start)
	s.metrics.Response(status, elapsed)
	log.Debug("Запрос обработан", zap.Int("status", status), zap.Duration("elapsed", elapsed))
}

// Stop закрывает слушающий сокет и останавливает пул. Соединения, уже
// принятые пулом, обрабатываются до конца. Повторный вызов ничего не делает.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping.Store(true)
		ln := s.listener
		s.mu.Unlock()
		if ln != nil {
			if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = fmt.Errorf("close listener: %w", cerr)
			}
		}

		s.pool.Close()
		s.logger.Info("Сервер остановлен")
	})
	return err
}

// Addr возвращает фактический адрес сокета или пустую строку до Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stats состояние пула воркеров сервера
func (s *Server) Stats() workerpool.Stats {
	return s.pool.Stats()
}
