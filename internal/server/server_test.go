package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"poolserver/config"
	"poolserver/internal/httpmsg"
	"poolserver/internal/metrics"
	"poolserver/internal/ratelimit"
	"poolserver/pkg/logger"
)

type handlerFunc func(rw io.ReadWriter, log *logger.CustomZapLogger) int

func (f handlerFunc) ServeConn(rw io.ReadWriter, log *logger.CustomZapLogger) int {
	return f(rw, log)
}

// echoPath отвечает путем из запроса
var echoPath = handlerFunc(func(rw io.ReadWriter, _ *logger.CustomZapLogger) int {
	req, err := httpmsg.ReadRequest(rw, 1024)
	if err != nil {
		_, _ = httpmsg.Empty(http.StatusNotFound).WriteTo(rw)
		return http.StatusNotFound
	}
	_, _ = httpmsg.HTML(http.StatusOK, []byte(req.Path)).WriteTo(rw)
	return http.StatusOK
})

func testConfig(workers int) config.ServerConfig {
	return config.ServerConfig{
		Addr:            "127.0.0.1:0",
		Workers:         workers,
		ReadTimeout:     2 * time.Second,
		WriteTimeout:    2 * time.Second,
		MaxRequestBytes: 1024,
	}
}

func startServer(t *testing.T, s *Server) <-chan error {
	t.Helper()
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- s.Serve() }()
	t.Cleanup(func() { _ = s.Stop() })
	return served
}

func get(t *testing.T, addr, path string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Errorf("dial: %v", err)
		return ""
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	fmt.Fprintf(conn, "GET %s HTTP/1.1\r\nHost: %s\r\n\r\n", path, addr)
	out, err := io.ReadAll(conn)
	if err != nil {
		t.Errorf("read: %v", err)
	}
	return string(out)
}

func TestServer_ServesConcurrentClients(t *testing.T) {
	s := New(testConfig(3), echoPath, nil, nil, metrics.NewCollector())
	startServer(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/page%d", i)
			out := get(t, s.Addr(), path)
			if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") || !strings.HasSuffix(out, path) {
				t.Errorf("%s: неверный ответ %q", path, out)
			}
		}(i)
	}
	wg.Wait()

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if st := s.Stats(); st.Completed != 20 || st.Workers != 3 {
		t.Errorf("неверная статистика пула: %+v", st)
	}
}

func TestServer_RateLimit(t *testing.T) {
	limiter := ratelimit.NewTokenBucket(0.001, 1)
	s := New(testConfig(1), echoPath, limiter, nil, nil)
	startServer(t, s)

	if out := get(t, s.Addr(), "/"); !strings.HasPrefix(out, "HTTP/1.1 200 OK") {
		t.Errorf("первый запрос должен пройти: %q", out)
	}
	if out := get(t, s.Addr(), "/"); !strings.HasPrefix(out, "HTTP/1.1 429 TOO MANY REQUESTS") {
		t.Errorf("второй запрос должен получить 429: %q", out)
	}
}

func TestServer_StopDrainsInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := handlerFunc(func(rw io.ReadWriter, log *logger.CustomZapLogger) int {
		close(entered)
		<-release
		return echoPath(rw, log)
	})

	s := New(testConfig(1), h, nil, nil, nil)
	served := startServer(t, s)
	addr := s.Addr()

	response := make(chan string, 1)
	go func() { response <- get(t, addr, "/slow") }()
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop вернулся до завершения обработки соединения")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-stopped; err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := <-served; err != nil {
		t.Errorf("Serve после Stop должен вернуть nil, got %v", err)
	}
	if out := <-response; !strings.HasSuffix(out, "/slow") {
		t.Errorf("незавершенный запрос потерян: %q", out)
	}

	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Error("после Stop сервер не должен принимать соединения")
	}
}

func TestServer_HandlerPanic(t *testing.T) {
	var once sync.Once
	h := handlerFunc(func(rw io.ReadWriter, log *logger.CustomZapLogger) int {
		var req *httpmsg.Request
		once.Do(func() {
			req, _ = httpmsg.ReadRequest(rw, 1024)
			panic("boom: " + req.Path)
		})
		return echoPath(rw, log)
	})

	s := New(testConfig(1), h, nil, nil, nil)
	startServer(t, s)

	// Соединение закрывается без ответа, воркер продолжает работу
	if out := get(t, s.Addr(), "/first"); out != "" {
		t.Errorf("ожидался пустой ответ, got %q", out)
	}
	if out := get(t, s.Addr(), "/second"); !strings.HasSuffix(out, "/second") {
		t.Errorf("воркер не пережил панику: %q", out)
	}
	if st := s.Stats(); st.Panicked != 1 {
		t.Errorf("panicked=%d, want 1", st.Panicked)
	}
}

func TestServer_ListenErrors(t *testing.T) {
	s := New(testConfig(1), echoPath, nil, nil, nil)
	if s.Addr() != "" {
		t.Errorf("адрес до Listen: %q", s.Addr())
	}
	if err := s.Serve(); err == nil {
		t.Error("Serve без Listen должен вернуть ошибку")
	}

	startServer(t, s)
	if err := s.Listen(); !errors.Is(err, ErrAlreadyListening) {
		t.Errorf("повторный Listen: got %v", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("повторный Stop: %v", err)
	}
	if err := s.Listen(); !errors.Is(err, ErrServerStopped) {
		t.Errorf("Listen после Stop: got %v", err)
	}
}

func TestServer_ListenBusyPort(t *testing.T) {
	first := New(testConfig(1), echoPath, nil, nil, nil)
	startServer(t, first)

	cfg := testConfig(1)
	cfg.Addr = first.Addr()
	second := New(cfg, echoPath, nil, nil, nil)
	defer second.Stop()

	if err := second.Listen(); err == nil {
		t.Error("ожидалась ошибка: порт занят")
	}
}

func TestServer_RejectsWhenPoolClosed(t *testing.T) {
	m := metrics.NewCollector()
	s := New(testConfig(1), echoPath, nil, nil, m)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	// Пул закрыт раньше листенера: принятое соединение некому обработать
	s.pool.Close()
	go func() { _ = s.Serve() }()

	conn, err := net.DialTimeout("tcp", s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	out, _ := io.ReadAll(conn)
	if len(out) != 0 {
		t.Errorf("отклоненное соединение должно закрываться без ответа, got %q", out)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if body := rec.Body.String(); !strings.Contains(body, `poolserver_connections_total{result="rejected"} 1`) {
		t.Errorf("отклонение не учтено в метриках:\n%s", body)
	}
}
