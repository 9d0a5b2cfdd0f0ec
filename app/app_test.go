package app

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"poolserver/internal/ratelimit"
)

const configTemplate = `
server:
  addr: "127.0.0.1:0"
  workers: %d
content:
  root: %q
rateLimiter:
  enabled: false
logger:
  logLevel: error
  serviceName: poolserver-test
`

func writeConfig(t *testing.T, path, root string, workers int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(fmt.Sprintf(configTemplate, workers, root)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fetch(t *testing.T, addr, path string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	fmt.Fprintf(conn, "GET %s HTTP/1.1\r\nHost: %s\r\n\r\n", path, addr)
	out, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(out)
}

func TestApp_ServeAndReload(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "html")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{"index.html": "hello", "404.html": "oops"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	writeConfig(t, configPath, root, 2)

	a, err := NewApp(configPath)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	if out := fetch(t, a.Addr(), "/"); !strings.HasPrefix(out, "HTTP/1.1 200 OK") || !strings.HasSuffix(out, "hello") {
		t.Errorf("неверный ответ: %q", out)
	}
	if out := fetch(t, a.Addr(), "/missing"); !strings.HasPrefix(out, "HTTP/1.1 404 NOT FOUND") || !strings.HasSuffix(out, "oops") {
		t.Errorf("неверный ответ: %q", out)
	}
	if st := a.PoolStats(); st.Workers != 2 {
		t.Errorf("workers=%d, want 2", st.Workers)
	}

	writeConfig(t, configPath, root, 5)

	deadline := time.Now().Add(3 * time.Second)
	for a.PoolStats().Workers != 5 {
		if time.Now().After(deadline) {
			t.Fatalf("конфигурация не перезагрузилась: %+v", a.PoolStats())
		}
		time.Sleep(20 * time.Millisecond)
	}

	if out := fetch(t, a.Addr(), "/"); !strings.HasSuffix(out, "hello") {
		t.Errorf("после перезагрузки: %q", out)
	}

	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

const sweepConfig = `
server:
  addr: "127.0.0.1:0"
  workers: 1
content:
  root: %q
rateLimiter:
  enabled: true
  rate: 1000
  burst: 5
  sweepInterval: 20ms
logger:
  logLevel: error
  serviceName: poolserver-test
`

func TestApp_SweepsRateLimiter(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(fmt.Sprintf(sweepConfig, dir)), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := NewApp(configPath)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer a.Shutdown()

	tb, ok := a.RateLimiter().(*ratelimit.TokenBucket)
	if !ok {
		t.Fatalf("ожидался TokenBucket, got %T", a.RateLimiter())
	}

	fetch(t, a.Addr(), "/")

	deadline := time.Now().Add(3 * time.Second)
	for tb.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("корзина клиента не удалена: clients=%d", tb.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewApp_MissingConfig(t *testing.T) {
	if _, err := NewApp(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("ожидалась ошибка для отсутствующего файла")
	}
}
