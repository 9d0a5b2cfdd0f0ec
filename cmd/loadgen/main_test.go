package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}

	if got := percentile(sorted, 50); got != 50*time.Millisecond {
		t.Errorf("p50=%v", got)
	}
	if got := percentile(sorted, 95); got != 95*time.Millisecond {
		t.Errorf("p95=%v", got)
	}
	if got := percentile(sorted[:1], 95); got != time.Millisecond {
		t.Errorf("p95 одного значения=%v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("пустой срез=%v", got)
	}
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	results := []result{
		{status: 200, elapsed: time.Millisecond},
		{status: 200, elapsed: 2 * time.Millisecond},
		{status: 429, elapsed: time.Millisecond},
		{err: errors.New("connection refused")},
	}

	var buf bytes.Buffer
	printSummary(&buf, results, time.Second)
	out := buf.String()

	for _, want := range []string{
		"Запросов: 4",
		"200 OK: 2",
		"429 Too Many Requests: 1",
		"ошибок: 1 (первая: connection refused)",
		"p50=",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("в выводе нет %q:\n%s", want, out)
		}
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	r := fetch(srv.Client(), srv.URL)
	if r.err != nil || r.status != http.StatusTeapot {
		t.Errorf("неверный результат: %+v", r)
	}
}
