package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"poolserver/pkg/logger"
	"poolserver/pkg/workerpool"
)

var (
	addr        = flag.String("addr", "127.0.0.1:7878", "адрес сервера")
	requests    = flag.Int("requests", 200, "сколько запросов отправить")
	concurrency = flag.Int("concurrency", 8, "число параллельных клиентов")
	path        = flag.String("path", "/", "путь запроса")
)

type result struct {
	status  int
	elapsed time.Duration
	err     error
}

func main() {
	flag.Parse()

	log := logger.NewCustomZapLogger(&logger.LoggerConfig{
		LogLevel:    "info",
		ServiceName: "loadgen",
		Development: true,
	})
	defer log.Sync()

	if *requests <= 0 || *concurrency <= 0 {
		log.Fatal("requests и concurrency должны быть положительными",
			zap.Int("requests", *requests), zap.Int("concurrency", *concurrency))
	}

	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	url := fmt.Sprintf("http://%s%s", *addr, *path)
	log.Info(fmt.Sprintf("Отправляем %d запросов на %s (клиентов: %d)", *requests, url, *concurrency))

	results := make([]result, *requests)
	pool := workerpool.New(*concurrency, workerpool.WithName("loadgen"), workerpool.WithLogger(log))

	start := time.Now()
	for i := range results {
		pool.Execute(func() {
			results[i] = fetch(client, url)
		})
	}
	pool.Close()
	total := time.Since(start)

	printSummary(os.Stdout, results, total)
}

func fetch(client *http.Client, url string) result {
	start := time.Now()
	resp, err := client.Get(url)
	if err != nil {
		return result{err: err, elapsed: time.Since(start)}
	}
	defer resp.Body.Close()

	_, err = io.Copy(io.Discard, resp.Body)
	return result{status: resp.StatusCode, elapsed: time.Since(start), err: err}
}

func printSummary(w io.Writer, results []result, total time.Duration) {
	statuses := make(map[int]int)
	var errs int
	var firstErr error
	latencies := make([]time.Duration, 0, len(results))

	for _, r := range results {
		if r.err != nil {
			errs++
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		statuses[r.status]++
		latencies = append(latencies, r.elapsed)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	bold := color.New(color.Bold)
	bold.Fprintf(w, "\nЗапросов: %d за %v (%.1f rps)\n",
		len(results), total.Round(time.Millisecond), float64(len(results))/total.Seconds())

	codes := make([]int, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		statusColor(code).Fprintf(w, "  %d %s: %d\n", code, http.StatusText(code), statuses[code])
	}
	if errs > 0 {
		color.New(color.FgRed).Fprintf(w, "  ошибок: %d (первая: %v)\n", errs, firstErr)
	}

	if len(latencies) > 0 {
		fmt.Fprintf(w, "Задержка: p50=%v p95=%v max=%v\n",
			percentile(latencies, 50), percentile(latencies, 95), latencies[len(latencies)-1])
	}
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed)
	case code >= 400:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

// percentile ожидает отсортированный срез
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := (len(sorted)*p + 99) / 100
	if i > 0 {
		i--
	}
	return sorted[i].Round(time.Microsecond)
}
