package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "poolserver"

// Результаты обработки принятого соединения
const (
	ResultServed      = "served"
	ResultRateLimited = "rate_limited"
	ResultRejected    = "rejected"
)

// Collector метрики пула воркеров и сервера на собственном реестре.
// Реализует workerpool.Observer.
type Collector struct {
	registry *prometheus.Registry

	workers       prometheus.Gauge
	busyWorkers   prometheus.Gauge
	queueDepth    prometheus.Gauge
	jobsSubmitted prometheus.Counter
	jobsCompleted prometheus.Counter
	jobPanics     prometheus.Counter
	jobDuration   prometheus.Histogram

	connections     *prometheus.CounterVec
	responses       *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector создает и регистрирует все метрики
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "workers",
			Help:      "Number of live pool workers.",
		}),
		busyWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "busy_workers",
			Help:      "Number of workers currently running a job.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the pool queue.",
		}),
		jobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_submitted_total",
			Help:      "Jobs accepted by the pool.",
		}),
		jobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_completed_total",
			Help:      "Jobs that returned normally.",
		}),
		jobPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "panics_total",
			Help:      "Jobs that panicked and were recovered.",
		}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Job execution time.",
			Buckets:   prometheus.DefBuckets,
		}),

		connections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted connections by result.",
		}, []string{"result"}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses written by status code.",
		}, []string{"status"}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from dequeue to response written.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (c *Collector) WorkersStarted(n int) {
	c.workers.Add(float64(n))
}

func (c *Collector) WorkersStopped(n int) {
	c.workers.Sub(float64(n))
}

func (c *Collector) JobSubmitted(queued int) {
	c.jobsSubmitted.Inc()
	c.queueDepth.Set(float64(queued))
}

func (c *Collector) JobStarted(queued int) {
	c.queueDepth.Set(float64(queued))
	c.busyWorkers.Inc()
}

func (c *Collector) JobFinished(elapsed time.Duration, panicked bool) {
	c.busyWorkers.Dec()
	c.jobDuration.Observe(elapsed.Seconds())
	if panicked {
		c.jobPanics.Inc()
		return
	}
	c.jobsCompleted.Inc()
}

// Connection учитывает принятое соединение с результатом обработки
func (c *Collector) Connection(result string) {
	c.connections.WithLabelValues(result).Inc()
}

// Response учитывает записанный ответ
func (c *Collector) Response(status int, elapsed time.Duration) {
	c.responses.WithLabelValues(strconv.Itoa(status)).Inc()
	c.requestDuration.Observe(elapsed.Seconds())
}

// Handler отдает метрики в формате Prometheus
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry возвращает реестр метрик
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
