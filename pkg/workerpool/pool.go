// Package workerpool реализует пул с фиксированным числом воркеров,
// которые забирают задачи из общей неограниченной очереди.
package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"poolserver/pkg/logger"
)

// Job единица отложенной работы без аргументов и результата
type Job func()

var (
	// ErrPoolClosed возвращается при отправке задачи после начала остановки пула
	ErrPoolClosed = errors.New("workerpool: pool is closed")

	// ErrNilJob возвращается при отправке nil вместо задачи
	ErrNilJob = errors.New("workerpool: nil job")
)

// Stats снимок состояния пула
type Stats struct {
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Busy      int64  `json:"busy"`
	Completed uint64 `json:"completed"`
	Panicked  uint64 `json:"panicked"`
}

// Pool пул воркеров фиксированного размера
type Pool struct {
	name         string
	workers      []*worker
	ch           *channel
	logger       *logger.CustomZapLogger
	panicHandler func(any)
	observer     Observer

	busy      atomic.Int64
	completed atomic.Uint64
	panicked  atomic.Uint64
	exited    atomic.Int64

	closeOnce sync.Once
}

// New создает пул из size воркеров и сразу запускает их.
// Паникует, если size <= 0: размер пула задается статически и
// некорректное значение является ошибкой программиста.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		panic(fmt.Sprintf("workerpool: size must be positive, got %d", size))
	}

	p := &Pool{
		name:     "workerpool",
		ch:       newChannel(),
		logger:   logger.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named(p.name)
	p.ch.sent = p.observer.JobSubmitted
	p.ch.received = p.observer.JobStarted

	p.workers = make([]*worker, size)
	for i := range p.workers {
		p.workers[i] = startWorker(i, p)
	}
	p.observer.WorkersStarted(size)

	p.logger.Info(fmt.Sprintf("Пул воркеров запущен (воркеров: %d)", size))
	return p
}

// Execute ставит задачу в очередь. Задачу выполнит ровно один воркер.
// Паникует, если пул уже останавливается или job == nil.
func (p *Pool) Execute(job func()) {
	if err := p.Submit(job); err != nil {
		panic(err)
	}
}

// Submit ставит задачу в очередь и возвращает ошибку вместо паники
func (p *Pool) Submit(job func()) error {
	if job == nil {
		return ErrNilJob
	}
	return p.ch.send(message{kind: kindJob, job: job})
}

// Close останавливает пул: каждому воркеру отправляется ровно один сигнал
// завершения, после чего Close ждет выхода всех воркеров. Сигналы встают в
// очередь за уже отправленными задачами, поэтому все принятые задачи будут
// выполнены. Повторные вызовы ничего не делают.
//
// Нельзя вызывать Close из задачи этого же пула.
func (p *Pool) Close() {
	p.closeOnce.Do(p.shutdown)
}

func (p *Pool) shutdown() {
	size := len(p.workers)
	p.logger.Info(fmt.Sprintf("Остановка пула воркеров (в очереди: %d)", p.ch.len()))

	p.ch.terminate(size)
	for _, w := range p.workers {
		<-w.done
	}

	if exited := p.exited.Load(); exited != int64(size) {
		p.logger.Error("Число завершившихся воркеров не совпадает с размером пула",
			zap.Int64("exited", exited), zap.Int("size", size))
	}
	p.observer.WorkersStopped(size)

	p.logger.Info("Пул воркеров остановлен",
		zap.Uint64("completed", p.completed.Load()),
		zap.Uint64("panicked", p.panicked.Load()))
}

// Size возвращает число воркеров
func (p *Pool) Size() int {
	return len(p.workers)
}

// Stats возвращает текущую статистику пула
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   len(p.workers),
		Queued:    p.ch.len(),
		Busy:      p.busy.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}
