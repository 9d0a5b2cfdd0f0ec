package workerpool

import (
	"time"

	"poolserver/pkg/logger"
)

// Option настраивает пул при создании
type Option func(*Pool)

// WithName задает имя пула в логах
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger задает логгер пула
func WithLogger(l *logger.CustomZapLogger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPanicHandler задает обработчик, который вызывается для каждой
// перехваченной паники после записи в лог
func WithPanicHandler(h func(any)) Option {
	return func(p *Pool) {
		p.panicHandler = h
	}
}

// WithObserver подключает наблюдателя (метрики)
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.observer = o
		}
	}
}

// Observer получает события жизненного цикла пула.
// Методы вызываются из воркеров и отправителей конкурентно.
// JobSubmitted и JobStarted вызываются под мьютексом очереди и получают
// число задач в очереди после события, они не должны блокироваться.
type Observer interface {
	WorkersStarted(n int)
	WorkersStopped(n int)
	JobSubmitted(queued int)
	JobStarted(queued int)
	JobFinished(elapsed time.Duration, panicked bool)
}

type nopObserver struct{}

func (nopObserver) WorkersStarted(int)              {}
func (nopObserver) WorkersStopped(int)              {}
func (nopObserver) JobSubmitted(int)                {}
func (nopObserver) JobStarted(int)                  {}
func (nopObserver) JobFinished(time.Duration, bool) {}
