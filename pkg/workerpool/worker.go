package workerpool

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"poolserver/pkg/logger"
)

// worker одна долгоживущая горутина пула. done закрывается при выходе.
type worker struct {
	id   int
	done chan struct{}
}

func startWorker(id int, p *Pool) *worker {
	w := &worker{
		id:   id,
		done: make(chan struct{}),
	}
	go w.loop(p)
	return w
}

func (w *worker) loop(p *Pool) {
	defer close(w.done)
	defer p.exited.Add(1)

	log := p.logger.With(zap.Int("worker", w.id))
	log.Debug("Воркер запущен")

	for {
		msg := p.ch.receive()
		switch msg.kind {
		case kindJob:
			p.run(msg.job, log)
		case kindTerminate:
			// После первого сигнала воркер выходит и второй получить уже не может
			log.Debug("Воркер получил сигнал завершения")
			return
		}
	}
}

// run выполняет задачу вне блокировки очереди. Паника в задаче
// перехватывается, и воркер продолжает работу.
func (p *Pool) run(job Job, log *logger.CustomZapLogger) {
	p.busy.Add(1)
	start := time.Now()
	panicked := false

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			p.panicked.Add(1)
			log.Error(fmt.Sprintf("Паника в задаче перехвачена: %v", r),
				zap.ByteString("stack", debug.Stack()))
			p.notifyPanic(r, log)
		} else {
			p.completed.Add(1)
		}
		p.busy.Add(-1)
		p.observer.JobFinished(time.Since(start), panicked)
	}()

	job()
}

func (p *Pool) notifyPanic(r any, log *logger.CustomZapLogger) {
	if p.panicHandler == nil {
		return
	}
	defer func() {
		if r2 := recover(); r2 != nil {
			log.Error(fmt.Sprintf("Паника в обработчике паники: %v", r2))
		}
	}()
	p.panicHandler(r)
}
