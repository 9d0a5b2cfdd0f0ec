package workerpool

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestChannel_FIFO(t *testing.T) {
	ch := newChannel()
	const n = 3000

	got := make([]int, 0, n)
	for i := 0; i < n; i++ {
		i := i
		if err := ch.send(message{kind: kindJob, job: func() { got = append(got, i) }}); err != nil {
			t.Fatalf("send вернул ошибку: %v", err)
		}
	}
	if ch.len() != n {
		t.Fatalf("неверная длина очереди: got %d, want %d", ch.len(), n)
	}

	for i := 0; i < n; i++ {
		msg := ch.receive()
		if msg.kind != kindJob {
			t.Fatalf("неожиданный тип сообщения %v", msg.kind)
		}
		msg.job()
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("нарушен порядок: позиция %d содержит %d", i, v)
		}
	}
	if ch.len() != 0 {
		t.Errorf("очередь должна быть пустой, got %d", ch.len())
	}
}

func TestChannel_ReceiveBlocks(t *testing.T) {
	ch := newChannel()
	received := make(chan message, 1)

	go func() {
		received <- ch.receive()
	}()

	select {
	case <-received:
		t.Fatal("receive не должен возвращаться на пустой очереди")
	case <-time.After(50 * time.Millisecond):
	}

	if err := ch.send(message{kind: kindTerminate}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-received:
		if msg.kind != kindTerminate {
			t.Errorf("получено не то сообщение: %v", msg.kind)
		}
	case <-time.After(time.Second):
		t.Fatal("receive не проснулся после send")
	}
}

func TestChannel_Terminate(t *testing.T) {
	ch := newChannel()
	_ = ch.send(message{kind: kindJob, job: func() {}})

	ch.terminate(3)

	if err := ch.send(message{kind: kindJob, job: func() {}}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("send после terminate: got %v, want ErrPoolClosed", err)
	}

	// Задача, отправленная до terminate, идет первой
	if msg := ch.receive(); msg.kind != kindJob {
		t.Errorf("первой должна идти задача, got %v", msg.kind)
	}
	for i := 0; i < 3; i++ {
		if msg := ch.receive(); msg.kind != kindTerminate {
			t.Errorf("ожидался сигнал завершения, got %v", msg.kind)
		}
	}
}

func TestChannel_QueueHooks(t *testing.T) {
	ch := newChannel()
	var lengths []int
	ch.sent = func(queued int) { lengths = append(lengths, queued) }
	ch.received = func(queued int) { lengths = append(lengths, -queued) }

	for i := 0; i < 3; i++ {
		_ = ch.send(message{kind: kindJob, job: func() {}})
	}
	ch.terminate(2)
	if ch.len() != 3 {
		t.Errorf("сигналы завершения не должны считаться задачами: len=%d", ch.len())
	}
	for i := 0; i < 5; i++ {
		ch.receive()
	}

	// Отрицательные значения отмечают получение
	want := []int{1, 2, 3, -2, -1, 0}
	if len(lengths) != len(want) {
		t.Fatalf("события очереди: got %v, want %v", lengths, want)
	}
	for i := range want {
		if lengths[i] != want[i] {
			t.Fatalf("события очереди: got %v, want %v", lengths, want)
		}
	}
	if ch.len() != 0 {
		t.Errorf("очередь должна быть пустой, got %d", ch.len())
	}
}

func TestChannel_EachMessageOnce(t *testing.T) {
	ch := newChannel()
	const receivers = 8
	const n = 2000

	var mu sync.Mutex
	seen := make(map[int]int, n)
	var wg sync.WaitGroup

	for r := 0; r < receivers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg := ch.receive()
				if msg.kind == kindTerminate {
					return
				}
				msg.job()
			}
		}()
	}

	for i := 0; i < n; i++ {
		i := i
		_ = ch.send(message{kind: kindJob, job: func() {
			mu.Lock()
			seen[i]++
			mu.Unlock()
		}})
	}
	ch.terminate(receivers)
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("выполнено %d различных задач, want %d", len(seen), n)
	}
	for i, c := range seen {
		if c != 1 {
			t.Errorf("задача %d выполнена %d раз", i, c)
		}
	}
}
