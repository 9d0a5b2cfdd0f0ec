package workerpool

import "sync"

type messageKind int

const (
	kindJob messageKind = iota
	kindTerminate
)

// message управляющее сообщение: либо задача, либо сигнал завершения воркеру
type message struct {
	kind messageKind
	job  Job
}

// channel неограниченная FIFO-очередь сообщений.
// Отправлять могут несколько горутин одновременно, получатели (воркеры)
// разделяют одну принимающую сторону под мьютексом.
//
// Хуки sent и received вызываются под мьютексом для каждой задачи с числом
// задач, оставшихся в очереди, поэтому наблюдатель видит длины по порядку.
type channel struct {
	mu           sync.Mutex
	notEmpty     *sync.Cond
	buf          []message
	head         int
	jobs         int
	disconnected bool

	sent     func(queued int)
	received func(queued int)
}

func newChannel() *channel {
	ch := &channel{}
	ch.notEmpty = sync.NewCond(&ch.mu)
	return ch
}

// send кладет сообщение в конец очереди и будит одного ожидающего получателя
func (c *channel) send(msg message) error {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return ErrPoolClosed
	}
	c.buf = append(c.buf, msg)
	if msg.kind == kindJob {
		c.jobs++
		if c.sent != nil {
			c.sent(c.jobs)
		}
	}
	c.mu.Unlock()

	c.notEmpty.Signal()
	return nil
}

// receive блокируется, пока в очереди не появится сообщение.
// Каждое сообщение достается ровно одному получателю.
func (c *channel) receive() message {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.head == len(c.buf) {
		c.notEmpty.Wait()
	}

	msg := c.buf[c.head]
	c.buf[c.head] = message{}
	c.head++
	if msg.kind == kindJob {
		c.jobs--
		if c.received != nil {
			c.received(c.jobs)
		}
	}

	// Очередь опустела: переиспользуем буфер с начала
	if c.head == len(c.buf) {
		c.buf = c.buf[:0]
		c.head = 0
	} else if c.head > 1024 && c.head*2 >= len(c.buf) {
		n := copy(c.buf, c.buf[c.head:])
		clear(c.buf[n:])
		c.buf = c.buf[:n]
		c.head = 0
	}

	return msg
}

// terminate закрывает отправляющую сторону для пользователей и ставит в
// очередь n сигналов завершения. Сигналы встают за всеми уже принятыми задачами.
func (c *channel) terminate(n int) {
	c.mu.Lock()
	c.disconnected = true
	for i := 0; i < n; i++ {
		c.buf = append(c.buf, message{kind: kindTerminate})
	}
	c.mu.Unlock()

	c.notEmpty.Broadcast()
}

// len число задач в очереди без сигналов завершения
func (c *channel) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs
}
