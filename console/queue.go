package console

import "sync"

// queue is the byte FIFO between the background reader and foreground
// consumers. Every change closes the current signal channel and installs a
// fresh one, so a waiter that fetched the channel under the lock cannot miss
// a push, a pop or a termination that happens after it looked.
type queue struct {
	mu     sync.Mutex
	data   []byte
	head   int
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{})}
}

// notifyLocked wakes every current waiter.
func (q *queue) notifyLocked() {
	close(q.signal)
	q.signal = make(chan struct{})
}

func (q *queue) notify() {
	q.mu.Lock()
	q.notifyLocked()
	q.mu.Unlock()
}

func (q *queue) push(b ...byte) {
	if len(b) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.data) {
		q.data = q.data[:0]
		q.head = 0
	} else if q.head > len(q.data)/2 {
		n := copy(q.data, q.data[q.head:])
		q.data = q.data[:n]
		q.head = 0
	}
	q.data = append(q.data, b...)
	q.notifyLocked()
}

// pop moves up to len(p) bytes into p.
func (q *queue) pop(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := copy(p, q.data[q.head:])
	if n > 0 {
		q.head += n
		q.notifyLocked()
	}
	return n
}

// popLine appends bytes to dst up to and including the first delim, taking
// no more than max bytes (max < 0 is unbounded). found reports whether delim
// was taken.
func (q *queue) popLine(dst []byte, delim byte, max int) (out []byte, found bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	start := q.head
	for q.head < len(q.data) && max != 0 {
		c := q.data[q.head]
		q.head++
		max--
		if c == delim {
			found = true
			break
		}
	}
	if q.head != start {
		dst = append(dst, q.data[start:q.head]...)
		q.notifyLocked()
	}
	return dst, found
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data) - q.head
}

// state returns the buffered length together with the channel that is
// closed on the next change.
func (q *queue) state() (int, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data) - q.head, q.signal
}
