package serial

import "time"

// transfer is the Pending implementation for a device opened non-blocking.
// The kernel does the actual work; each Completed call moves whatever the
// device accepts (or has buffered) right now, and Await parks in poll(2)
// until more can move. It is owned by the Send or Receive call that created
// it and never outlives that call.
type transfer struct {
	dev       device
	dir       direction
	buf       []byte
	n         int
	err       error
	cancelled bool
}

func newTransfer(dev device, dir direction, buf []byte) *transfer {
	return &transfer{dev: dev, dir: dir, buf: buf}
}

func (t *transfer) finished() bool {
	return t.err != nil || t.n == len(t.buf)
}

func (t *transfer) step() {
	for !t.finished() && !t.cancelled {
		var n int
		var err error
		if t.dir == dirSend {
			n, err = t.dev.write(t.buf[t.n:])
		} else {
			n, err = t.dev.read(t.buf[t.n:])
		}
		t.n += n
		if err != nil {
			t.err = err
			return
		}
		if n == 0 {
			return
		}
	}
}

func (t *transfer) Completed() bool {
	t.step()
	return t.finished()
}

func (t *transfer) Await(d time.Duration) {
	if t.finished() || t.cancelled {
		return
	}
	if err := t.dev.wait(t.dir, d); err != nil {
		t.err = err
	}
}

func (t *transfer) Cancel() error {
	if t.dev.interrupted() {
		return ErrClosed
	}
	t.cancelled = true
	return nil
}

func (t *transfer) Result() (int, error) {
	for !t.cancelled && !t.Completed() {
		t.Await(Infinite)
	}
	return t.n, t.err
}
