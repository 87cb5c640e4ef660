package serial

import "time"

// Infinite as a timeout makes Send, Receive and Wait block until the
// transfer completes or fails.
const Infinite time.Duration = -1

// Pending is one outstanding asynchronous transfer.
type Pending interface {
	// Completed reports, without blocking, whether the transfer has finished.
	Completed() bool
	// Await blocks until the transfer may have made progress or d elapses.
	// A negative d waits without limit.
	Await(d time.Duration)
	// Cancel asks the device to abandon the transfer. An error means the
	// device did not acknowledge the cancellation.
	Cancel() error
	// Result blocks until the device reports the definitive outcome and
	// returns the number of bytes actually moved.
	Result() (int, error)
}

// Wait drives p to completion under timeout: negative waits forever, zero
// checks once, positive bounds the wait. When the deadline passes first the
// transfer is cancelled. Either way the count comes from a final blocking
// Result, because a cancellation can race a natural completion and only the
// device knows how many bytes really moved. That holds when the cancel itself
// fails too: the count is returned alongside the cancel error.
func Wait(p Pending, timeout time.Duration) (int, error) {
	start := time.Now()
	for !p.Completed() {
		if timeout < 0 {
			p.Await(Infinite)
			continue
		}
		elapsed := time.Since(start)
		if elapsed >= timeout {
			if err := p.Cancel(); err != nil {
				n, _ := p.Result()
				return n, &TransferError{Op: "cancel", Err: err}
			}
			break
		}
		p.Await(timeout - elapsed)
	}
	return p.Result()
}
