package console

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	readChunk = 256
	// retryDelay paces retries after a transient read failure on redirected input.
	retryDelay = 10 * time.Millisecond
)

// readLoop is the single producer. It never holds the queue lock across a
// read.
func (c *Console) readLoop() {
	defer close(c.readerDone)

	buf := make([]byte, readChunk)
	var norm inputNormalizer
	for !c.terminated.Load() {
		headroom, ok := c.awaitHeadroom()
		if !ok {
			return
		}
		if !c.awaitInput() || c.terminated.Load() {
			return
		}
		if c.in.interactive {
			c.readInteractive(buf[:1], &norm)
		} else {
			c.readRedirected(buf[:min(headroom, len(buf))])
		}
	}
}

// awaitHeadroom blocks while the queue holds MaxReadLength bytes or more and
// returns the free space. It reports false when the console is stopping.
func (c *Console) awaitHeadroom() (int, bool) {
	for {
		queued, changed := c.q.state()
		if free := c.MaxReadLength() - queued; free > 0 {
			return free, true
		}
		select {
		case <-changed:
		case <-c.stop:
			return 0, false
		}
		if c.terminated.Load() {
			return 0, false
		}
	}
}

// awaitInput parks in poll(2) until input is readable or the self-pipe is
// written by Close or termination.
func (c *Console) awaitInput() bool {
	for {
		pfd := []unix.PollFd{
			{Fd: int32(c.in.fd), Events: unix.POLLIN},
			{Fd: int32(c.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			c.logger.Error("Console poll failed", zap.Error(err))
			c.terminate("poll failed")
			return false
		}
		if pfd[1].Revents != 0 {
			return false
		}
		if pfd[0].Revents != 0 {
			return true
		}
	}
}

func (c *Console) readInteractive(b []byte, norm *inputNormalizer) {
	n, err := unix.Read(c.in.fd, b)
	switch {
	case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
		return
	case errors.Is(err, unix.EIO):
		// The terminal hung up.
		c.terminate("terminal hangup")
		return
	case err != nil:
		c.logger.Debug("Console read failed", zap.Error(err))
		return
	case n == 0:
		c.terminate("end of input")
		return
	}

	if c.IsLineInputMode() {
		c.q.push(b[0])
		return
	}
	out, end := norm.feed(b[0])
	if end {
		c.terminate("end of transmission")
		return
	}
	c.q.push(out...)
}

func (c *Console) readRedirected(b []byte) {
	n, err := unix.Read(c.in.fd, b)
	switch {
	case errors.Is(err, unix.EPIPE):
		c.terminate("broken pipe")
	case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
	case err != nil:
		c.logger.Debug("Console read failed, retrying", zap.Error(err))
		select {
		case <-time.After(retryDelay):
		case <-c.stop:
		}
	case n == 0:
		c.terminate("end of input")
	default:
		c.q.push(b[:n]...)
	}
}
