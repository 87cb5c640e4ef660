// Package console turns the process's standard streams into a bounded,
// goroutine-safe byte queue.
//
// A single background reader fills the queue from standard input. When the
// input is a terminal it reads one byte at a time, and in character mode it
// rewrites bare CR and bare LF as CR LF and treats Ctrl-D (EOT) as end of
// input. When the input is redirected it reads blocks bounded by the free
// space under MaxReadLength. Foreground callers drain the queue with
// ReadLine, Read and ReadTimeout.
//
// End of input is a one-way latch (IsInputEOF). It is set by end of file or
// a broken pipe on redirected input, by EOT or hangup on a terminal, by
// SIGHUP, SIGQUIT or SIGTERM when signal handling is enabled, and by
// Terminate and Close.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const defaultMaxReadLength = 256

// Infinite as a ReadTimeout timeout waits until the buffer is full or input ends.
const Infinite time.Duration = -1

var (
	// ErrInvalidBuffer is returned for a nil or empty destination buffer.
	ErrInvalidBuffer = errors.New("console: invalid buffer")
	// ErrInvalidLength is returned by SetMaxReadLength for a bound below one.
	ErrInvalidLength = errors.New("console: invalid read length")
	// ErrUnavailable is returned when writing to a stream that is not connected.
	ErrUnavailable = errors.New("console: stream unavailable")
)

// Options configures Open. Nil streams default to the process's standard
// streams.
type Options struct {
	Input  *os.File
	Output *os.File
	Error  *os.File

	Logger *zap.Logger

	// MaxReadLength bounds how far the reader runs ahead of consumers.
	// Zero means 256.
	MaxReadLength int

	// HandleSignals latches end of input on SIGHUP, SIGQUIT and SIGTERM.
	HandleSignals bool
}

// Console is the process console. Open it once and share it.
type Console struct {
	in     Stream
	out    Stream
	errOut Stream

	logger *zap.Logger

	q          *queue
	terminated atomic.Bool
	maxRead    atomic.Int64

	modeMu sync.Mutex
	saved  *term.State

	outMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once

	pipeMu     sync.Mutex // guards pipeW against Close
	pipeR      int
	pipeW      int
	readerDone chan struct{}

	signals chan os.Signal
}

// Open resolves the three streams, switches an interactive input to
// character mode and starts the background reader. If the input is not
// usable the console starts out terminated and no reader runs.
func Open(opts Options) (*Console, error) {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Error == nil {
		opts.Error = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxReadLength <= 0 {
		opts.MaxReadLength = defaultMaxReadLength
	}

	c := &Console{
		in:     resolveStream(opts.Input),
		out:    resolveStream(opts.Output),
		errOut: resolveStream(opts.Error),
		logger: opts.Logger.With(zap.String("component", "console")),
		q:      newQueue(),
		stop:   make(chan struct{}),
		pipeR:  -1,
		pipeW:  -1,
	}
	c.maxRead.Store(int64(opts.MaxReadLength))

	if c.in.interactive {
		if st, err := term.GetState(c.in.fd); err == nil {
			c.saved = st
		}
		if _, err := c.in.modify(LineInputMode, false); err != nil {
			c.logger.Warn("Failed to enter character mode", zap.Error(err))
		}
	}

	if opts.HandleSignals {
		c.watchSignals()
	}

	if !c.in.valid {
		c.terminate("input unavailable")
		return c, nil
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		c.stopSignals()
		c.restore()
		return nil, err
	}
	c.pipeMu.Lock()
	c.pipeR, c.pipeW = fds[0], fds[1]
	c.pipeMu.Unlock()
	if c.terminated.Load() {
		c.wakeReader()
	}
	c.readerDone = make(chan struct{})
	go c.readLoop()

	c.logger.Debug("Console opened",
		zap.Bool("input_interactive", c.in.interactive),
		zap.Bool("output_interactive", c.out.interactive),
		zap.Int("max_read_length", opts.MaxReadLength),
	)
	return c, nil
}

// Close stops the reader, restores the terminal to the state it had at Open
// and latches end of input. The streams themselves are not closed.
func (c *Console) Close() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)
		c.wakeReader()
		if c.readerDone != nil {
			<-c.readerDone
		}
		c.stopSignals()
		c.terminate("console closed")
		err = c.restore()
		c.pipeMu.Lock()
		if c.pipeR >= 0 {
			err = multierr.Append(err, unix.Close(c.pipeR))
			err = multierr.Append(err, unix.Close(c.pipeW))
			c.pipeR, c.pipeW = -1, -1
		}
		c.pipeMu.Unlock()
	})
	return err
}

// wakeReader interrupts the reader's poll.
func (c *Console) wakeReader() {
	c.pipeMu.Lock()
	defer c.pipeMu.Unlock()
	if c.pipeW >= 0 {
		unix.Write(c.pipeW, []byte{1})
	}
}

func (c *Console) restore() error {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()
	if c.saved == nil {
		return nil
	}
	if err := term.Restore(c.in.fd, c.saved); err != nil {
		return err
	}
	if m, err := readMode(c.in.fd); err == nil {
		c.in.mode = m
	}
	return nil
}

// terminate latches end of input once, stops the reader and wakes every
// waiting consumer. Input arriving afterwards is left unread.
func (c *Console) terminate(cause string) {
	if c.terminated.CompareAndSwap(false, true) {
		c.logger.Info("Console input terminated", zap.String("cause", cause))
		c.wakeReader()
	}
	c.q.notify()
}

// Terminate latches end of input as a close notification would.
func (c *Console) Terminate() { c.terminate("terminate requested") }

// IsInputEOF reports whether input has ended for good. Bytes already queued
// can still be read.
func (c *Console) IsInputEOF() bool { return c.terminated.Load() }

// Valid reports whether input is connected and has not ended.
func (c *Console) Valid() bool { return c.in.valid && !c.terminated.Load() }

// IsInputValid reports whether the input stream was usable at Open.
func (c *Console) IsInputValid() bool { return c.in.valid }

// IsOutputValid reports whether the output stream was usable at Open.
func (c *Console) IsOutputValid() bool { return c.out.valid }

// IsErrorValid reports whether the error stream was usable at Open.
func (c *Console) IsErrorValid() bool { return c.errOut.valid }

// Input returns the input stream description.
func (c *Console) Input() *Stream { return &c.in }

// MaxReadLength returns the reader's run-ahead bound.
func (c *Console) MaxReadLength() int { return int(c.maxRead.Load()) }

// SetMaxReadLength changes the reader's run-ahead bound.
func (c *Console) SetMaxReadLength(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	c.maxRead.Store(int64(n))
	c.q.notify()
	return nil
}

// Buffered returns the number of queued bytes.
func (c *Console) Buffered() int { return c.q.len() }

// SetLineInputMode switches an interactive input between line mode (echo,
// line editing, delivery by line) and character mode. It does nothing for
// redirected input.
func (c *Console) SetLineInputMode(on bool) error {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()
	ok, err := c.in.modify(LineInputMode, on)
	if err != nil {
		return err
	}
	if ok {
		c.logger.Debug("Console mode changed", zap.Stringer("mode", c.in.mode))
	}
	return nil
}

// IsLineInputMode reports whether an interactive input is in line mode.
func (c *Console) IsLineInputMode() bool {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()
	return c.in.mode&LineInput != 0
}

// ReadLine returns the next line including its LF. If input ends first it
// returns what was collected, and "" once nothing is left.
func (c *Console) ReadLine() string {
	line, _ := c.readLine(nil, -1)
	return string(line)
}

// ReadLineInto reads a line into buf, stopping after an LF or at len(buf)-1
// bytes, and writes a terminating zero byte after the data. It returns the
// data length.
func (c *Console) ReadLineInto(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, ErrInvalidBuffer
	}
	line, _ := c.readLine(buf[:0], len(buf)-1)
	buf[len(line)] = 0
	return len(line), nil
}

func (c *Console) readLine(dst []byte, max int) ([]byte, bool) {
	for max != 0 {
		n := len(dst)
		var found bool
		dst, found = c.q.popLine(dst, lf, max)
		if found {
			return dst, true
		}
		if max > 0 {
			max -= len(dst) - n
			if max == 0 {
				break
			}
		}
		if len(dst) > n {
			continue
		}
		queued, changed := c.q.state()
		if queued > 0 {
			continue
		}
		if c.terminated.Load() {
			break
		}
		<-changed
	}
	return dst, false
}

// Read moves up to len(p) queued bytes into p without waiting. With nothing
// queued it returns 0 and a nil error, or io.EOF once input has ended.
func (c *Console) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, ErrInvalidBuffer
	}
	n := c.q.pop(p)
	if n == 0 && c.terminated.Load() && c.q.len() == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// WaitInput blocks until bytes are queued, input ends or timeout elapses. A
// negative timeout waits without limit. It reports whether bytes are queued.
func (c *Console) WaitInput(timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		queued, changed := c.q.state()
		if queued > 0 {
			return true
		}
		if c.terminated.Load() || timeout == 0 {
			return false
		}
		select {
		case <-changed:
		case <-expired:
			return false
		}
	}
}

// ReadTimeout fills p from the queue until it is full, input ends or
// timeout elapses. A negative timeout waits without limit; zero drains once.
func (c *Console) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, ErrInvalidBuffer
	}
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	n := 0
	for {
		n += c.q.pop(p[n:])
		if n == len(p) {
			return n, nil
		}
		queued, changed := c.q.state()
		if queued > 0 {
			continue
		}
		if c.terminated.Load() {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		if timeout == 0 {
			return n, nil
		}
		select {
		case <-changed:
		case <-expired:
			return n, nil
		}
	}
}
