package serial

import (
	"errors"
	"io"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

type direction int

const (
	dirReceive direction = iota
	dirSend
)

func (d direction) String() string {
	if d == dirSend {
		return "send"
	}
	return "receive"
}

// device is the OS-facing half of a Channel. read and write never block:
// they return 0, nil when the device is not ready. wait blocks until the
// device may be ready in the given direction, d elapses (d < 0 waits
// forever) or the device is interrupted, in which case it returns ErrClosed.
type device interface {
	read(p []byte) (int, error)
	write(p []byte) (int, error)
	wait(dir direction, d time.Duration) error
	status() (LineStatus, int, error)
	apply(cfg Config) error
	interrupt()
	interrupted() bool
	close() error
}

// fdDevice is a tty opened non-blocking. Blocking is done with poll(2) over
// the tty and a self-pipe, so that Close can wake any goroutine parked in a
// transfer.
type fdDevice struct {
	fd    int
	path  string
	pipeR int
	pipeW int

	done     chan struct{}
	stopOnce sync.Once

	counters    lineCounters
	noCounters  bool
	rs485Active bool
}

func openDevice(path string) (*fdDevice, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	// Exclusive mode: further opens of the tty fail with EBUSY.
	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		unix.Close(fd)
		return nil, err
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	makeRaw(termios)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		unix.Close(fd)
		return nil, err
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, err
	}

	d := &fdDevice{
		fd:    fd,
		path:  path,
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
		done:  make(chan struct{}),
	}
	// Start counting from now; errors seen before the open are not ours.
	if c, err := getCounters(fd); err == nil {
		d.counters = c
	} else {
		d.noCounters = true
	}
	return d, nil
}

func (d *fdDevice) read(p []byte) (int, error) {
	n, err := unix.Read(d.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		// VMIN is 1, so a zero-length read means hangup.
		return 0, io.EOF
	}
	return n, nil
}

func (d *fdDevice) write(p []byte) (int, error) {
	n, err := unix.Write(d.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (d *fdDevice) wait(dir direction, timeout time.Duration) error {
	if d.interrupted() {
		return ErrClosed
	}
	events := int16(unix.POLLIN)
	if dir == dirSend {
		events = unix.POLLOUT
	}
	pfd := []unix.PollFd{
		{Fd: int32(d.fd), Events: events},
		{Fd: int32(d.pipeR), Events: unix.POLLIN},
	}
	_, err := unix.Poll(pfd, pollMillis(timeout))
	if err != nil && !errors.Is(err, unix.EINTR) {
		return err
	}
	if pfd[1].Revents != 0 {
		return ErrClosed
	}
	return nil
}

func (d *fdDevice) status() (LineStatus, int, error) {
	queued, err := unix.IoctlGetInt(d.fd, unix.TIOCINQ)
	if err != nil {
		return 0, 0, err
	}
	var s LineStatus
	if !d.noCounters {
		c, err := getCounters(d.fd)
		if err != nil {
			d.noCounters = true
		} else {
			s = c.since(d.counters)
			d.counters = c
		}
	}
	return s, queued, nil
}

func (d *fdDevice) interrupt() {
	d.stopOnce.Do(func() {
		close(d.done)
		unix.Write(d.pipeW, []byte{1})
	})
}

func (d *fdDevice) interrupted() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *fdDevice) close() error {
	d.interrupt()
	// Drop exclusivity so the tty can be opened again while other
	// descriptors keep it alive.
	unix.IoctlSetInt(d.fd, unix.TIOCNXCL, 0)
	return multierr.Combine(
		unix.Close(d.fd),
		unix.Close(d.pipeR),
		unix.Close(d.pipeW),
	)
}

// pollMillis rounds up so a sub-millisecond remainder still sleeps.
func pollMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

// serialICounter is struct serial_icounter_struct from <linux/serial.h>.
type serialICounter struct {
	Cts        int32
	Dsr        int32
	Rng        int32
	Dcd        int32
	Rx         int32
	Tx         int32
	Frame      int32
	Overrun    int32
	Parity     int32
	Brk        int32
	BufOverrun int32
	Reserved   [9]int32
}

// getCounters fails with ENOTTY on ttys without a UART behind them (ptys, some USB adapters).
func getCounters(fd int) (lineCounters, error) {
	var ic serialICounter
	if err := ioctlPtr(fd, unix.TIOCGICOUNT, unsafe.Pointer(&ic)); err != nil {
		return lineCounters{}, err
	}
	return lineCounters{
		Frame:      ic.Frame,
		Overrun:    ic.Overrun,
		Parity:     ic.Parity,
		Brk:        ic.Brk,
		BufOverrun: ic.BufOverrun,
	}, nil
}

func ioctlPtr(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
