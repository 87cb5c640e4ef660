package serial

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrClosed is returned when a transfer is attempted on, or interrupted by,
// a closed channel.
var ErrClosed = errors.New("serial: channel closed")

// OpenError reports that a device could not be acquired. The channel stays closed.
type OpenError struct {
	Port string
	Err  error
}

func (e *OpenError) Error() string { return fmt.Sprintf("open %s: %v", e.Port, e.Err) }
func (e *OpenError) Unwrap() error { return e.Err }

// Code returns the platform error number, or 0 if the cause carries none.
func (e *OpenError) Code() int { return errnoOf(e.Err) }

// TransferError reports a mechanical send/receive failure or a cancellation
// the device did not acknowledge. A timeout is not a TransferError; it shows
// up as a short count.
type TransferError struct {
	Op   string // send, receive, cancel or status
	Port string
	Err  error
}

func (e *TransferError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err) }
func (e *TransferError) Unwrap() error { return e.Err }

// Code returns the platform error number, or 0 if the cause carries none.
func (e *TransferError) Code() int { return errnoOf(e.Err) }

func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
