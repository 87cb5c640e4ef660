package console

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// Stream is one of the three console devices, resolved once when the
// console is opened.
type Stream struct {
	file        *os.File
	fd          int
	valid       bool
	interactive bool
	mode        ModeFlags
}

func resolveStream(f *os.File) Stream {
	if f == nil {
		return Stream{fd: -1}
	}
	fd := int(f.Fd())
	if fd < 0 {
		return Stream{fd: -1}
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return Stream{fd: -1}
	}
	s := Stream{file: f, fd: fd, valid: true}
	if isatty.IsTerminal(uintptr(fd)) {
		if m, err := readMode(fd); err == nil {
			s.interactive = true
			s.mode = m
		}
	}
	return s
}

// Valid reports whether the stream is connected to anything at all.
func (s *Stream) Valid() bool { return s.valid }

// Interactive reports whether the stream is a terminal rather than a file or pipe.
func (s *Stream) Interactive() bool { return s.interactive }

// Mode returns the current editing functions; zero for redirected streams.
func (s *Stream) Mode() ModeFlags { return s.mode }
