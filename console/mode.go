package console

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// ModeFlags is the set of input editing functions of an interactive console.
type ModeFlags uint32

const (
	EchoInput  ModeFlags = 1 << iota // typed characters are echoed
	InsertMode                       // erase and kill keys edit the pending line
	LineInput                        // input is delivered a line at a time
	QuickEdit                        // terminal-side selection; tracked, no tty flag

	// LineInputMode is the group toggled by SetLineInputMode.
	LineInputMode = EchoInput | InsertMode | LineInput | QuickEdit
)

var modeFlagNames = []struct {
	flag ModeFlags
	name string
}{
	{EchoInput, "echo"},
	{InsertMode, "insert"},
	{LineInput, "line"},
	{QuickEdit, "quickedit"},
}

func (m ModeFlags) String() string {
	var names []string
	for _, n := range modeFlagNames {
		if m&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// lflags maps each mode flag to the termios local flags that implement it.
func (m ModeFlags) lflags() uint32 {
	var f uint32
	if m&EchoInput != 0 {
		f |= unix.ECHO
	}
	if m&InsertMode != 0 {
		f |= unix.ECHOE | unix.ECHOK | unix.IEXTEN
	}
	if m&LineInput != 0 {
		f |= unix.ICANON
	}
	return f
}

// readMode derives the current flags from the tty. QuickEdit has no tty
// counterpart and is reported as on whenever line input is.
func readMode(fd int) (ModeFlags, error) {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return 0, err
	}
	var m ModeFlags
	if t.Lflag&unix.ECHO != 0 {
		m |= EchoInput
	}
	if t.Lflag&unix.IEXTEN != 0 {
		m |= InsertMode
	}
	if t.Lflag&unix.ICANON != 0 {
		m |= LineInput | QuickEdit
	}
	return m, nil
}

// writeMode switches the tty to exactly the flags in m. Signal generation
// (ISIG) is left alone in every mode so Ctrl-C still reaches the process.
func writeMode(fd int, m ModeFlags) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Lflag &^= LineInputMode.lflags()
	t.Lflag |= m.lflags()
	if m&LineInput == 0 {
		t.Cc[unix.VMIN] = 1
		t.Cc[unix.VTIME] = 0
	}
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set console mode %s: %w", m, err)
	}
	return nil
}

// modify enables or disables functions on an interactive stream. It is a
// no-op, reporting false, for redirected streams.
func (s *Stream) modify(functions ModeFlags, enable bool) (bool, error) {
	if !s.interactive {
		return false, nil
	}
	next := s.mode &^ functions
	if enable {
		next = s.mode | functions
	}
	if next == s.mode {
		return true, nil
	}
	if err := writeMode(s.fd, next); err != nil {
		return false, err
	}
	s.mode = next
	return true, nil
}
