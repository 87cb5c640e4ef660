package serial

import "strings"

// LineStatus is a set of link-status error bits observed by a receive.
type LineStatus uint32

const (
	LineBreak LineStatus = 1 << iota
	LineFramingError
	LineOverrun
	LineReceiveOverflow
	LineReceiveParityError
)

var lineStatusNames = []struct {
	bit  LineStatus
	name string
}{
	{LineBreak, "break"},
	{LineFramingError, "framing"},
	{LineOverrun, "overrun"},
	{LineReceiveOverflow, "rx-overflow"},
	{LineReceiveParityError, "rx-parity"},
}

// Has reports whether every bit of b is set in s.
func (s LineStatus) Has(b LineStatus) bool { return s&b == b }

// Names returns the names of the set bits.
func (s LineStatus) Names() []string {
	var names []string
	for _, n := range lineStatusNames {
		if s&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (s LineStatus) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), "|")
}

// ErrorHandler receives link-status errors, synchronously, on the goroutine
// calling Receive.
type ErrorHandler func(LineStatus)

// lineCounters mirrors the error fields of the kernel's serial_icounter_struct.
// The driver only counts up, so the status is derived from the difference
// between two snapshots, which reports each occurrence exactly once.
type lineCounters struct {
	Frame      int32
	Overrun    int32
	Parity     int32
	Brk        int32
	BufOverrun int32
}

func (c lineCounters) since(prev lineCounters) LineStatus {
	var s LineStatus
	if c.Brk != prev.Brk {
		s |= LineBreak
	}
	if c.Frame != prev.Frame {
		s |= LineFramingError
	}
	if c.Overrun != prev.Overrun {
		s |= LineOverrun
	}
	if c.BufOverrun != prev.BufOverrun {
		s |= LineReceiveOverflow
	}
	if c.Parity != prev.Parity {
		s |= LineReceiveParityError
	}
	return s
}
