package serial

import (
	"fmt"
	"strconv"
)

// Parity selects the parity bit mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// StopBits selects the number of stop bits.
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsOne5
	StopBitsTwo
)

// CTSFlow controls whether transmission waits on the peer's RTS (our CTS) line.
type CTSFlow int

const (
	CTSFlowDisabled CTSFlow = iota
	CTSFlowEnabled
)

// RTSControl selects how the RTS output line is driven.
type RTSControl int

const (
	RTSControlDisabled  RTSControl = iota // held low
	RTSControlEnabled                     // held high
	RTSControlHandshake                   // hardware RTS/CTS handshake
	RTSControlToggle                      // raised only while transmitting
)

// Config holds the link parameters of a Channel.
type Config struct {
	BaudRate   uint32
	DataBits   int
	Parity     Parity
	StopBits   StopBits
	CTSFlow    CTSFlow
	RTSControl RTSControl
}

// DefaultConfig returns the parameters a freshly constructed Channel starts with.
func DefaultConfig() Config {
	return Config{
		BaudRate:   9600,
		DataBits:   8,
		Parity:     ParityNone,
		StopBits:   StopBitsOne,
		CTSFlow:    CTSFlowDisabled,
		RTSControl: RTSControlDisabled,
	}
}

// ValidBaudRate reports whether b is a usable baud rate.
func ValidBaudRate(b uint32) bool { return b > 0 }

// ValidDataBits reports whether n is 7 or 8.
func ValidDataBits(n int) bool { return n == 7 || n == 8 }

func (p Parity) Valid() bool     { return p >= ParityNone && p <= ParityOdd }
func (s StopBits) Valid() bool   { return s >= StopBitsOne && s <= StopBitsTwo }
func (c CTSFlow) Valid() bool    { return c == CTSFlowDisabled || c == CTSFlowEnabled }
func (r RTSControl) Valid() bool { return r >= RTSControlDisabled && r <= RTSControlToggle }

// Validate checks every field against its legal value set.
func (c Config) Validate() error {
	switch {
	case !ValidBaudRate(c.BaudRate):
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	case !ValidDataBits(c.DataBits):
		return fmt.Errorf("invalid data bits %d", c.DataBits)
	case !c.Parity.Valid():
		return fmt.Errorf("invalid parity %d", c.Parity)
	case !c.StopBits.Valid():
		return fmt.Errorf("invalid stop bits %d", c.StopBits)
	case !c.CTSFlow.Valid():
		return fmt.Errorf("invalid cts flow %d", c.CTSFlow)
	case !c.RTSControl.Valid():
		return fmt.Errorf("invalid rts control %d", c.RTSControl)
	}
	return nil
}

var parityNames = []string{"none", "even", "odd"}
var stopBitsNames = []string{"1", "1.5", "2"}
var ctsFlowNames = []string{"disable", "enable"}
var rtsControlNames = []string{"low", "high", "handshake", "toggle"}

func (p Parity) String() string     { return enumName(parityNames, int(p)) }
func (s StopBits) String() string   { return enumName(stopBitsNames, int(s)) }
func (c CTSFlow) String() string    { return enumName(ctsFlowNames, int(c)) }
func (r RTSControl) String() string { return enumName(rtsControlNames, int(r)) }

// ParityNames lists the accepted textual parity values in enum order.
func ParityNames() []string { return append([]string(nil), parityNames...) }

// StopBitsNames lists the accepted textual stop-bit values in enum order.
func StopBitsNames() []string { return append([]string(nil), stopBitsNames...) }

// CTSFlowNames lists the accepted textual CTS flow values in enum order.
func CTSFlowNames() []string { return append([]string(nil), ctsFlowNames...) }

// RTSControlNames lists the accepted textual RTS control values in enum order.
func RTSControlNames() []string { return append([]string(nil), rtsControlNames...) }

// ParseParity converts "none", "even" or "odd".
func ParseParity(s string) (Parity, error) {
	i, err := enumValue(parityNames, "parity", s)
	return Parity(i), err
}

// ParseStopBits converts "1", "1.5" or "2".
func ParseStopBits(s string) (StopBits, error) {
	i, err := enumValue(stopBitsNames, "stop bits", s)
	return StopBits(i), err
}

// ParseCTSFlow converts "enable" or "disable".
func ParseCTSFlow(s string) (CTSFlow, error) {
	i, err := enumValue(ctsFlowNames, "cts flow", s)
	return CTSFlow(i), err
}

// ParseRTSControl converts "low", "high", "handshake" or "toggle".
func ParseRTSControl(s string) (RTSControl, error) {
	i, err := enumValue(rtsControlNames, "rts control", s)
	return RTSControl(i), err
}

// ParseBaudRate converts a positive decimal integer.
func ParseBaudRate(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || !ValidBaudRate(uint32(v)) {
		return 0, fmt.Errorf("invalid baud rate: %q", s)
	}
	return uint32(v), nil
}

// ParseDataBits converts "7" or "8".
func ParseDataBits(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || !ValidDataBits(v) {
		return 0, fmt.Errorf("invalid data bits: %q", s)
	}
	return v, nil
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return "unknown(" + strconv.Itoa(i) + ")"
	}
	return names[i]
}

func enumValue(names []string, what, s string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("invalid %s: %q", what, s)
}
