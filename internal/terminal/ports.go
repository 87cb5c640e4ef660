package terminal

import (
	"errors"
	"fmt"
	"strconv"

	serial "github.com/luhtfiimanal/go-comterm"
)

var (
	// ErrNoSerialPorts is returned when no port was given and none is present.
	ErrNoSerialPorts = errors.New("no serial ports exist")
	// ErrSelectionCancelled is returned when input ends during port selection.
	ErrSelectionCancelled = errors.New("serial port selection cancelled")
)

// resolvePort returns the configured port, or picks one from the ports
// present: the only one, or the operator's choice among several.
func (s *Session) resolvePort() (string, error) {
	if s.cfg.Serial.Port != "" {
		return s.cfg.Serial.Port, nil
	}
	details, err := s.ports()
	if err != nil {
		return "", err
	}
	switch len(details) {
	case 0:
		return "", ErrNoSerialPorts
	case 1:
		return details[0].Name, nil
	}
	names := make([]string, len(details))
	for i, d := range details {
		names[i] = d.Name
	}
	return s.selectPort(names)
}

func (s *Session) selectPort(names []string) (string, error) {
	if !s.con.IsInputValid() {
		s.con.PrintErr("Port selection not work.\n")
		return "", ErrSelectionCancelled
	}

	s.con.SetLineInputMode(true)
	for {
		s.con.Print("Select serial port.\n")
		for i, name := range names {
			s.con.Printf("  [%d]:%s\n", i, name)
		}
		s.con.Print("  Enter number > ")

		line := s.con.ReadLine()
		if line == "" && s.con.IsInputEOF() {
			return "", ErrSelectionCancelled
		}
		args := splitArgs(line)
		if len(args) == 0 {
			continue
		}
		no, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			s.con.PrintErrf("Invalid number. [%s]\n", args[0])
			continue
		}
		if no >= uint64(len(names)) {
			s.con.PrintErrf("Index must be 0 <= no < %d\n", len(names))
			continue
		}
		return names[no], nil
	}
}

func describePort(d serial.PortDetails) string {
	if !d.IsUSB {
		return d.Name
	}
	desc := fmt.Sprintf("%s [USB %s:%s", d.Name, d.VID, d.PID)
	if d.SerialNumber != "" {
		desc += " " + d.SerialNumber
	}
	if d.Product != "" {
		desc += " " + d.Product
	}
	return desc + "]"
}
