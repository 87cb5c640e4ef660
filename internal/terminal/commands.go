package terminal

import (
	"strings"

	serial "github.com/luhtfiimanal/go-comterm"
)

type command struct {
	name        string
	description string // empty hides the command from help
	run         func(s *Session, args []string)
}

func defaultCommands() []command {
	return []command{
		{"open", "Open serial I/O mode. [port]", cmdOpen},
		{"baudrate", "Set/Get baudrate.", cmdBaudRate},
		{"parity", "Set/Get parity. [" + strings.Join(serial.ParityNames(), "|") + "]", cmdParity},
		{"databits", "Set/Get data bits. [7|8]", cmdDataBits},
		{"stopbits", "Set/Get stop bits. [" + strings.Join(serial.StopBitsNames(), "|") + "]", cmdStopBits},
		{"cts", "Set/Get CTS flow control. [" + strings.Join(serial.CTSFlowNames(), "|") + "]", cmdCTSFlow},
		{"rts", "Set/Get RTS control. [" + strings.Join(serial.RTSControlNames(), "|") + "]", cmdRTSControl},
		{"ports", "List serial ports.", cmdPorts},
		{"argv", "Print argv.", cmdArgv},
		{"help", "Print help messages.", cmdHelp},
		{"quit", "Quit application.", cmdQuit},
		{"q", "", cmdQuit},
	}
}

func (s *Session) dispatch(args []string) {
	for _, c := range s.commands {
		if c.name == args[0] {
			c.run(s, args)
			return
		}
	}
	s.con.PrintErrf("Unknown command. [%s]\n", args[0])
}

func cmdOpen(s *Session, args []string) {
	if len(args) >= 2 {
		s.replaceChannel(args[1])
	}
	s.openChannel()
}

func cmdBaudRate(s *Session, args []string) {
	if len(args) < 2 {
		s.con.Printf("%d\n", s.channel().BaudRate())
		return
	}
	b, err := serial.ParseBaudRate(args[1])
	if err != nil {
		s.con.PrintErrf("Invalid baudrate %s\n", args[1])
		return
	}
	s.channel().SetBaudRate(b)
}

func cmdParity(s *Session, args []string) {
	if len(args) < 2 {
		s.con.Printf("%s\n", s.channel().Parity())
		return
	}
	p, err := serial.ParseParity(args[1])
	if err != nil {
		s.con.PrintErrf("Invalid parity value. %s\n", args[1])
		return
	}
	s.channel().SetParity(p)
}

func cmdDataBits(s *Session, args []string) {
	if len(args) < 2 {
		s.con.Printf("%d\n", s.channel().DataBits())
		return
	}
	n, err := serial.ParseDataBits(args[1])
	if err != nil {
		s.con.PrintErrf("Invalid data bits value. %s\n", args[1])
		return
	}
	s.channel().SetDataBits(n)
}

func cmdStopBits(s *Session, args []string) {
	if len(args) < 2 {
		s.con.Printf("%s\n", s.channel().StopBits())
		return
	}
	v, err := serial.ParseStopBits(args[1])
	if err != nil {
		s.con.PrintErrf("Invalid stop bits value. %s\n", args[1])
		return
	}
	s.channel().SetStopBits(v)
}

func cmdCTSFlow(s *Session, args []string) {
	if len(args) < 2 {
		s.con.Printf("%s\n", s.channel().CTSFlow())
		return
	}
	v, err := serial.ParseCTSFlow(args[1])
	if err != nil {
		s.con.PrintErrf("Invalid CTS flow value. %s\n", args[1])
		return
	}
	s.channel().SetCTSFlow(v)
}

func cmdRTSControl(s *Session, args []string) {
	if len(args) < 2 {
		s.con.Printf("%s\n", s.channel().RTSControl())
		return
	}
	v, err := serial.ParseRTSControl(args[1])
	if err != nil {
		s.con.PrintErrf("Invalid RTS control value. %s\n", args[1])
		return
	}
	s.channel().SetRTSControl(v)
}

func cmdPorts(s *Session, _ []string) {
	details, err := s.ports()
	if err != nil {
		s.con.PrintErrf("%v\n", err)
		return
	}
	if len(details) == 0 {
		s.con.PrintErrf("%v\n", ErrNoSerialPorts)
		return
	}
	for _, d := range details {
		s.con.Printf("  %s\n", describePort(d))
	}
}

func cmdArgv(s *Session, args []string) {
	for i, a := range args {
		s.con.Printf("argv[%d]:%s\n", i, a)
	}
}

func cmdHelp(s *Session, _ []string) {
	for _, c := range s.commands {
		if c.description != "" {
			s.con.Printf("%s - %s\n", c.name, c.description)
		}
	}
}

func cmdQuit(s *Session, _ []string) {
	s.running.Store(false)
}
