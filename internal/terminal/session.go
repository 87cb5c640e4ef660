// Package terminal runs the interactive serial terminal session: port
// selection, the setup command loop and the communication loop.
package terminal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	serial "github.com/luhtfiimanal/go-comterm"
	"github.com/luhtfiimanal/go-comterm/console"
	"github.com/luhtfiimanal/go-comterm/internal/config"
)

// Mode is the session's operating mode.
type Mode int

const (
	// ModeSetup reads commands a line at a time.
	ModeSetup Mode = iota
	// ModeCommunication relays console input to the port and port input to
	// the console.
	ModeCommunication
)

func (m Mode) String() string {
	if m == ModeCommunication {
		return "communication"
	}
	return "setup"
}

// Options configures a Session.
type Options struct {
	Console *console.Console
	Config  *config.Config
	Logger  *zap.Logger

	// Ports lists present ports. Defaults to serial.DetailedPorts.
	Ports func() ([]serial.PortDetails, error)
}

// Session is one run of the terminal.
type Session struct {
	con    *console.Console
	cfg    *config.Config
	logger *zap.Logger
	ports  func() ([]serial.PortDetails, error)

	mu   sync.Mutex
	ch   *serial.Channel
	mode Mode

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wake     chan struct{}

	commands []command
}

// New returns a session that has not started.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Ports == nil {
		opts.Ports = serial.DetailedPorts
	}
	s := &Session{
		con:    opts.Console,
		cfg:    opts.Config,
		logger: opts.Logger.With(zap.String("component", "session")),
		ports:  opts.Ports,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	s.commands = defaultCommands()
	return s
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) channel() *serial.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *Session) setMode(m Mode) {
	s.mu.Lock()
	prev := s.mode
	s.mode = m
	s.mu.Unlock()
	if prev != m {
		s.logger.Info("Mode changed", zap.Stringer("mode", m))
	}
	s.notify()
}

func (s *Session) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Interrupt is the operator's soft stop (Ctrl-C): in communication mode it
// closes the port and returns to setup mode, in setup mode it ends the
// session.
func (s *Session) Interrupt() {
	if s.Mode() == ModeCommunication {
		s.enterSetup()
		return
	}
	s.Stop()
}

// Stop ends the session. Console input is terminated so a pending command
// read returns.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		close(s.done)
		s.con.Terminate()
	})
}

func (s *Session) enterSetup() {
	if ch := s.channel(); ch != nil {
		ch.Close()
	}
	if err := s.con.SetLineInputMode(true); err != nil {
		s.logger.Warn("Failed to enter line input mode", zap.Error(err))
	}
	s.setMode(ModeSetup)
}

// openChannel opens the current channel and switches to communication
// mode, or reports the failure and stays in setup mode.
func (s *Session) openChannel() bool {
	if err := s.channel().Open(); err != nil {
		s.con.PrintErrf("%v\n", err)
		return false
	}
	if err := s.con.SetLineInputMode(false); err != nil {
		s.logger.Warn("Failed to enter character mode", zap.Error(err))
	}
	s.setMode(ModeCommunication)
	return true
}

// replaceChannel binds the session to another port, keeping the settings.
func (s *Session) replaceChannel(name string) {
	s.mu.Lock()
	old := s.ch
	s.ch = serial.NewFrom(name, old)
	s.ch.SetErrorHandler(s.reportLineStatus)
	s.mu.Unlock()
	old.Close()
}

func (s *Session) reportLineStatus(status serial.LineStatus) {
	s.logger.Warn("Link status errors", zap.Strings("errors", status.Names()))
	s.con.PrintErrf("Line status error: %s\n", status)
}

// Run selects the port, opens it and serves the operator until quit,
// Interrupt in setup mode, end of console input in setup mode, or ctx
// cancellation.
func (s *Session) Run(ctx context.Context) (err error) {
	s.running.Store(true)
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()
	defer s.Stop()

	port, err := s.resolvePort()
	if err != nil {
		return err
	}
	s.con.Printf("Selected serial port: %s\n", port)

	settings, err := s.cfg.Serial.Channel()
	if err != nil {
		return err
	}
	ch := serial.New(port, serial.WithLogger(s.logger))
	ch.SetBaudRate(settings.BaudRate)
	ch.SetParity(settings.Parity)
	ch.SetStopBits(settings.StopBits)
	ch.SetDataBits(settings.DataBits)
	ch.SetCTSFlow(settings.CTSFlow)
	ch.SetRTSControl(settings.RTSControl)
	ch.SetErrorHandler(s.reportLineStatus)
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()

	if !s.openChannel() {
		s.enterSetup()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.receiveLoop()
	}()
	defer func() {
		s.Stop()
		err = multierr.Append(err, s.channel().Close())
		wg.Wait()
	}()

	s.con.PrintErr("Press Ctrl-C to change setting mode.\n")

	buf := make([]byte, s.cfg.Console.SendBuffer)
	for s.running.Load() {
		if s.Mode() == ModeSetup {
			if !s.setupStep() {
				break
			}
			continue
		}
		s.communicationStep(buf)
	}
	return nil
}

// setupStep reads and runs one command. It reports false when console
// input has ended.
func (s *Session) setupStep() bool {
	s.con.Print("> ")
	line := s.con.ReadLine()
	if line == "" && s.con.IsInputEOF() {
		return false
	}
	if args := splitArgs(line); len(args) > 0 {
		s.dispatch(args)
	}
	return true
}

// communicationStep sends whatever the console has queued. Ended console
// input does not end the session; the port keeps being received until the
// mode changes.
func (s *Session) communicationStep(buf []byte) {
	if !s.con.WaitInput(s.cfg.Serial.ReceiveTimeout) {
		if s.con.IsInputEOF() {
			select {
			case <-s.wake:
			case <-s.done:
			}
		}
		return
	}
	if s.Mode() != ModeCommunication {
		return
	}
	n, _ := s.con.Read(buf)
	if n == 0 {
		return
	}
	if _, err := s.channel().Send(buf[:n], serial.Infinite); err != nil && !errors.Is(err, serial.ErrClosed) {
		s.logger.Error("Send failed", zap.Error(err))
		s.con.PrintErrf("%v\n", err)
		s.enterSetup()
	}
}

func (s *Session) receiveLoop() {
	buf := make([]byte, s.cfg.Serial.ReceiveBuffer)
	for s.running.Load() {
		ch := s.channel()
		if !ch.IsOpen() {
			select {
			case <-time.After(s.cfg.Serial.ReceiveTimeout):
			case <-s.done:
				return
			}
			continue
		}
		n, err := ch.Receive(buf, s.cfg.Serial.ReceiveTimeout)
		if n > 0 {
			s.con.Write(buf[:n])
		}
		if err != nil && !errors.Is(err, serial.ErrClosed) {
			s.logger.Error("Receive failed", zap.Error(err))
			s.con.PrintErrf("%v\n", err)
			s.enterSetup()
		}
	}
}
