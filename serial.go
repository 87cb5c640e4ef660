package serial

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Channel is one serial endpoint, open or closed. Configuration may be
// changed in either state; it reaches the device only while open.
//
// Send and Receive may run concurrently with each other (they address
// independent directions of the device). Open and Close wait for in-flight
// transfers after waking them; the setters and SetErrorHandler never do.
type Channel struct {
	mu   sync.RWMutex // transfers hold the read lock for their duration
	name string
	dev  device

	cfgMu   sync.Mutex
	cfg     Config
	handler ErrorHandler

	// applyMu orders applies against each other and against Close.
	applyMu sync.Mutex

	// live is the open device, readable without mu so that Close can wake
	// transfers that hold the read lock and setters can reach the device.
	liveMu sync.Mutex
	live   device

	logger *zap.Logger
	opener func(path string) (device, error)
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger used for open/close and settings events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a closed channel bound to the named port with DefaultConfig.
func New(name string, opts ...Option) *Channel {
	c := &Channel{
		name:   name,
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
		opener: openFdDevice,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFrom returns a closed channel bound to name that starts with ref's
// configuration and logger. Neither ref's open state nor its error handler
// is carried over.
func NewFrom(name string, ref *Channel, opts ...Option) *Channel {
	c := New(name, append([]Option{WithLogger(ref.logger)}, opts...)...)
	c.cfg = ref.Config()
	c.opener = ref.opener
	return c
}

func openFdDevice(path string) (device, error) {
	d, err := openDevice(path)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DevicePath maps a logical port name such as "ttyUSB0" to its device node.
// Names that already contain a slash are used as given.
func DevicePath(name string) string {
	if strings.ContainsRune(name, '/') {
		return name
	}
	return "/dev/" + name
}

// Name returns the logical port name.
func (c *Channel) Name() string { return c.name }

// Path returns the device node the channel opens.
func (c *Channel) Path() string { return DevicePath(c.name) }

// IsOpen reports whether the channel holds the device.
func (c *Channel) IsOpen() bool {
	return c.current() != nil
}

// Open acquires the device exclusively and applies the current
// configuration, closing first if already open. On failure it returns an
// *OpenError and the channel stays closed. A configuration the device
// rejects does not fail the open.
func (c *Channel) Open() error {
	c.wake()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev != nil {
		c.closeLocked()
	}

	dev, err := c.opener(c.Path())
	if err != nil {
		c.logger.Error("Failed to open serial port",
			zap.String("port", c.name),
			zap.Error(err),
		)
		return &OpenError{Port: c.name, Err: err}
	}
	c.dev = dev

	c.applyMu.Lock()
	c.setLive(dev)
	_ = c.applyTo(dev)
	c.applyMu.Unlock()

	c.logger.Info("Serial port opened",
		zap.String("port", c.name),
		zap.Uint32("baud_rate", c.Config().BaudRate),
	)
	return nil
}

// Close releases the device. It is a no-op on a closed channel. Transfers
// in flight are woken and fail with ErrClosed.
func (c *Channel) Close() error {
	c.wake()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Channel) wake() {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()
	if c.live != nil {
		c.live.interrupt()
	}
}

func (c *Channel) setLive(dev device) {
	c.liveMu.Lock()
	c.live = dev
	c.liveMu.Unlock()
}

func (c *Channel) current() device {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()
	return c.live
}

func (c *Channel) closeLocked() error {
	if c.dev == nil {
		return nil
	}
	c.applyMu.Lock()
	c.setLive(nil)
	err := c.dev.close()
	c.applyMu.Unlock()
	c.dev = nil
	if err != nil {
		c.logger.Error("Failed to close serial port", zap.String("port", c.name), zap.Error(err))
		return err
	}
	c.logger.Info("Serial port closed", zap.String("port", c.name))
	return nil
}

// ApplySettings pushes the in-memory configuration to the device. It is a
// no-op while closed. A rejection leaves the device on its previous settings
// and is returned; the setters log it and carry on.
//
// Termios and modem-line changes reach the open device at once, alongside
// any transfer in flight.
func (c *Channel) ApplySettings() error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	return c.applyTo(c.current())
}

// applyTo pushes the configuration to dev. Callers hold applyMu.
func (c *Channel) applyTo(dev device) error {
	if dev == nil {
		return nil
	}
	cfg := c.Config()
	if err := dev.apply(cfg); err != nil {
		c.logger.Warn("Serial port rejected settings",
			zap.String("port", c.name),
			zap.Uint32("baud_rate", cfg.BaudRate),
			zap.Int("data_bits", cfg.DataBits),
			zap.Stringer("parity", cfg.Parity),
			zap.Stringer("stop_bits", cfg.StopBits),
			zap.Stringer("cts_flow", cfg.CTSFlow),
			zap.Stringer("rts_control", cfg.RTSControl),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// update changes the configuration through fn and re-applies it when fn
// reports a change.
func (c *Channel) update(fn func(cfg *Config) bool) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.cfgMu.Lock()
	changed := fn(&c.cfg)
	c.cfgMu.Unlock()

	if changed {
		_ = c.applyTo(c.current())
	}
}

// Config returns a snapshot of the configuration.
func (c *Channel) Config() Config {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	return c.cfg
}

// SetBaudRate ignores zero and the current value.
func (c *Channel) SetBaudRate(b uint32) {
	c.update(func(cfg *Config) bool {
		if !ValidBaudRate(b) || cfg.BaudRate == b {
			return false
		}
		cfg.BaudRate = b
		return true
	})
}

// SetDataBits ignores anything but 7 or 8, and the current value.
func (c *Channel) SetDataBits(n int) {
	c.update(func(cfg *Config) bool {
		if !ValidDataBits(n) || cfg.DataBits == n {
			return false
		}
		cfg.DataBits = n
		return true
	})
}

// SetParity ignores unknown values and the current value.
func (c *Channel) SetParity(p Parity) {
	c.update(func(cfg *Config) bool {
		if !p.Valid() || cfg.Parity == p {
			return false
		}
		cfg.Parity = p
		return true
	})
}

// SetStopBits ignores unknown values and the current value. Linux rejects
// StopBitsOne5 when it is applied.
func (c *Channel) SetStopBits(s StopBits) {
	c.update(func(cfg *Config) bool {
		if !s.Valid() || cfg.StopBits == s {
			return false
		}
		cfg.StopBits = s
		return true
	})
}

// SetCTSFlow ignores unknown values and the current value.
func (c *Channel) SetCTSFlow(f CTSFlow) {
	c.update(func(cfg *Config) bool {
		if !f.Valid() || cfg.CTSFlow == f {
			return false
		}
		cfg.CTSFlow = f
		return true
	})
}

// SetRTSControl ignores unknown values and the current value.
func (c *Channel) SetRTSControl(r RTSControl) {
	c.update(func(cfg *Config) bool {
		if !r.Valid() || cfg.RTSControl == r {
			return false
		}
		cfg.RTSControl = r
		return true
	})
}

// BaudRate returns the configured baud rate.
func (c *Channel) BaudRate() uint32 { return c.Config().BaudRate }

// DataBits returns the configured data bits.
func (c *Channel) DataBits() int { return c.Config().DataBits }

// Parity returns the configured parity.
func (c *Channel) Parity() Parity { return c.Config().Parity }

// StopBits returns the configured stop bits.
func (c *Channel) StopBits() StopBits { return c.Config().StopBits }

// CTSFlow returns the configured CTS flow mode.
func (c *Channel) CTSFlow() CTSFlow { return c.Config().CTSFlow }

// RTSControl returns the configured RTS mode.
func (c *Channel) RTSControl() RTSControl { return c.Config().RTSControl }

// SetErrorHandler installs h in place of any previous handler; nil disables
// reporting. The handler runs on the receiving goroutine while Receive holds
// the channel, so it must not call Open or Close.
func (c *Channel) SetErrorHandler(h ErrorHandler) {
	c.cfgMu.Lock()
	c.handler = h
	c.cfgMu.Unlock()
}

func (c *Channel) errorHandler() ErrorHandler {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	return c.handler
}

// Send writes data, waiting at most timeout (Infinite waits for the whole
// payload). It returns the number of bytes the device accepted, which is
// short when the deadline cut the transfer. Only mechanical failures are
// errors.
func (c *Channel) Send(data []byte, timeout time.Duration) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.dev == nil {
		return 0, c.transferError("send", ErrClosed)
	}
	n, err := Wait(newTransfer(c.dev, dirSend, data), timeout)
	if err != nil {
		return n, c.transferError("send", err)
	}
	return n, nil
}

// Receive reads into buf, waiting at most timeout. Pending link-status
// errors are handed to the error handler first. A zero timeout is a pure
// poll: it requests no more than the device has already buffered, so it
// never waits for bytes that have not arrived.
func (c *Channel) Receive(buf []byte, timeout time.Duration) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.dev == nil {
		return 0, c.transferError("receive", ErrClosed)
	}

	status, queued, err := c.dev.status()
	if err != nil {
		return 0, c.transferError("status", err)
	}
	if status != 0 {
		c.logger.Debug("Link status errors", zap.String("port", c.name), zap.Strings("errors", status.Names()))
		if h := c.errorHandler(); h != nil {
			h(status)
		}
	}

	size := len(buf)
	if timeout == 0 && queued < size {
		size = queued
	}
	n, err := Wait(newTransfer(c.dev, dirReceive, buf[:size]), timeout)
	if err != nil {
		return n, c.transferError("receive", err)
	}
	return n, nil
}

func (c *Channel) transferError(op string, err error) error {
	var te *TransferError
	if errors.As(err, &te) {
		if te.Port == "" {
			te.Port = c.name
		}
		return te
	}
	return &TransferError{Op: op, Port: c.name, Err: err}
}
