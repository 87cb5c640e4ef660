package console

import (
	"fmt"

	"go.uber.org/zap"
)

// Print writes s to the output stream. On a terminal bare CR and bare LF
// are written as CR LF.
func (c *Console) Print(s string) error { return c.print(&c.out, []byte(s)) }

// Printf formats to the output stream like Print.
func (c *Console) Printf(format string, args ...any) error {
	return c.print(&c.out, fmt.Appendf(nil, format, args...))
}

// PrintErr writes s to the error stream like Print.
func (c *Console) PrintErr(s string) error { return c.print(&c.errOut, []byte(s)) }

// PrintErrf formats to the error stream like Print.
func (c *Console) PrintErrf(format string, args ...any) error {
	return c.print(&c.errOut, fmt.Appendf(nil, format, args...))
}

// PrintByte writes one byte to the output stream like Print.
func (c *Console) PrintByte(b byte) error { return c.print(&c.out, []byte{b}) }

// Write writes p to the output stream unchanged.
func (c *Console) Write(p []byte) (int, error) { return c.write(&c.out, p) }

// WriteErr writes p to the error stream unchanged.
func (c *Console) WriteErr(p []byte) (int, error) { return c.write(&c.errOut, p) }

func (c *Console) print(s *Stream, p []byte) error {
	if s.interactive {
		p = NormalizeNewlines(p)
	}
	_, err := c.write(s, p)
	return err
}

// write returns once every byte is accepted or a write fails.
func (c *Console) write(s *Stream, p []byte) (int, error) {
	if !s.valid {
		return 0, ErrUnavailable
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	n, err := s.file.Write(p)
	if err != nil {
		c.logger.Debug("Console write failed", zap.Int("written", n), zap.Error(err))
	}
	return n, err
}
