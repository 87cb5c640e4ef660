// Package serial provides a Linux serial channel with deadline-bounded,
// cancellable transfers.
//
// The device is opened non-blocking and exclusive. Every Send and Receive is
// a pending transfer that the caller drives to completion: the transfer moves
// whatever the kernel accepts, parks in poll(2) until more can move, and is
// cancelled when its deadline passes. The byte count returned is always the
// number of bytes actually moved, so a timeout shows up as a short count and
// never as an error.
//
// Features:
//   - Raw termios configuration (baud rate, data bits, parity, stop bits,
//     CTS flow, RTS control) that can be changed while open
//   - Timeouts per call: Infinite, zero (pure poll) or a bound
//   - Link-status errors (break, framing, overrun, overflow, parity)
//     delivered once per occurrence to an optional handler
//   - Self-pipe mechanism so Close wakes blocked transfers
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	ch := serial.New("ttyUSB0")
//	ch.SetBaudRate(115200)
//	if err := ch.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	ch.SetErrorHandler(func(s serial.LineStatus) {
//	    log.Println("line errors:", s)
//	})
//
//	// Write a command, waiting as long as it takes
//	if _, err := ch.Send([]byte("C,START\r\n"), serial.Infinite); err != nil {
//	    log.Println("Write failed:", err)
//	}
//
//	// Read whatever arrives within 100ms
//	buf := make([]byte, 256)
//	n, err := ch.Receive(buf, 100*time.Millisecond)
package serial
