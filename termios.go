package serial

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

var baudRates = map[uint32]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

var errOneAndHalfStopBits = errors.New("1.5 stop bits are not supported with 7 or 8 data bits")

// makeRaw puts the tty in raw, byte-at-a-time mode. VMIN=1 keeps a
// zero-length read meaningful as hangup.
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL |
		unix.IXON | unix.IXOFF | unix.IXANY | unix.IUCLC
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.ECHOCTL | unix.ECHOPRT | unix.ECHOKE |
		unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag |= unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}

// setTermios writes cfg into t. It reports whether the baud rate needs the
// BOTHER/TCSETS2 path.
func setTermios(t *unix.Termios, cfg Config) (custom bool, err error) {
	t.Cflag &^= unix.CBAUD
	if b, ok := baudRates[cfg.BaudRate]; ok {
		t.Cflag |= b
	} else {
		t.Cflag |= unix.BOTHER
		custom = true
	}
	t.Ispeed = cfg.BaudRate
	t.Ospeed = cfg.BaudRate

	t.Cflag &^= unix.CSIZE
	switch cfg.DataBits {
	case 7:
		t.Cflag |= unix.CS7
	case 8:
		t.Cflag |= unix.CS8
	default:
		return false, fmt.Errorf("invalid data bits %d", cfg.DataBits)
	}

	switch cfg.Parity {
	case ParityNone:
		t.Cflag &^= unix.PARENB | unix.PARODD
		t.Iflag &^= unix.INPCK
	case ParityEven:
		t.Cflag |= unix.PARENB
		t.Cflag &^= unix.PARODD
		t.Iflag |= unix.INPCK
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
		t.Iflag |= unix.INPCK
	default:
		return false, fmt.Errorf("invalid parity %d", cfg.Parity)
	}

	switch cfg.StopBits {
	case StopBitsOne:
		t.Cflag &^= unix.CSTOPB
	case StopBitsTwo:
		t.Cflag |= unix.CSTOPB
	case StopBitsOne5:
		return false, errOneAndHalfStopBits
	default:
		return false, fmt.Errorf("invalid stop bits %d", cfg.StopBits)
	}

	// Linux couples CTS flow and RTS handshake in a single flag.
	if cfg.CTSFlow == CTSFlowEnabled || cfg.RTSControl == RTSControlHandshake {
		t.Cflag |= unix.CRTSCTS
	} else {
		t.Cflag &^= unix.CRTSCTS
	}
	return custom, nil
}

func (d *fdDevice) apply(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t, err := unix.IoctlGetTermios(d.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	custom, err := setTermios(t, cfg)
	if err != nil {
		return err
	}
	req := uint(unix.TCSETS)
	if custom {
		req = unix.TCSETS2
	}
	if err := unix.IoctlSetTermios(d.fd, req, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	if err := d.applyRTS(cfg.RTSControl); err != nil {
		return fmt.Errorf("set rts: %w", err)
	}
	return nil
}

// serialRS485 is struct serial_rs485 from <linux/serial.h>.
type serialRS485 struct {
	Flags              uint32
	DelayRTSBeforeSend uint32
	DelayRTSAfterSend  uint32
	Padding            [5]uint32
}

const (
	serRS485Enabled   = 1 << 0
	serRS485RTSOnSend = 1 << 1
)

func (d *fdDevice) applyRTS(rts RTSControl) error {
	if rts != RTSControlToggle && d.rs485Active {
		var off serialRS485
		if err := ioctlPtr(d.fd, unix.TIOCSRS485, unsafe.Pointer(&off)); err == nil {
			d.rs485Active = false
		}
	}

	var err error
	switch rts {
	case RTSControlDisabled:
		err = unix.IoctlSetPointerInt(d.fd, unix.TIOCMBIC, unix.TIOCM_RTS)
	case RTSControlEnabled:
		err = unix.IoctlSetPointerInt(d.fd, unix.TIOCMBIS, unix.TIOCM_RTS)
	case RTSControlHandshake:
		return nil
	case RTSControlToggle:
		on := serialRS485{Flags: serRS485Enabled | serRS485RTSOnSend}
		if err = ioctlPtr(d.fd, unix.TIOCSRS485, unsafe.Pointer(&on)); err == nil {
			d.rs485Active = true
		}
	}
	if noModemLines(err) {
		return nil
	}
	return err
}

// noModemLines reports whether err means the tty has no modem control lines
// at all, as with pseudo-terminals.
func noModemLines(err error) bool {
	return errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EINVAL)
}
