package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(9600), cfg.BaudRate)
	assert.Equal(t, 8, cfg.DataBits)
	assert.Equal(t, RTSControlDisabled, cfg.RTSControl)
}

func TestConfig_Validate(t *testing.T) {
	base := DefaultConfig()

	bad := base
	bad.BaudRate = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.DataBits = 5
	assert.Error(t, bad.Validate())

	bad = base
	bad.Parity = ParityOdd + 1
	assert.Error(t, bad.Validate())

	bad = base
	bad.RTSControl = RTSControlToggle + 1
	assert.Error(t, bad.Validate())
}

func TestParseNames(t *testing.T) {
	p, err := ParseParity("even")
	require.NoError(t, err)
	assert.Equal(t, ParityEven, p)

	s, err := ParseStopBits("1.5")
	require.NoError(t, err)
	assert.Equal(t, StopBitsOne5, s)

	r, err := ParseRTSControl("handshake")
	require.NoError(t, err)
	assert.Equal(t, RTSControlHandshake, r)
	assert.Equal(t, "handshake", r.String())

	f, err := ParseCTSFlow("enable")
	require.NoError(t, err)
	assert.Equal(t, CTSFlowEnabled, f)

	_, err = ParseParity("mark")
	assert.Error(t, err)

	b, err := ParseBaudRate("115200")
	require.NoError(t, err)
	assert.Equal(t, uint32(115200), b)
	_, err = ParseBaudRate("0")
	assert.Error(t, err)
	_, err = ParseBaudRate("fast")
	assert.Error(t, err)

	_, err = ParseDataBits("9")
	assert.Error(t, err)

	assert.Equal(t, "unknown(9)", Parity(9).String())
}

func TestSetTermios(t *testing.T) {
	var tio unix.Termios
	custom, err := setTermios(&tio, Config{
		BaudRate: 115200, DataBits: 8, Parity: ParityNone, StopBits: StopBitsOne,
	})
	require.NoError(t, err)
	assert.False(t, custom)
	assert.Equal(t, uint32(unix.B115200), tio.Cflag&unix.CBAUD)
	assert.Equal(t, uint32(unix.CS8), tio.Cflag&unix.CSIZE)
	assert.Zero(t, tio.Cflag&(unix.PARENB|unix.CSTOPB|unix.CRTSCTS))

	custom, err = setTermios(&tio, Config{
		BaudRate: 250000, DataBits: 7, Parity: ParityEven, StopBits: StopBitsTwo, CTSFlow: CTSFlowEnabled,
	})
	require.NoError(t, err)
	assert.True(t, custom)
	assert.Equal(t, uint32(unix.BOTHER), tio.Cflag&unix.CBAUD)
	assert.Equal(t, uint32(250000), tio.Ospeed)
	assert.Equal(t, uint32(unix.CS7), tio.Cflag&unix.CSIZE)
	assert.NotZero(t, tio.Cflag&unix.PARENB)
	assert.Zero(t, tio.Cflag&unix.PARODD)
	assert.NotZero(t, tio.Iflag&unix.INPCK)
	assert.NotZero(t, tio.Cflag&unix.CSTOPB)
	assert.NotZero(t, tio.Cflag&unix.CRTSCTS)

	_, err = setTermios(&tio, Config{BaudRate: 9600, DataBits: 8, StopBits: StopBitsOne, RTSControl: RTSControlHandshake})
	require.NoError(t, err)
	assert.NotZero(t, tio.Cflag&unix.CRTSCTS)

	_, err = setTermios(&tio, Config{BaudRate: 9600, DataBits: 8, StopBits: StopBitsOne5})
	assert.ErrorIs(t, err, errOneAndHalfStopBits)
}

func TestLineStatus(t *testing.T) {
	prev := lineCounters{Frame: 1, Overrun: 2}
	cur := lineCounters{Frame: 3, Overrun: 2, Brk: 1}
	s := cur.since(prev)
	assert.True(t, s.Has(LineFramingError|LineBreak))
	assert.False(t, s.Has(LineOverrun))
	assert.Equal(t, "break|framing", s.String())
	assert.Equal(t, LineStatus(0), cur.since(cur))
	assert.Equal(t, "none", LineStatus(0).String())
}

func TestDevicePath(t *testing.T) {
	assert.Equal(t, "/dev/ttyUSB0", DevicePath("ttyUSB0"))
	assert.Equal(t, "/dev/pts/3", DevicePath("/dev/pts/3"))
	assert.Equal(t, "ttyACM0", logicalName("/dev/ttyACM0"))
}
