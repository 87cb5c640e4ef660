package serial

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeDevice is an in-memory device. A write accepts at most accept bytes in
// total (negative is unlimited) and then stalls.
type fakeDevice struct {
	mu       sync.Mutex
	accept   int
	written  []byte
	rx       []byte
	pending  LineStatus
	ops      int
	applied  []Config
	applyErr error

	done chan struct{}
	once sync.Once
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{accept: -1, done: make(chan struct{})}
}

func (f *fakeDevice) read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops++
	n := copy(p, f.rx)
	f.rx = f.rx[n:]
	return n, nil
}

func (f *fakeDevice) write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops++
	n := len(p)
	if f.accept >= 0 {
		room := f.accept - len(f.written)
		if room < n {
			n = room
		}
	}
	f.written = append(f.written, p[:n]...)
	return n, nil
}

func (f *fakeDevice) wait(dir direction, d time.Duration) error {
	f.mu.Lock()
	f.ops++
	f.mu.Unlock()
	if d < 0 || d > time.Millisecond {
		d = time.Millisecond
	}
	select {
	case <-f.done:
		return ErrClosed
	case <-time.After(d):
		return nil
	}
}

func (f *fakeDevice) status() (LineStatus, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops++
	s := f.pending
	f.pending = 0
	return s, len(f.rx), nil
}

func (f *fakeDevice) apply(cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, cfg)
	return f.applyErr
}

func (f *fakeDevice) interrupt() { f.once.Do(func() { close(f.done) }) }

func (f *fakeDevice) interrupted() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *fakeDevice) close() error {
	f.interrupt()
	return nil
}

func (f *fakeDevice) opCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops
}

func (f *fakeDevice) feed(b []byte) {
	f.mu.Lock()
	f.rx = append(f.rx, b...)
	f.mu.Unlock()
}

func openFake(t *testing.T, dev *fakeDevice) *Channel {
	t.Helper()
	ch := New("fake0")
	ch.opener = func(string) (device, error) { return dev, nil }
	require.NoError(t, ch.Open())
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestChannel_ZeroLengthNeverTouchesDevice(t *testing.T) {
	dev := newFakeDevice()
	ch := openFake(t, dev)

	n, err := ch.Send(nil, Infinite)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = ch.Receive([]byte{}, Infinite)
	require.NoError(t, err)
	require.Zero(t, n)

	require.Zero(t, dev.opCount())
}

func TestChannel_SendStallReturnsShortCount(t *testing.T) {
	dev := newFakeDevice()
	dev.accept = 4
	ch := openFake(t, dev)

	start := time.Now()
	n, err := ch.Send([]byte("0123456789"), 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "0123", string(dev.written))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestChannel_SendInfiniteCompletes(t *testing.T) {
	dev := newFakeDevice()
	dev.accept = 3
	ch := openFake(t, dev)

	go func() {
		time.Sleep(30 * time.Millisecond)
		dev.mu.Lock()
		dev.accept = -1
		dev.mu.Unlock()
	}()

	n, err := ch.Send([]byte("abcdefgh"), Infinite)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "abcdefgh", string(dev.written))
}

func TestChannel_PollReceiveCapsToBuffered(t *testing.T) {
	dev := newFakeDevice()
	ch := openFake(t, dev)
	dev.feed([]byte("hello"))

	buf := make([]byte, 3)
	n, err := ch.Receive(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hel", string(buf[:n]))

	buf = make([]byte, 10)
	n, err = ch.Receive(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "lo", string(buf[:n]))

	n, err = ch.Receive(buf, 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestChannel_ErrorHandler(t *testing.T) {
	dev := newFakeDevice()
	ch := openFake(t, dev)

	var got []LineStatus
	ch.SetErrorHandler(func(s LineStatus) { got = append(got, s) })

	dev.pending = LineFramingError | LineOverrun
	_, err := ch.Receive(make([]byte, 4), 0)
	require.NoError(t, err)
	_, err = ch.Receive(make([]byte, 4), 0)
	require.NoError(t, err)
	require.Equal(t, []LineStatus{LineFramingError | LineOverrun}, got)

	// Replaced, then cleared
	var replaced int
	ch.SetErrorHandler(func(LineStatus) { replaced++ })
	dev.pending = LineBreak
	_, _ = ch.Receive(make([]byte, 4), 0)
	require.Equal(t, 1, replaced)
	require.Len(t, got, 1)

	ch.SetErrorHandler(nil)
	dev.pending = LineBreak
	_, err = ch.Receive(make([]byte, 4), 0)
	require.NoError(t, err)
	require.Equal(t, 1, replaced)
}

func TestChannel_ErrorHandlerMayChangeSettings(t *testing.T) {
	dev := newFakeDevice()
	ch := openFake(t, dev)

	ch.SetErrorHandler(func(LineStatus) { ch.SetBaudRate(19200) })
	dev.mu.Lock()
	dev.pending = LineOverrun
	dev.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_, _ = ch.Receive(make([]byte, 4), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Receive deadlocked on a setter called from the error handler")
	}
	require.Equal(t, uint32(19200), ch.BaudRate())
}

func TestChannel_SettersApplyOnlyOnChange(t *testing.T) {
	dev := newFakeDevice()
	ch := New("fake0")
	ch.opener = func(string) (device, error) { return dev, nil }

	// Closed: stored, not applied
	ch.SetBaudRate(19200)
	require.Empty(t, dev.applied)
	require.Equal(t, uint32(19200), ch.BaudRate())

	require.NoError(t, ch.Open())
	t.Cleanup(func() { ch.Close() })
	require.Len(t, dev.applied, 1)

	ch.SetBaudRate(19200)           // same value
	ch.SetBaudRate(0)               // illegal
	ch.SetDataBits(9)               // illegal
	ch.SetParity(Parity(7))         // illegal
	ch.SetStopBits(StopBits(-1))    // illegal
	ch.SetCTSFlow(CTSFlow(2))       // illegal
	ch.SetRTSControl(RTSControl(9)) // illegal
	require.Len(t, dev.applied, 1)

	ch.SetDataBits(7)
	ch.SetParity(ParityOdd)
	ch.SetStopBits(StopBitsTwo)
	ch.SetCTSFlow(CTSFlowEnabled)
	ch.SetRTSControl(RTSControlToggle)
	require.Len(t, dev.applied, 6)

	last := dev.applied[len(dev.applied)-1]
	assert.Equal(t, Config{
		BaudRate:   19200,
		DataBits:   7,
		Parity:     ParityOdd,
		StopBits:   StopBitsTwo,
		CTSFlow:    CTSFlowEnabled,
		RTSControl: RTSControlToggle,
	}, last)
}

func TestChannel_RejectedSettingsAreNotFatal(t *testing.T) {
	dev := newFakeDevice()
	dev.applyErr = unix.EINVAL
	ch := openFake(t, dev)

	require.True(t, ch.IsOpen())
	ch.SetBaudRate(57600)
	require.Equal(t, uint32(57600), ch.BaudRate())
	require.ErrorIs(t, ch.ApplySettings(), unix.EINVAL)
}

func TestChannel_OpenFailureLeavesClosed(t *testing.T) {
	ch := New("busy0")
	ch.opener = func(string) (device, error) { return nil, unix.EBUSY }

	err := ch.Open()
	var oe *OpenError
	require.True(t, errors.As(err, &oe))
	require.ErrorIs(t, err, unix.EBUSY)
	require.Equal(t, int(unix.EBUSY), oe.Code())
	require.Equal(t, "busy0", oe.Port)
	require.False(t, ch.IsOpen())
}

func TestChannel_TransferOnClosedChannel(t *testing.T) {
	ch := New("fake0")

	_, err := ch.Send([]byte("x"), Infinite)
	require.ErrorIs(t, err, ErrClosed)

	_, err = ch.Receive(make([]byte, 1), 0)
	var te *TransferError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "receive", te.Op)
	require.Equal(t, "fake0", te.Port)
}
