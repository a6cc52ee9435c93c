package link

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midiserial/internal/logger"
	"github.com/leandrodaf/midiserial/sdk/contracts"
	"go.bug.st/serial"
)

type fakePort struct {
	name    string
	rx      chan []byte
	mu      sync.Mutex
	tx      [][]byte
	modes   []serial.Mode
	timeout time.Duration
	closed  chan struct{}
	once    sync.Once
}

func newFakePort(name string) *fakePort {
	return &fakePort{name: name, rx: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakePort) Read(p []byte) (int, error) {
	select {
	case chunk := <-f.rx:
		return copy(p, chunk), nil
	case <-f.closed:
		return 0, errors.New("port closed")
	case <-time.After(f.timeout):
		return 0, nil
	}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tx = append(f.tx, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakePort) SetMode(mode *serial.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, *mode)
	return nil
}

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.timeout = t
	return nil
}

func (f *fakePort) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.tx...)
}

// withFakePorts swaps openPort for the duration of the test.
func withFakePorts(t *testing.T) map[string]*fakePort {
	t.Helper()
	ports := map[string]*fakePort{}
	var mu sync.Mutex
	orig := openPort
	openPort = func(name string, mode *serial.Mode) (port, error) {
		mu.Lock()
		defer mu.Unlock()
		if name == "/dev/missing" {
			return nil, errors.New("no such device")
		}
		p := newFakePort(name)
		p.modes = append(p.modes, *mode)
		ports[name] = p
		return p, nil
	}
	t.Cleanup(func() { openPort = orig })
	return ports
}

func readAll(l contracts.ByteStreamLink, want int, within time.Duration) []byte {
	var got []byte
	deadline := time.Now().Add(within)
	for len(got) < want && time.Now().Before(deadline) {
		if b, ok := l.TryReadByte(); ok {
			got = append(got, b)
			continue
		}
		time.Sleep(time.Millisecond)
	}
	return got
}

func TestOpenSerialSharedPort(t *testing.T) {
	ports := withFakePorts(t)

	s, err := OpenSerial(contracts.Endpoints{Input: "/dev/ttyUSB0", Output: "/dev/ttyUSB0"}, contracts.MIDIBaudRate, 8, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("OpenSerial: %v", err)
	}
	defer s.Close()

	if len(ports) != 1 {
		t.Fatalf("opened %d ports, want 1 shared port", len(ports))
	}
	p := ports["/dev/ttyUSB0"]
	if m := p.modes[0]; m.BaudRate != 31250 || m.DataBits != 8 || m.Parity != serial.NoParity || m.StopBits != serial.OneStopBit {
		t.Errorf("mode = %+v, want 31250 8N1", m)
	}

	p.rx <- []byte{0x90, 60}
	p.rx <- []byte{100}
	if got := readAll(s, 3, time.Second); !bytes.Equal(got, []byte{0x90, 60, 100}) {
		t.Errorf("read % X, want 90 3C 64", got)
	}

	if err := s.Write([]byte{0x80, 60, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w := p.written(); len(w) != 1 || !bytes.Equal(w[0], []byte{0x80, 60, 0}) {
		t.Errorf("port received %v", w)
	}
}

func TestOpenSerialSeparateEndpoints(t *testing.T) {
	ports := withFakePorts(t)

	s, err := OpenSerial(contracts.Endpoints{Input: "/dev/in", Output: "/dev/out"}, contracts.MIDIBaudRate, 8, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("OpenSerial: %v", err)
	}
	if err := s.Write([]byte{0xB0, 1, 2}); err != nil {
		t.Fatal(err)
	}
	if len(ports["/dev/in"].written()) != 0 {
		t.Error("write went to the input port")
	}
	if len(ports["/dev/out"].written()) != 1 {
		t.Error("write did not reach the output port")
	}

	if err := s.Configure(38400); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"/dev/in", "/dev/out"} {
		modes := ports[name].modes
		if modes[len(modes)-1].BaudRate != 38400 {
			t.Errorf("%s baud = %d after Configure, want 38400", name, modes[len(modes)-1].BaudRate)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := s.Write([]byte{0x90, 1, 1}); !errors.Is(err, ErrLinkClosed) {
		t.Errorf("Write after Close = %v, want ErrLinkClosed", err)
	}
}

func TestOpenSerialErrors(t *testing.T) {
	withFakePorts(t)

	if _, err := OpenSerial(contracts.Endpoints{}, contracts.MIDIBaudRate, 8, logger.NewNopLogger()); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("empty endpoints error = %v, want ErrNoEndpoint", err)
	}
	if _, err := OpenSerial(contracts.Endpoints{Input: "/dev/missing"}, contracts.MIDIBaudRate, 8, logger.NewNopLogger()); err == nil {
		t.Error("missing device opened without error")
	}

	s, err := OpenSerial(contracts.Endpoints{Input: "/dev/in"}, contracts.MIDIBaudRate, 8, logger.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Write([]byte{0x90, 1, 1}); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("Write on input-only link = %v, want ErrNoEndpoint", err)
	}
}

func TestSerialDropsWhenBufferFull(t *testing.T) {
	ports := withFakePorts(t)

	s, err := OpenSerial(contracts.Endpoints{Input: "/dev/in"}, contracts.MIDIBaudRate, 4, logger.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ports["/dev/in"].rx <- []byte{1, 2, 3, 4, 5, 6}
	deadline := time.Now().Add(time.Second)
	for s.Dropped() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Dropped() != 2 {
		t.Fatalf("Dropped() = %d, want 2", s.Dropped())
	}
	if got := readAll(s, 4, time.Second); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("read % X, want the first four bytes", got)
	}
}

func TestMemoryLink(t *testing.T) {
	m := NewMemory()
	if _, ok := m.TryReadByte(); ok {
		t.Fatal("empty link returned a byte")
	}
	m.Push(1, 2)
	if b, ok := m.TryReadByte(); !ok || b != 1 {
		t.Errorf("TryReadByte() = %d, %v; want 1, true", b, ok)
	}
	if m.Buffered() != 1 {
		t.Errorf("Buffered() = %d, want 1", m.Buffered())
	}
	_ = m.Configure(contracts.MIDIBaudRate)
	if m.Baud() != contracts.MIDIBaudRate {
		t.Errorf("Baud() = %d", m.Baud())
	}
	_ = m.Write([]byte{0x90, 60, 1})
	_ = m.Close()
	if err := m.Write([]byte{0x90, 60, 1}); !errors.Is(err, ErrLinkClosed) {
		t.Errorf("Write after Close = %v", err)
	}
	if len(m.Written()) != 1 {
		t.Errorf("Written() has %d messages, want 1", len(m.Written()))
	}
}
