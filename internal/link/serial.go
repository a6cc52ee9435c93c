package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midiserial/sdk/contracts"
	"go.bug.st/serial"
)

// readTimeout bounds each blocking read so the reader notices Close.
const readTimeout = 10 * time.Millisecond

// port is the subset of serial.Port the link needs.
type port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
}

// openPort is replaced in tests.
var openPort = func(name string, mode *serial.Mode) (port, error) {
	return serial.Open(name, mode)
}

// ListPorts returns the serial device names present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}

// Serial is a UART link. Input and output may be the same device or two
// different ones; either may be empty for a one-directional link.
//
// A reader goroutine moves received bytes into a bounded buffer that
// TryReadByte drains. When the buffer is full new bytes are dropped and a
// warning is logged.
type Serial struct {
	logger    contracts.Logger
	endpoints contracts.Endpoints
	in        port
	out       port
	inbound   chan byte
	dropped   atomic.Uint64

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// SerialFactory returns a LinkFactory that opens Serial links.
func SerialFactory(logger contracts.Logger, bufferSize int) contracts.LinkFactory {
	return func(ep contracts.Endpoints, baud int) (contracts.ByteStreamLink, error) {
		return OpenSerial(ep, baud, bufferSize, logger)
	}
}

// OpenSerial opens the endpoints at baud, 8 data bits, no parity, one stop bit.
func OpenSerial(ep contracts.Endpoints, baud, bufferSize int, logger contracts.Logger) (*Serial, error) {
	if ep.Input == "" && ep.Output == "" {
		return nil, ErrNoEndpoint
	}
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	mode := lineMode(baud)
	s := &Serial{logger: logger, endpoints: ep, inbound: make(chan byte, bufferSize)}

	if ep.Input != "" {
		p, err := openPort(ep.Input, mode)
		if err != nil {
			return nil, fmt.Errorf("opening input %s: %w", ep.Input, err)
		}
		if err := p.SetReadTimeout(readTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("setting read timeout on %s: %w", ep.Input, err)
		}
		s.in = p
	}

	switch {
	case ep.Output == "":
	case ep.Output == ep.Input:
		s.out = s.in
	default:
		p, err := openPort(ep.Output, mode)
		if err != nil {
			if s.in != nil {
				_ = s.in.Close()
			}
			return nil, fmt.Errorf("opening output %s: %w", ep.Output, err)
		}
		s.out = p
	}

	if s.in != nil {
		s.wg.Add(1)
		go s.readLoop()
	}

	logger.Info("serial link opened",
		logger.Field().String("input", ep.Input),
		logger.Field().String("output", ep.Output),
		logger.Field().Int("baud", baud))
	return s, nil
}

func lineMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (s *Serial) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 64)
	for {
		n, err := s.in.Read(buf)
		if s.closed.Load() {
			return
		}
		if err != nil {
			s.logger.Error("serial read failed; stopping reader",
				s.logger.Field().String("input", s.endpoints.Input),
				s.logger.Field().Error("error", err))
			return
		}
		for _, b := range buf[:n] {
			select {
			case s.inbound <- b:
			default:
				if s.dropped.Add(1) == 1 {
					s.logger.Warn("inbound buffer full; dropping MIDI bytes",
						s.logger.Field().String("input", s.endpoints.Input))
				}
			}
		}
	}
}

// TryReadByte implements contracts.ByteStreamLink.
func (s *Serial) TryReadByte() (byte, bool) {
	select {
	case b := <-s.inbound:
		return b, true
	default:
		return 0, false
	}
}

// Write implements contracts.ByteStreamLink. p is written in one call while
// holding the write lock so concurrent messages never interleave.
func (s *Serial) Write(p []byte) error {
	if s.closed.Load() {
		return ErrLinkClosed
	}
	if s.out == nil {
		return fmt.Errorf("%w: no output", ErrNoEndpoint)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.out.Write(p)
	if err != nil {
		return fmt.Errorf("writing to %s: %w", s.endpoints.Output, err)
	}
	if n != len(p) {
		return fmt.Errorf("writing to %s: %w", s.endpoints.Output, io.ErrShortWrite)
	}
	return nil
}

// Configure implements contracts.ByteStreamLink.
func (s *Serial) Configure(baud int) error {
	mode := lineMode(baud)
	var errs []error
	if s.in != nil {
		errs = append(errs, s.in.SetMode(mode))
	}
	if s.out != nil && s.out != s.in {
		errs = append(errs, s.out.SetMode(mode))
	}
	return errors.Join(errs...)
}

// Dropped returns how many received bytes were discarded on a full buffer.
func (s *Serial) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops the reader and closes the ports. It is safe to call more than once.
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var errs []error
		if s.in != nil {
			errs = append(errs, s.in.Close())
		}
		if s.out != nil && s.out != s.in {
			errs = append(errs, s.out.Close())
		}
		s.wg.Wait()
		err = errors.Join(errs...)
		s.logger.Info("serial link closed",
			s.logger.Field().String("input", s.endpoints.Input),
			s.logger.Field().String("output", s.endpoints.Output))
	})
	return err
}
