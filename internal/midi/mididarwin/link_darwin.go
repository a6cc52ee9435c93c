//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midiserial/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for CoreMIDI bridge issues.
var (
	ErrNoMIDIDevices       = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrCreateOutputPort    = errors.New("error creating output port")
	ErrLinkClosed          = errors.New("link closed")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Link bridges a CoreMIDI source and destination to a byte stream.
// Packets from the source are flattened into the inbound buffer in arrival
// order; every Write is sent as one packet to the destination.
type Link struct {
	logger      contracts.Logger
	client      coremidi.Client
	inputPort   coremidi.InputPort
	portConn    internalPortConnection
	outputPort  coremidi.OutputPort
	destination *coremidi.Destination
	inbound     chan byte
	dropped     atomic.Uint64

	mu       sync.Mutex
	closed   atomic.Bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Factory returns a LinkFactory opening CoreMIDI links.
func Factory(opts *contracts.ClientOptions) contracts.LinkFactory {
	return func(ep contracts.Endpoints, baud int) (contracts.ByteStreamLink, error) {
		return NewLink(ep, opts)
	}
}

// NewLink connects to the source named ep.Input and the destination named
// ep.Output. Names may also be zero-based device indexes.
func NewLink(ep contracts.Endpoints, opts *contracts.ClientOptions) (*Link, error) {
	client, err := coremidi.NewClient(opts.HostClientName)
	if err != nil {
		return nil, err
	}
	l := &Link{
		logger:  opts.Logger,
		client:  client,
		inbound: make(chan byte, opts.InboundBuffer),
	}

	if ep.Input != "" {
		if err := l.connectSource(ep.Input); err != nil {
			return nil, err
		}
	}
	if ep.Output != "" {
		if err := l.openDestination(ep.Output); err != nil {
			l.disconnect()
			return nil, err
		}
	}

	l.logger.Info("CoreMIDI link opened",
		l.logger.Field().String("input", ep.Input),
		l.logger.Field().String("output", ep.Output))
	return l, nil
}

func (l *Link) connectSource(name string) error {
	sources, err := coremidi.AllSources()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		return ErrNoMIDIDevices
	}
	idx := -1
	for i, s := range sources {
		if s.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		if n, convErr := strconv.Atoi(name); convErr == nil && n >= 0 && n < len(sources) {
			idx = n
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: source %q", ErrInvalidMIDIDevice, name)
	}

	l.inputPort, err = coremidi.NewInputPort(l.client, "MIDI In", l.handlePacket)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	l.portConn, err = l.inputPort.Connect(sources[idx])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}
	return nil
}

func (l *Link) openDestination(name string) error {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	if len(destinations) == 0 {
		return ErrNoMIDIDevices
	}
	idx := -1
	for i, d := range destinations {
		if d.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		if n, convErr := strconv.Atoi(name); convErr == nil && n >= 0 && n < len(destinations) {
			idx = n
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: destination %q", ErrInvalidMIDIDevice, name)
	}

	l.outputPort, err = coremidi.NewOutputPort(l.client, "MIDI Out")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	l.destination = &destinations[idx]
	return nil
}

// handlePacket runs on a CoreMIDI thread.
func (l *Link) handlePacket(source coremidi.Source, packet coremidi.Packet) {
	if l.closed.Load() {
		return
	}
	l.wg.Add(1)
	defer l.wg.Done()

	for _, b := range packet.Data {
		select {
		case l.inbound <- b:
		default:
			if l.dropped.Add(1) == 1 {
				l.logger.Warn("Event buffer full; dropping MIDI bytes")
			}
		}
	}
}

// TryReadByte implements contracts.ByteStreamLink.
func (l *Link) TryReadByte() (byte, bool) {
	select {
	case b := <-l.inbound:
		return b, true
	default:
		return 0, false
	}
}

// Write implements contracts.ByteStreamLink.
func (l *Link) Write(p []byte) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	if l.destination == nil {
		return fmt.Errorf("%w: no destination selected", ErrInvalidMIDIDevice)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	packet := coremidi.NewPacket(append([]byte(nil), p...), 0)
	return packet.Send(&l.outputPort, l.destination)
}

// Configure is a no-op: CoreMIDI devices have no line rate.
func (l *Link) Configure(baud int) error {
	l.logger.Debug("ignoring baud rate on CoreMIDI link", l.logger.Field().Int("baud", baud))
	return nil
}

func (l *Link) disconnect() {
	if l.portConn != nil {
		l.portConn.Disconnect()
		l.portConn = nil
	}
}

// Close disconnects from the source and waits for in-flight packets.
func (l *Link) Close() error {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		l.mu.Lock()
		l.disconnect()
		l.mu.Unlock()
		l.wg.Wait()
		l.logger.Info("CoreMIDI link closed")
	})
	return nil
}

// ListEndpoints returns the names of CoreMIDI sources and destinations.
func ListEndpoints() (inputs, outputs []string, err error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	for _, s := range sources {
		inputs = append(inputs, s.Name())
	}
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	for _, d := range destinations {
		outputs = append(outputs, d.Name())
	}
	return inputs, outputs, nil
}
