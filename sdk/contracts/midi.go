package contracts

import "time"

// EventKind identifies the decoded type of a channel message.
type EventKind uint8

const (
	// Unknown is any complete three-byte message that is not one of the kinds below.
	Unknown EventKind = iota
	// NoteOn is status nibble 0x9.
	NoteOn
	// NoteOff is status nibble 0x8.
	NoteOff
	// ControlChange is status nibble 0xB.
	ControlChange
)

func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	case ControlChange:
		return "ControlChange"
	default:
		return "Unknown"
	}
}

// Event is a decoded MIDI channel message.
type Event struct {
	Kind    EventKind
	Channel uint8 // Zero-based wire channel (0-15).
	Data1   uint8 // Note or controller number (0-127).
	Data2   uint8 // Velocity or controller value (0-127).
}

// Handler receives a decoded event. Channel is the zero-based wire channel.
// Handlers run on the polling goroutine and must return promptly.
type Handler func(channel, data1, data2 uint8)

// Transceiver is the caller-facing surface of a MIDI-over-serial device.
// Outbound channels are 1-based (1-16); inbound handlers receive the 0-based wire channel.
type Transceiver interface {
	OnNoteOn(h Handler)        // Registers the Note On handler, replacing any previous one.
	OnNoteOff(h Handler)       // Registers the Note Off handler, replacing any previous one.
	OnControlChange(h Handler) // Registers the Control Change handler, replacing any previous one.

	SendNoteOn(note, velocity, channel uint8) error
	SendNoteOff(note, velocity, channel uint8) error
	SendControlChange(controller, value, channel uint8) error

	// PlayTimedNote sends Note On now and Note Off with the same velocity after d.
	PlayTimedNote(note, velocity uint8, d time.Duration, channel uint8) error

	SetInputEndpoint(name string) error
	SetOutputEndpoint(name string) error
	Endpoints() Endpoints

	// Inject feeds bytes through the decoder as if they had arrived on the link.
	Inject(b ...byte)
	// ReportValue writes a "name:value" diagnostic line.
	ReportValue(name string, value float64)

	// Poll drains the link once and dispatches what was decoded. It is called
	// by the polling goroutine, or by the caller under WithManualPolling.
	Poll() int

	Start() error // Opens the link and starts the polling goroutine.
	Stop() error  // Stops polling and closes the link.
}
