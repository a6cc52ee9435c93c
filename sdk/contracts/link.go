package contracts

import "time"

// MIDIBaudRate is the standard MIDI serial rate in bits per second.
const MIDIBaudRate = 31250

// ByteStreamLink is a full-duplex byte channel.
type ByteStreamLink interface {
	// TryReadByte returns the next received byte without blocking.
	// ok is false when nothing is available.
	TryReadByte() (b byte, ok bool)
	// Write enqueues p for transmission as a single unit.
	Write(p []byte) error
	// Configure sets the line rate.
	Configure(baud int) error
	Close() error
}

// Endpoints names the physical input and output of a link.
// For serial transports these are device paths, e.g. /dev/ttyUSB0.
type Endpoints struct {
	Input  string
	Output string
}

// LinkFactory opens a link for the given endpoints.
type LinkFactory func(ep Endpoints, baud int) (ByteStreamLink, error)

// Scheduler runs fire-and-forget tasks after a delay. There is no cancellation.
type Scheduler interface {
	ScheduleAfter(d time.Duration, task func())
}
