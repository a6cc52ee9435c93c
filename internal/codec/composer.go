package codec

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

var (
	// ErrChannelOutOfRange is returned for a caller channel outside 1-16.
	ErrChannelOutOfRange = errors.New("channel out of range 1-16")
	// ErrDataOutOfRange is returned for a note, velocity, controller or value above 127.
	ErrDataOutOfRange = errors.New("data byte out of range 0-127")
)

// Sink accepts one complete message per Write call.
type Sink interface {
	Write(p []byte) error
}

// Composer encodes outbound channel messages.
//
// Channels are 1-based (1-16) and are written as channel-1 in the low nibble of
// the status byte. Invalid arguments are rejected and nothing is written.
type Composer struct {
	sink Sink
}

// NewComposer returns a composer writing to sink.
func NewComposer(sink Sink) *Composer {
	return &Composer{sink: sink}
}

// NoteOn writes [0x90|channel-1, note, velocity].
func (c *Composer) NoteOn(note, velocity, channel uint8) error {
	msg, err := EncodeNoteOn(note, velocity, channel)
	if err != nil {
		return err
	}
	return c.sink.Write(msg)
}

// NoteOff writes [0x80|channel-1, note, velocity].
func (c *Composer) NoteOff(note, velocity, channel uint8) error {
	msg, err := EncodeNoteOff(note, velocity, channel)
	if err != nil {
		return err
	}
	return c.sink.Write(msg)
}

// ControlChange writes [0xB0|channel-1, controller, value].
func (c *Composer) ControlChange(controller, value, channel uint8) error {
	msg, err := EncodeControlChange(controller, value, channel)
	if err != nil {
		return err
	}
	return c.sink.Write(msg)
}

// EncodeNoteOn validates its arguments and returns the three wire bytes.
func EncodeNoteOn(note, velocity, channel uint8) ([]byte, error) {
	wire, err := validate(note, velocity, channel)
	if err != nil {
		return nil, fmt.Errorf("note on: %w", err)
	}
	return []byte(midi.NoteOn(wire, note, velocity)), nil
}

// EncodeNoteOff validates its arguments and returns the three wire bytes.
func EncodeNoteOff(note, velocity, channel uint8) ([]byte, error) {
	wire, err := validate(note, velocity, channel)
	if err != nil {
		return nil, fmt.Errorf("note off: %w", err)
	}
	return []byte(midi.NoteOffVelocity(wire, note, velocity)), nil
}

// EncodeControlChange validates its arguments and returns the three wire bytes.
func EncodeControlChange(controller, value, channel uint8) ([]byte, error) {
	wire, err := validate(controller, value, channel)
	if err != nil {
		return nil, fmt.Errorf("control change: %w", err)
	}
	return []byte(midi.ControlChange(wire, controller, value)), nil
}

// validate checks the caller contract and returns the zero-based wire channel.
func validate(data1, data2, channel uint8) (uint8, error) {
	if channel < 1 || channel > 16 {
		return 0, fmt.Errorf("%w: %d", ErrChannelOutOfRange, channel)
	}
	if data1 > 127 {
		return 0, fmt.Errorf("%w: %d", ErrDataOutOfRange, data1)
	}
	if data2 > 127 {
		return 0, fmt.Errorf("%w: %d", ErrDataOutOfRange, data2)
	}
	return channel - 1, nil
}
