// Package codec converts between the MIDI wire byte stream and contracts.Event values.
package codec

import "github.com/leandrodaf/midiserial/sdk/contracts"

// TimingClock is the real-time clock byte. It is filtered before any other decoding.
const TimingClock = 0xF8

// Status nibbles of the decoded channel messages.
const (
	nibbleNoteOff       = 0x8
	nibbleNoteOn        = 0x9
	nibbleControlChange = 0xB
)

// State is the position of the parser within a message.
type State uint8

const (
	// AwaitingStatus is the initial state: no running status has been seen.
	AwaitingStatus State = iota
	// AwaitingData1 holds a running status and waits for the first data byte.
	AwaitingData1
	// AwaitingData2 holds a running status and data1 and waits for the second data byte.
	AwaitingData2
)

func (s State) String() string {
	switch s {
	case AwaitingData1:
		return "AwaitingData1"
	case AwaitingData2:
		return "AwaitingData2"
	default:
		return "AwaitingStatus"
	}
}

// Parser decodes a byte stream one byte at a time.
//
// Any byte with the high bit set (other than TimingClock) becomes the running
// status and abandons a partially received message, so the parser
// resynchronizes on the next status byte no matter how the stream was split.
// A Parser is not safe for concurrent use.
type Parser struct {
	state  State
	status byte
	data1  byte
}

// NewParser returns a parser in the AwaitingStatus state.
func NewParser() *Parser {
	return &Parser{}
}

// State reports the current parser state.
func (p *Parser) State() State {
	return p.state
}

// RunningStatus returns the last status byte seen, or 0 in AwaitingStatus.
func (p *Parser) RunningStatus() byte {
	return p.status
}

// Reset discards running status and any partial message.
func (p *Parser) Reset() {
	*p = Parser{}
}

// Feed consumes one byte. It returns a complete event and true when b finishes a
// three-byte message, including messages of kind Unknown.
func (p *Parser) Feed(b byte) (contracts.Event, bool) {
	if b == TimingClock {
		return contracts.Event{}, false
	}

	if b&0x80 != 0 {
		p.status = b
		p.state = AwaitingData1
		return contracts.Event{}, false
	}

	switch p.state {
	case AwaitingData1:
		p.data1 = b
		p.state = AwaitingData2
	case AwaitingData2:
		p.state = AwaitingData1
		return decode(p.status, p.data1, b), true
	}
	// AwaitingStatus: orphan data byte, nothing to attach it to.
	return contracts.Event{}, false
}

// FeedAll runs every byte of buf through Feed and returns the completed events.
func (p *Parser) FeedAll(buf []byte) []contracts.Event {
	var events []contracts.Event
	for _, b := range buf {
		if ev, ok := p.Feed(b); ok {
			events = append(events, ev)
		}
	}
	return events
}

func decode(status, data1, data2 byte) contracts.Event {
	ev := contracts.Event{
		Kind:    contracts.Unknown,
		Channel: status & 0x0F,
		Data1:   data1,
		Data2:   data2,
	}
	switch (status >> 4) & 0x0F {
	case nibbleNoteOff:
		ev.Kind = contracts.NoteOff
	case nibbleNoteOn:
		ev.Kind = contracts.NoteOn
	case nibbleControlChange:
		ev.Kind = contracts.ControlChange
	}
	return ev
}
