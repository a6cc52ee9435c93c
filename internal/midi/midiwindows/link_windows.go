//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/leandrodaf/midiserial/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type (
	HMIDIIN  windows.Handle
	HMIDIOUT windows.Handle
)

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

// ErrLinkClosed is returned by Write after Close.
var ErrLinkClosed = errors.New("link closed")

// midiInCaps mirrors MIDIINCAPSW.
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// midiOutCaps mirrors MIDIOUTCAPSW.
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs  = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps  = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen        = winmm.NewProc("midiInOpen")
	procMidiInStart       = winmm.NewProc("midiInStart")
	procMidiInStop        = winmm.NewProc("midiInStop")
	procMidiInClose       = winmm.NewProc("midiInClose")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

// midiInCallbackPtr is created once and shared by every input. Callback
// slots are never released.
var midiInCallbackPtr = windows.NewCallback(midiInCallback)

// Link bridges winmm input and output devices to a byte stream.
// winmm delivers complete short messages; their bytes are queued in order.
type Link struct {
	logger  contracts.Logger
	in      HMIDIIN
	out     HMIDIOUT
	inbound chan byte
	dropped atomic.Uint64

	mu     sync.Mutex
	closed atomic.Bool
	once   sync.Once
}

// Factory returns a LinkFactory opening winmm links.
func Factory(opts *contracts.ClientOptions) contracts.LinkFactory {
	return func(ep contracts.Endpoints, baud int) (contracts.ByteStreamLink, error) {
		return NewLink(ep, opts)
	}
}

// NewLink opens the input and output devices named (or indexed) by ep.
func NewLink(ep contracts.Endpoints, opts *contracts.ClientOptions) (*Link, error) {
	l := &Link{logger: opts.Logger, inbound: make(chan byte, opts.InboundBuffer)}

	if ep.Input != "" {
		inputs, _ := inputNames()
		id, err := resolve(ep.Input, inputs)
		if err != nil {
			return nil, err
		}
		r1, _, callErr := procMidiInOpen.Call(
			uintptr(unsafe.Pointer(&l.in)),
			uintptr(id),
			midiInCallbackPtr,
			uintptr(unsafe.Pointer(l)),
			uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
		)
		if r1 != 0 {
			return nil, fmt.Errorf("failed to open MIDI input %d: %v", id, callErr)
		}
		if r1, _, callErr = procMidiInStart.Call(uintptr(l.in)); r1 != 0 {
			procMidiInClose.Call(uintptr(l.in))
			return nil, fmt.Errorf("failed to start MIDI input %d: %v", id, callErr)
		}
	}

	if ep.Output != "" {
		outputs, _ := outputNames()
		id, err := resolve(ep.Output, outputs)
		if err != nil {
			l.closeInput()
			return nil, err
		}
		r1, _, callErr := procMidiOutOpen.Call(uintptr(unsafe.Pointer(&l.out)), uintptr(id), 0, 0, 0)
		if r1 != 0 {
			l.closeInput()
			return nil, fmt.Errorf("failed to open MIDI output %d: %v", id, callErr)
		}
	}

	l.logger.Info("winmm link opened",
		l.logger.Field().String("input", ep.Input),
		l.logger.Field().String("output", ep.Output))
	return l, nil
}

func resolve(name string, names []string) (int, error) {
	for i, n := range names {
		if n == name {
			return i, nil
		}
	}
	if id, err := strconv.Atoi(name); err == nil && id >= 0 && id < len(names) {
		return id, nil
	}
	return 0, fmt.Errorf("no MIDI device %q", name)
}

// midiInCallback receives winmm input notifications.
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	l := (*Link)(unsafe.Pointer(dwInstance))

	switch wMsg {
	case MIM_OPEN:
		l.logger.Debug("MIDI device opened")
	case MIM_CLOSE:
		l.logger.Debug("MIDI device closed")
	case MIM_DATA, MIM_MOREDATA:
		if l.closed.Load() {
			return 0
		}
		msg := []byte{byte(dwParam1), byte(dwParam1 >> 8), byte(dwParam1 >> 16)}
		for _, b := range msg[:shortMessageLen(msg[0])] {
			select {
			case l.inbound <- b:
			default:
				if l.dropped.Add(1) == 1 {
					l.logger.Warn("MIDI event channel is full; bytes discarded")
				}
			}
		}
	case MIM_ERROR, MIM_LONGERROR:
		l.logger.Error(fmt.Sprintf("MIDI error: msg=0x%X", wMsg))
	default:
		l.logger.Warn(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}

	return 0
}

// shortMessageLen returns how many bytes of a packed short message are meaningful.
func shortMessageLen(status byte) int {
	switch {
	case status < 0x80:
		return 2 // running status: two data bytes
	case status >= 0xF8:
		return 1
	case status&0xF0 == 0xC0, status&0xF0 == 0xD0, status == 0xF1, status == 0xF3:
		return 2
	case status == 0xF6:
		return 1
	default:
		return 3
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

// Write sends p as one packed short message.
func (l *Link) Write(p []byte) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	if l.out == 0 {
		return errors.New("no MIDI output selected")
	}
	var packed uintptr
	for i, b := range p {
		if i == 3 {
			break
		}
		packed |= uintptr(b) << (8 * i)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if r1, _, err := procMidiOutShortMsg.Call(uintptr(l.out), packed); r1 != 0 {
		return fmt.Errorf("midiOutShortMsg failed: %v", err)
	}
	return nil
}

// Configure is a no-op: winmm devices have no line rate.
func (l *Link) Configure(baud int) error {
	l.logger.Debug("ignoring baud rate on winmm link", l.logger.Field().Int("baud", baud))
	return nil
}

func (l *Link) closeInput() {
	if l.in == 0 {
		return
	}
	if r1, _, err := procMidiInStop.Call(uintptr(l.in)); r1 != 0 {
		l.logger.Error(fmt.Sprintf("Failed to stop MIDI capture: %v", err))
	}
	if r1, _, err := procMidiInClose.Call(uintptr(l.in)); r1 != 0 {
		l.logger.Error(fmt.Sprintf("Failed to close MIDI device: %v", err))
	}
	l.in = 0
}

// Close stops input and releases both devices.
func (l *Link) Close() error {
	l.once.Do(func() {
		l.closed.Store(true)
		l.mu.Lock()
		defer l.mu.Unlock()
		l.closeInput()
		if l.out != 0 {
			procMidiOutClose.Call(uintptr(l.out))
			l.out = 0
		}
		l.logger.Info("winmm link closed")
	})
	return nil
}

func inputNames() ([]string, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	n := uint32(r0)
	names := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 != 0 {
			names = append(names, "")
			continue
		}
		names = append(names, windows.UTF16ToString(caps.szPname[:]))
	}
	return names, nil
}

func outputNames() ([]string, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	n := uint32(r0)
	names := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 != 0 {
			names = append(names, "")
			continue
		}
		names = append(names, windows.UTF16ToString(caps.szPname[:]))
	}
	return names, nil
}

// ListEndpoints returns the winmm input and output device names.
func ListEndpoints() (inputs, outputs []string, err error) {
	if inputs, err = inputNames(); err != nil {
		return nil, nil, err
	}
	if outputs, err = outputNames(); err != nil {
		return nil, nil, err
	}
	return inputs, outputs, nil
}
