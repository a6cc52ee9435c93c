// Package link provides ByteStreamLink implementations: a UART link on top of
// go.bug.st/serial and an in-memory link for tests and simulation.
package link

import (
	"errors"
	"sync"
)

var (
	// ErrLinkClosed is returned by Write after Close.
	ErrLinkClosed = errors.New("link closed")
	// ErrNoEndpoint is returned when neither an input nor an output is selected.
	ErrNoEndpoint = errors.New("no endpoint selected")
)

// Memory is an in-process link. Bytes pushed with Push are returned by
// TryReadByte; every Write is recorded as one message.
type Memory struct {
	mu     sync.Mutex
	in     []byte
	out    [][]byte
	baud   int
	closed bool
}

// NewMemory returns an empty in-memory link.
func NewMemory() *Memory {
	return &Memory{}
}

// Push queues bytes as if they had been received on the line.
func (m *Memory) Push(b ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in = append(m.in, b...)
}

// TryReadByte implements contracts.ByteStreamLink.
func (m *Memory) TryReadByte() (byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.in) == 0 {
		return 0, false
	}
	b := m.in[0]
	m.in = m.in[1:]
	return b, true
}

// Write implements contracts.ByteStreamLink.
func (m *Memory) Write(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrLinkClosed
	}
	m.out = append(m.out, append([]byte(nil), p...))
	return nil
}

// Configure implements contracts.ByteStreamLink.
func (m *Memory) Configure(baud int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baud = baud
	return nil
}

// Close implements contracts.ByteStreamLink.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns a copy of every message written so far.
func (m *Memory) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.out))
	for i, w := range m.out {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Baud returns the last configured rate.
func (m *Memory) Baud() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baud
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Buffered returns the number of pushed bytes not yet read.
func (m *Memory) Buffered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.in)
}
