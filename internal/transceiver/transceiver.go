// Package transceiver ties the link, decoder, dispatcher and composer together
// behind contracts.Transceiver.
package transceiver

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midiserial/internal/codec"
	"github.com/leandrodaf/midiserial/internal/device"
	"github.com/leandrodaf/midiserial/internal/dispatch"
	"github.com/leandrodaf/midiserial/internal/notes"
	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// ErrAlreadyRunning is returned by Start while the polling goroutine is active.
var ErrAlreadyRunning = errors.New("transceiver already running")

const readChunk = 64

// Transceiver implements contracts.Transceiver.
//
// The parser and the dispatch of decoded events belong to whoever calls Poll:
// the polling goroutine, or the caller under manual polling. Sends may come
// from any goroutine, including deferred note-off tasks.
type Transceiver struct {
	logger      contracts.Logger
	opts        *contracts.ClientOptions
	device      *device.Config
	parser      *codec.Parser
	injectParse *codec.Parser
	dispatcher  *dispatch.Dispatcher
	composer    *codec.Composer
	player      *notes.Player

	buf        []byte
	generation uint64

	injectMu sync.Mutex
	injected []byte

	inPoll atomic.Bool

	mu       sync.Mutex
	listened bool
	opened   bool
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// New builds a transceiver using factory to open links. opts must already
// carry defaults (logger, scheduler, baud rate, poll interval).
func New(opts *contracts.ClientOptions, factory contracts.LinkFactory) *Transceiver {
	cfg := device.New(factory, opts.Endpoints, opts.BaudRate, opts.Logger)
	composer := codec.NewComposer(cfg)
	return &Transceiver{
		logger:      opts.Logger,
		opts:        opts,
		device:      cfg,
		parser:      codec.NewParser(),
		injectParse: codec.NewParser(),
		dispatcher:  dispatch.New(),
		composer:    composer,
		player:      notes.NewPlayer(composer, opts.Scheduler, opts.Logger),
		buf:         make([]byte, readChunk),
	}
}

// OnNoteOn registers the Note On handler and starts listening if needed.
func (t *Transceiver) OnNoteOn(h contracts.Handler) {
	t.dispatcher.Register(contracts.NoteOn, h)
	t.ensureListening()
}

// OnNoteOff registers the Note Off handler and starts listening if needed.
func (t *Transceiver) OnNoteOff(h contracts.Handler) {
	t.dispatcher.Register(contracts.NoteOff, h)
	t.ensureListening()
}

// OnControlChange registers the Control Change handler and starts listening if needed.
func (t *Transceiver) OnControlChange(h contracts.Handler) {
	t.dispatcher.Register(contracts.ControlChange, h)
	t.ensureListening()
}

// ensureListening starts the listener when a handler is registered and no
// listener has run yet. A failed start is retried on the next registration;
// an explicit Stop is not undone by later registrations.
func (t *Transceiver) ensureListening() {
	if t.opts.ManualPolling {
		return
	}
	t.mu.Lock()
	listened := t.listened
	t.mu.Unlock()
	if listened {
		return
	}
	if err := t.Start(); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		t.logger.Warn("could not start listening", t.logger.Field().Error("error", err))
	}
}

// SendNoteOn writes a Note On. channel is 1-based.
func (t *Transceiver) SendNoteOn(note, velocity, channel uint8) error {
	return t.composer.NoteOn(note, velocity, channel)
}

// SendNoteOff writes a Note Off. channel is 1-based.
func (t *Transceiver) SendNoteOff(note, velocity, channel uint8) error {
	return t.composer.NoteOff(note, velocity, channel)
}

// SendControlChange writes a Control Change. channel is 1-based.
func (t *Transceiver) SendControlChange(controller, value, channel uint8) error {
	return t.composer.ControlChange(controller, value, channel)
}

// PlayTimedNote sends Note On now and Note Off after d without blocking.
func (t *Transceiver) PlayTimedNote(note, velocity uint8, d time.Duration, channel uint8) error {
	return t.player.PlayTimedNote(note, velocity, d, channel)
}

// PendingNoteOffs returns the number of scheduled Note Offs not yet sent.
func (t *Transceiver) PendingNoteOffs() int {
	return t.player.Pending()
}

// SetInputEndpoint switches the input and re-establishes the link.
func (t *Transceiver) SetInputEndpoint(name string) error {
	return t.device.SetInput(name)
}

// SetOutputEndpoint switches the output and re-establishes the link.
func (t *Transceiver) SetOutputEndpoint(name string) error {
	return t.device.SetOutput(name)
}

// SetBaudRate changes the line rate of the current link.
func (t *Transceiver) SetBaudRate(baud int) error {
	return t.device.SetBaud(baud)
}

// Endpoints returns the current selection.
func (t *Transceiver) Endpoints() contracts.Endpoints {
	return t.device.Endpoints()
}

// Inject queues bytes to be decoded on the next Poll as if received. They use
// their own parser so they never splice into a message arriving on the link.
func (t *Transceiver) Inject(b ...byte) {
	t.injectMu.Lock()
	t.injected = append(t.injected, b...)
	t.injectMu.Unlock()
}

// ReportValue writes "name:value" to the diagnostics writer, or logs it.
func (t *Transceiver) ReportValue(name string, value float64) {
	if t.opts.Diagnostics == nil {
		t.logger.Info("value",
			t.logger.Field().String("name", name),
			t.logger.Field().Float64("value", value))
		return
	}
	if _, err := fmt.Fprintf(t.opts.Diagnostics, "%s:%g\r\n", name, value); err != nil {
		t.logger.Warn("diagnostic write failed", t.logger.Field().Error("error", err))
	}
}

// Poll decodes injected bytes and everything currently available on the link,
// dispatching complete events. It returns the number of link bytes consumed.
// Poll must not be called concurrently with itself.
func (t *Transceiver) Poll() int {
	t.injectMu.Lock()
	injected := t.injected
	t.injected = nil
	t.injectMu.Unlock()
	for _, b := range injected {
		if ev, ok := t.injectParse.Feed(b); ok {
			t.deliver(ev)
		}
	}

	total := 0
	for {
		n, gen := t.device.ReadAvailable(t.buf)
		if gen != t.generation {
			// The line changed under us; running status from the old one is meaningless.
			t.parser.Reset()
			t.generation = gen
		}
		for _, b := range t.buf[:n] {
			if ev, ok := t.parser.Feed(b); ok {
				t.deliver(ev)
			}
		}
		total += n
		if n < len(t.buf) {
			return total
		}
	}
}

func (t *Transceiver) deliver(ev contracts.Event) {
	if ev.Kind == contracts.Unknown {
		t.logger.Debug("discarding unsupported message",
			t.logger.Field().Uint8("channel", ev.Channel),
			t.logger.Field().Uint8("data1", ev.Data1),
			t.logger.Field().Uint8("data2", ev.Data2))
		return
	}
	t.dispatcher.Dispatch(ev)
}

// Start opens the link and, unless manual polling is configured, starts the
// polling goroutine.
func (t *Transceiver) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrAlreadyRunning
	}
	if !t.opened {
		if err := t.device.Open(); err != nil {
			return fmt.Errorf("opening link: %w", err)
		}
		t.opened = true
	}
	if t.opts.ManualPolling {
		return nil
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.running = true
	t.listened = true
	go t.loop(t.stop, t.done)
	t.logger.Info("MIDI listener started",
		t.logger.Field().Duration("pollInterval", t.opts.PollInterval))
	return nil
}

func (t *Transceiver) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.inPoll.Store(true)
			t.Poll()
			t.inPoll.Store(false)
		}
	}
}

// Stop halts polling and closes the link. Scheduled Note Offs still fire;
// with the link closed their writes fail and are logged.
//
// Stop may be called from a handler. While the polling goroutine is
// dispatching, Stop does not wait for it; the goroutine exits once the
// current Poll returns.
func (t *Transceiver) Stop() error {
	t.mu.Lock()
	running, stop, done := t.running, t.stop, t.done
	t.running = false
	t.opened = false
	t.listened = true
	t.mu.Unlock()

	if running {
		close(stop)
		if !t.inPoll.Load() {
			<-done
		}
		t.logger.Info("MIDI listener stopped")
	}
	return t.device.Close()
}
