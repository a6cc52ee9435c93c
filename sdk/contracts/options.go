package contracts

import (
	"io"
	"time"
)

// Transport names accepted by WithTransport.
const (
	// SerialTransport drives a UART device directly.
	SerialTransport = "serial"
	// HostTransport bridges to the operating system MIDI stack (CoreMIDI, winmm).
	HostTransport = "host"
)

// ClientOptions defines the configuration options for the transceiver.
type ClientOptions struct {
	Logger         Logger        // Logger for link lifecycle and decoding diagnostics.
	LogLevel       LogLevel      // Level of logging to use.
	LogFilePath    string        // File path for logging; empty logs to the console.
	Transport      string        // Transport used when LinkFactory is nil.
	Endpoints      Endpoints     // Initially selected input and output.
	BaudRate       int           // Line rate passed to ByteStreamLink.Configure.
	PollInterval   time.Duration // Period of the inbound polling loop.
	InboundBuffer  int           // Bytes buffered between the device reader and the poller.
	Scheduler      Scheduler     // Runs deferred note-offs.
	LinkFactory    LinkFactory   // Opens links; overrides Transport when set.
	Diagnostics    io.Writer     // Receives ReportValue lines; nil logs them instead.
	HostClientName string        // Client name registered with the host MIDI stack.
	ManualPolling  bool          // When set no polling goroutine runs; the caller drives Poll.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFilePath sends log output to path.
func WithLogFilePath(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithTransport selects SerialTransport or HostTransport.
func WithTransport(name string) Option {
	return func(opts *ClientOptions) {
		opts.Transport = name
	}
}

// WithEndpoints selects the initial input and output endpoints.
func WithEndpoints(input, output string) Option {
	return func(opts *ClientOptions) {
		opts.Endpoints = Endpoints{Input: input, Output: output}
	}
}

// WithBaudRate overrides the MIDI baud rate.
func WithBaudRate(baud int) Option {
	return func(opts *ClientOptions) {
		opts.BaudRate = baud
	}
}

// WithPollInterval sets how often the link is drained.
func WithPollInterval(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.PollInterval = d
	}
}

// WithInboundBuffer sets the inbound byte buffer size of device readers.
func WithInboundBuffer(n int) Option {
	return func(opts *ClientOptions) {
		opts.InboundBuffer = n
	}
}

// WithScheduler replaces the scheduler used for deferred note-offs.
func WithScheduler(s Scheduler) Option {
	return func(opts *ClientOptions) {
		opts.Scheduler = s
	}
}

// WithLinkFactory replaces the transport with a custom link constructor.
func WithLinkFactory(f LinkFactory) Option {
	return func(opts *ClientOptions) {
		opts.LinkFactory = f
	}
}

// WithDiagnostics sets the writer for ReportValue lines.
func WithDiagnostics(w io.Writer) Option {
	return func(opts *ClientOptions) {
		opts.Diagnostics = w
	}
}

// WithHostClientName sets the client name registered with CoreMIDI.
func WithHostClientName(name string) Option {
	return func(opts *ClientOptions) {
		opts.HostClientName = name
	}
}

// WithManualPolling disables the polling goroutine. The caller must invoke
// Poll from a single goroutine to drain the link.
func WithManualPolling() Option {
	return func(opts *ClientOptions) {
		opts.ManualPolling = true
	}
}
