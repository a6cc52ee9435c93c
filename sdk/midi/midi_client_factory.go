package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midiserial/internal/link"
	"github.com/leandrodaf/midiserial/internal/midi/mididarwin"
	"github.com/leandrodaf/midiserial/internal/midi/midiwindows"
	"github.com/leandrodaf/midiserial/sdk/contracts"
)

var (
	// ErrUnsupportedOS is returned when the host transport has no implementation for this OS.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrUnsupportedTransport is returned for an unknown transport name.
	ErrUnsupportedTransport = errors.New("unsupported transport")
)

// hostInitializers maps OS names to the host MIDI bridge for that system.
var hostInitializers = map[string]func(*contracts.ClientOptions) contracts.LinkFactory{
	"darwin":  mididarwin.Factory,  // macOS (Darwin) CoreMIDI bridge.
	"windows": midiwindows.Factory, // Windows winmm bridge.
}

// goos is replaced in tests.
var goos = runtime.GOOS

// NewLinkFactory resolves the link constructor for opts. An explicit
// LinkFactory wins; otherwise Transport selects the serial driver or the host
// bridge for the current operating system.
func NewLinkFactory(opts *contracts.ClientOptions) (contracts.LinkFactory, error) {
	if opts.LinkFactory != nil {
		return opts.LinkFactory, nil
	}
	switch opts.Transport {
	case contracts.SerialTransport:
		return link.SerialFactory(opts.Logger, opts.InboundBuffer), nil
	case contracts.HostTransport:
		if initializer, exists := hostInitializers[goos]; exists {
			return initializer(opts), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, opts.Transport)
	}
}

// ListEndpoints returns the input and output names available for transport.
func ListEndpoints(transport string) (inputs, outputs []string, err error) {
	switch transport {
	case contracts.SerialTransport:
		ports, err := link.ListPorts()
		if err != nil {
			return nil, nil, err
		}
		return ports, ports, nil
	case contracts.HostTransport:
		switch goos {
		case "darwin":
			return mididarwin.ListEndpoints()
		case "windows":
			return midiwindows.ListEndpoints()
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, transport)
	}
}
