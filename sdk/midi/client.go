package midi

import (
	"github.com/leandrodaf/midiserial/internal/transceiver"
	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// NewMIDIClient creates a MIDI-over-serial transceiver with the specified options.
// It applies default options, resolves the transport and builds the client. The
// link is opened by Start, or by the first handler registration.
//
// opts ...contracts.Option: A variadic list of option functions to customize the client configuration.
//
// Returns:
//   - contracts.Transceiver: The transceiver.
//   - error: An error if the options are invalid or the transport is unsupported.
func NewMIDIClient(opts ...contracts.Option) (contracts.Transceiver, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	factory, err := NewLinkFactory(&options)
	if err != nil {
		return nil, err
	}

	return transceiver.New(&options, factory), nil
}
