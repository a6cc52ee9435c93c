//go:build !darwin
// +build !darwin

package mididarwin

import (
	"errors"

	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// ErrUnavailable is returned on systems without CoreMIDI.
var ErrUnavailable = errors.New("CoreMIDI is not available on this platform")

// Factory returns a LinkFactory that always fails outside macOS.
func Factory(opts *contracts.ClientOptions) contracts.LinkFactory {
	return func(ep contracts.Endpoints, baud int) (contracts.ByteStreamLink, error) {
		opts.Logger.Warn("CoreMIDI link requested on non-macOS system")
		return nil, ErrUnavailable
	}
}

// ListEndpoints always fails outside macOS.
func ListEndpoints() (inputs, outputs []string, err error) {
	return nil, nil, ErrUnavailable
}
