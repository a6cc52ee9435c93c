//go:build !windows
// +build !windows

package midiwindows

import (
	"errors"

	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// ErrUnavailable is returned on systems without winmm.
var ErrUnavailable = errors.New("winmm MIDI is not available on this platform")

// Factory returns a LinkFactory that always fails outside Windows.
func Factory(opts *contracts.ClientOptions) contracts.LinkFactory {
	return func(ep contracts.Endpoints, baud int) (contracts.ByteStreamLink, error) {
		opts.Logger.Warn("winmm link requested on non-Windows system")
		return nil, ErrUnavailable
	}
}

// ListEndpoints always fails outside Windows.
func ListEndpoints() (inputs, outputs []string, err error) {
	return nil, nil, ErrUnavailable
}
