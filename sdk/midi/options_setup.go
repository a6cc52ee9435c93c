package midi

import (
	"errors"
	"fmt"
	"time"

	"github.com/leandrodaf/midiserial/internal/logger"
	"github.com/leandrodaf/midiserial/internal/scheduler"
	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// Defaults applied when an option is not provided.
const (
	DefaultPollInterval  = time.Millisecond
	DefaultInboundBuffer = 1024
	DefaultClientName    = "GO MIDI Serial"
)

// ErrInvalidOption is returned for option values that can never work.
var ErrInvalidOption = errors.New("invalid option")

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: An error if a provided value is out of range.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.BaudRate < 0 {
		return contracts.ClientOptions{}, fmt.Errorf("%w: baud rate %d", ErrInvalidOption, options.BaudRate)
	}
	if options.PollInterval < 0 {
		return contracts.ClientOptions{}, fmt.Errorf("%w: poll interval %v", ErrInvalidOption, options.PollInterval)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	if options.Transport == "" {
		options.Transport = contracts.SerialTransport
	}
	if options.BaudRate == 0 {
		options.BaudRate = contracts.MIDIBaudRate
	}
	if options.PollInterval == 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.InboundBuffer <= 0 {
		options.InboundBuffer = DefaultInboundBuffer
	}
	if options.Scheduler == nil {
		options.Scheduler = scheduler.NewRealTime()
	}
	if options.HostClientName == "" {
		options.HostClientName = DefaultClientName
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options, nil
}
