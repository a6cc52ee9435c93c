// Package device tracks the selected input and output endpoints and owns the
// link opened for them.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// ErrNoLink is returned by Write while no link is established.
var ErrNoLink = errors.New("no link established")

// Config holds the current endpoints and re-establishes the link whenever
// either endpoint or the baud rate changes. Every swap bumps a generation
// counter that readers use to discard decoder state tied to the old line.
type Config struct {
	logger  contracts.Logger
	factory contracts.LinkFactory

	mu         sync.RWMutex
	endpoints  contracts.Endpoints
	baud       int
	link       contracts.ByteStreamLink
	generation uint64
}

// New returns a Config with the given initial selection. No link is opened
// until Open is called.
func New(factory contracts.LinkFactory, ep contracts.Endpoints, baud int, logger contracts.Logger) *Config {
	return &Config{logger: logger, factory: factory, endpoints: ep, baud: baud}
}

// Open establishes the link for the current endpoints. With no endpoints
// selected it succeeds without a link.
func (c *Config) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link != nil {
		return nil
	}
	return c.reestablish()
}

// Endpoints returns the current selection.
func (c *Config) Endpoints() contracts.Endpoints {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoints
}

// Baud returns the configured line rate.
func (c *Config) Baud() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baud
}

// Generation increases every time the link is swapped.
func (c *Config) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// SetInput selects a new input endpoint and re-establishes the link.
func (c *Config) SetInput(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints.Input = name
	return c.reestablish()
}

// SetOutput selects a new output endpoint and re-establishes the link.
func (c *Config) SetOutput(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints.Output = name
	return c.reestablish()
}

// SetBaud changes the line rate of the current link.
func (c *Config) SetBaud(baud int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baud = baud
	if c.link == nil {
		return nil
	}
	if err := c.link.Configure(baud); err != nil {
		return fmt.Errorf("configuring baud %d: %w", baud, err)
	}
	return nil
}

// reestablish closes the old link and opens one for the current selection.
// The old link is closed first because input and output may share a device.
// Callers hold c.mu.
func (c *Config) reestablish() error {
	if c.link != nil {
		if err := c.link.Close(); err != nil {
			c.logger.Warn("closing previous link failed", c.logger.Field().Error("error", err))
		}
		c.link = nil
	}
	c.generation++

	if c.endpoints.Input == "" && c.endpoints.Output == "" {
		c.logger.Info("no endpoints selected; link idle")
		return nil
	}

	l, err := c.factory(c.endpoints, c.baud)
	if err != nil {
		return fmt.Errorf("opening link %s -> %s: %w", c.endpoints.Input, c.endpoints.Output, err)
	}
	if err := l.Configure(c.baud); err != nil {
		_ = l.Close()
		return fmt.Errorf("configuring baud %d: %w", c.baud, err)
	}
	c.link = l
	c.logger.Info("link established",
		c.logger.Field().String("input", c.endpoints.Input),
		c.logger.Field().String("output", c.endpoints.Output),
		c.logger.Field().Int("baud", c.baud),
		c.logger.Field().Uint64("generation", c.generation))
	return nil
}

// Write sends p on the current link as one unit.
func (c *Config) Write(p []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.link == nil {
		return ErrNoLink
	}
	return c.link.Write(p)
}

// ReadAvailable copies already-received bytes into buf without blocking and
// returns the count together with the generation of the link they came from.
func (c *Config) ReadAvailable(buf []byte) (int, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.link == nil {
		return 0, c.generation
	}
	n := 0
	for n < len(buf) {
		b, ok := c.link.TryReadByte()
		if !ok {
			break
		}
		buf[n] = b
		n++
	}
	return n, c.generation
}

// Close closes the current link. The selection is kept so Open can reopen it.
func (c *Config) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return nil
	}
	err := c.link.Close()
	c.link = nil
	c.generation++
	return err
}
