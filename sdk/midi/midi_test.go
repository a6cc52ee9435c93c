package midi

import (
	"errors"
	"testing"
	"time"

	"github.com/leandrodaf/midiserial/internal/link"
	"github.com/leandrodaf/midiserial/internal/logger"
	"github.com/leandrodaf/midiserial/internal/scheduler"
	"github.com/leandrodaf/midiserial/sdk/contracts"
)

func TestApplyDefaultOptions(t *testing.T) {
	opts, err := applyDefaultOptions(contracts.WithLogger(logger.NewNopLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if opts.BaudRate != contracts.MIDIBaudRate {
		t.Errorf("BaudRate = %d, want %d", opts.BaudRate, contracts.MIDIBaudRate)
	}
	if opts.PollInterval != time.Millisecond {
		t.Errorf("PollInterval = %v, want 1ms", opts.PollInterval)
	}
	if opts.Transport != contracts.SerialTransport {
		t.Errorf("Transport = %q, want serial", opts.Transport)
	}
	if opts.InboundBuffer != DefaultInboundBuffer {
		t.Errorf("InboundBuffer = %d", opts.InboundBuffer)
	}
	if _, ok := opts.Scheduler.(*scheduler.RealTime); !ok {
		t.Errorf("Scheduler = %T, want *scheduler.RealTime", opts.Scheduler)
	}
	if opts.HostClientName != DefaultClientName {
		t.Errorf("HostClientName = %q", opts.HostClientName)
	}
}

func TestApplyDefaultOptionsKeepsOverrides(t *testing.T) {
	clock := scheduler.NewVirtual()
	opts, err := applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithBaudRate(38400),
		contracts.WithPollInterval(5*time.Millisecond),
		contracts.WithScheduler(clock),
		contracts.WithEndpoints("/dev/in", "/dev/out"),
		contracts.WithTransport(contracts.HostTransport),
	)
	if err != nil {
		t.Fatal(err)
	}
	if opts.BaudRate != 38400 || opts.PollInterval != 5*time.Millisecond || opts.Scheduler != clock {
		t.Errorf("overrides lost: %+v", opts)
	}
	if opts.Endpoints != (contracts.Endpoints{Input: "/dev/in", Output: "/dev/out"}) {
		t.Errorf("Endpoints = %+v", opts.Endpoints)
	}
}

func TestApplyDefaultOptionsRejectsNegativeValues(t *testing.T) {
	if _, err := applyDefaultOptions(contracts.WithBaudRate(-1)); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("negative baud error = %v", err)
	}
	if _, err := applyDefaultOptions(contracts.WithPollInterval(-time.Second)); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("negative poll interval error = %v", err)
	}
}

func TestNewLinkFactory(t *testing.T) {
	orig := goos
	t.Cleanup(func() { goos = orig })

	tests := []struct {
		name      string
		transport string
		os        string
		wantErr   error
	}{
		{"serial", contracts.SerialTransport, "linux", nil},
		{"host on darwin", contracts.HostTransport, "darwin", nil},
		{"host on windows", contracts.HostTransport, "windows", nil},
		{"host on linux", contracts.HostTransport, "linux", ErrUnsupportedOS},
		{"unknown transport", "carrier-pigeon", "linux", ErrUnsupportedTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goos = tt.os
			opts := &contracts.ClientOptions{Logger: logger.NewNopLogger(), Transport: tt.transport}
			f, err := NewLinkFactory(opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && f == nil {
				t.Error("nil factory without error")
			}
		})
	}
}

// A loopback link: everything written is read back, so a sent message is
// decoded by the same client.
type loopback struct {
	*link.Memory
}

func (l loopback) Write(p []byte) error {
	l.Push(p...)
	return l.Memory.Write(p)
}

func TestNewMIDIClientLoopback(t *testing.T) {
	clock := scheduler.NewVirtual()
	client, err := NewMIDIClient(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithEndpoints("loop", "loop"),
		contracts.WithScheduler(clock),
		contracts.WithManualPolling(),
		contracts.WithLinkFactory(func(ep contracts.Endpoints, baud int) (contracts.ByteStreamLink, error) {
			return loopback{link.NewMemory()}, nil
		}),
	)
	if err != nil {
		t.Fatalf("NewMIDIClient: %v", err)
	}
	if err := client.Start(); err != nil {
		t.Fatal(err)
	}
	defer client.Stop()

	type got struct {
		kind       string
		ch, d1, d2 uint8
	}
	var events []got
	client.OnNoteOn(func(ch, d1, d2 uint8) { events = append(events, got{"on", ch, d1, d2}) })
	client.OnNoteOff(func(ch, d1, d2 uint8) { events = append(events, got{"off", ch, d1, d2}) })
	client.OnControlChange(func(ch, d1, d2 uint8) { events = append(events, got{"cc", ch, d1, d2}) })

	if err := client.PlayTimedNote(60, 127, 100*time.Millisecond, 1); err != nil {
		t.Fatal(err)
	}
	if err := client.SendControlChange(7, 100, 16); err != nil {
		t.Fatal(err)
	}
	client.Poll()
	clock.Advance(100 * time.Millisecond)
	client.Poll()

	want := []got{{"on", 0, 60, 127}, {"cc", 15, 7, 100}, {"off", 0, 60, 127}}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}
