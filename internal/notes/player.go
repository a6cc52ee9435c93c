// Package notes sends timed notes: a Note On now and its Note Off later.
package notes

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midiserial/internal/codec"
	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// ScheduledNoteOff is a Note Off waiting for its deadline.
type ScheduledNoteOff struct {
	Note     uint8
	Velocity uint8
	Channel  uint8 // 1-based, as passed by the caller.
	FireAt   time.Time
}

// Player turns a note with a duration into two time-separated messages.
//
// Scheduled Note Offs cannot be cancelled. Two overlapping timed notes with the
// same note and channel each send their own Note Off, so the first Note Off
// silences the second note early and the second one arrives as a stray.
type Player struct {
	composer *codec.Composer
	sched    contracts.Scheduler
	logger   contracts.Logger
	now      func() time.Time
	pending  atomic.Int64
}

// NewPlayer returns a Player sending through composer and deferring with sched.
func NewPlayer(composer *codec.Composer, sched contracts.Scheduler, logger contracts.Logger) *Player {
	return &Player{
		composer: composer,
		sched:    sched,
		logger:   logger,
		now:      time.Now,
	}
}

// PlayTimedNote sends Note On before returning and schedules the matching
// Note Off, with the same velocity and channel, after d. Arguments are
// validated up front so an invalid request sends nothing.
func (p *Player) PlayTimedNote(note, velocity uint8, d time.Duration, channel uint8) error {
	if _, err := codec.EncodeNoteOff(note, velocity, channel); err != nil {
		return fmt.Errorf("timed note: %w", err)
	}
	if err := p.composer.NoteOn(note, velocity, channel); err != nil {
		return fmt.Errorf("timed note: %w", err)
	}

	off := ScheduledNoteOff{Note: note, Velocity: velocity, Channel: channel, FireAt: p.now().Add(d)}
	p.pending.Add(1)
	p.sched.ScheduleAfter(d, func() { p.fire(off) })
	return nil
}

// Pending returns the number of Note Offs scheduled but not yet sent.
func (p *Player) Pending() int {
	return int(p.pending.Load())
}

func (p *Player) fire(off ScheduledNoteOff) {
	defer p.pending.Add(-1)
	if err := p.composer.NoteOff(off.Note, off.Velocity, off.Channel); err != nil {
		p.logger.Warn("deferred note off not sent",
			p.logger.Field().Uint8("note", off.Note),
			p.logger.Field().Uint8("channel", off.Channel),
			p.logger.Field().Error("error", err))
	}
}
