// Package scheduler runs deferred fire-and-forget tasks.
package scheduler

import (
	"sync"
	"time"
)

// RealTime schedules tasks on the wall clock with time.AfterFunc.
// Each task runs on its own goroutine when its delay elapses.
type RealTime struct {
	wg sync.WaitGroup
}

// NewRealTime returns a wall-clock scheduler.
func NewRealTime() *RealTime {
	return &RealTime{}
}

// ScheduleAfter runs task once after d.
func (r *RealTime) ScheduleAfter(d time.Duration, task func()) {
	r.wg.Add(1)
	time.AfterFunc(d, func() {
		defer r.wg.Done()
		task()
	})
}

// Wait blocks until every task scheduled so far has run.
func (r *RealTime) Wait() {
	r.wg.Wait()
}
