package scheduler

import (
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestVirtualRunsTasksInDeadlineOrder(t *testing.T) {
	v := NewVirtual()
	var order []string
	v.ScheduleAfter(30*time.Millisecond, func() { order = append(order, "c") })
	v.ScheduleAfter(10*time.Millisecond, func() { order = append(order, "a") })
	v.ScheduleAfter(10*time.Millisecond, func() { order = append(order, "b") })

	v.Advance(9 * time.Millisecond)
	if len(order) != 0 {
		t.Fatalf("tasks ran early: %v", order)
	}

	v.Advance(1 * time.Millisecond)
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Fatalf("order = %v, want [a b]", order)
	}

	v.Advance(time.Second)
	if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
		t.Errorf("order = %v, want [a b c]", order)
	}
	if v.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", v.Pending())
	}
	if v.Now() != 1010*time.Millisecond {
		t.Errorf("Now() = %v, want 1.01s", v.Now())
	}
}

func TestVirtualClockVisibleInsideTask(t *testing.T) {
	v := NewVirtual()
	var at time.Duration
	v.ScheduleAfter(25*time.Millisecond, func() { at = v.Now() })
	v.Advance(100 * time.Millisecond)
	if at != 25*time.Millisecond {
		t.Errorf("task saw Now() = %v, want 25ms", at)
	}
}

func TestVirtualTaskSchedulingTask(t *testing.T) {
	v := NewVirtual()
	fired := 0
	v.ScheduleAfter(10*time.Millisecond, func() {
		fired++
		v.ScheduleAfter(10*time.Millisecond, func() { fired++ })
	})
	v.Advance(15 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d after 15ms, want 1", fired)
	}
	v.Advance(5 * time.Millisecond)
	if fired != 2 {
		t.Errorf("fired = %d after 20ms, want 2", fired)
	}
}

func TestRealTimeWait(t *testing.T) {
	r := NewRealTime()
	var n atomic.Int32
	start := time.Now()
	r.ScheduleAfter(20*time.Millisecond, func() { n.Add(1) })
	r.ScheduleAfter(5*time.Millisecond, func() { n.Add(1) })
	r.Wait()

	if n.Load() != 2 {
		t.Errorf("ran %d tasks, want 2", n.Load())
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait returned after %v, before the last deadline", elapsed)
	}
}
