package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

type pending struct {
	at   time.Duration
	seq  uint64
	task func()
}

type queue []pending

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x interface{}) { *q = append(*q, x.(pending)) }
func (q *queue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Virtual is a manually advanced clock. Tasks run only inside Advance, in
// deadline order, on the goroutine calling Advance.
type Virtual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks queue
}

// NewVirtual returns a virtual clock at time zero.
func NewVirtual() *Virtual {
	return &Virtual{}
}

// ScheduleAfter queues task to run once the clock reaches Now()+d.
func (v *Virtual) ScheduleAfter(d time.Duration, task func()) {
	if d < 0 {
		d = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	heap.Push(&v.tasks, pending{at: v.now + d, seq: v.seq, task: task})
}

// Now returns the elapsed virtual time.
func (v *Virtual) Now() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Pending returns the number of tasks not yet run.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tasks.Len()
}

// Advance moves the clock forward by d, running every task whose deadline is
// reached. Tasks scheduled by a running task are honoured if they fall inside
// the window.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now + d
	for v.tasks.Len() > 0 && v.tasks[0].at <= target {
		next := heap.Pop(&v.tasks).(pending)
		v.now = next.at
		v.mu.Unlock()
		next.task()
		v.mu.Lock()
	}
	v.now = target
	v.mu.Unlock()
}
