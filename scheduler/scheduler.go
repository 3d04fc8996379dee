/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package scheduler is the round-robin thread scheduler: it enforces
// that exactly one thread is interpreting bytecode at a time (matching
// bjvm's single cooperative execution context) while letting blocked
// threads (sleeping, waiting on a monitor, parked) actually block using
// native goroutines and channels instead of bjvm's hand-rolled
// coroutine/async machinery. Grounded on
// original_source/vm/roundrobin_scheduler.c/.h: the wakeup-reason enum,
// the poll/execute/push-record cycle, and the "how long may the VM
// sleep before the next task is ready" computation all mirror that file;
// the async-call-stack plumbing (DEFINE_ASYNC, pending_call queues) does
// not, since Go already provides preemptible stacks per goroutine.
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"vesper/thread"
)

// WakeupReason is why a thread currently isn't runnable — rr_wakeup_kind.
type WakeupReason int

const (
	WakeupYielding WakeupReason = iota // timeslice yielded, resume soon
	WakeupSleep                        // Thread.sleep
	WakeupReferencePending             // Reference.waitForReferencePendingList
	ThreadPark                         // Unsafe.park
	MonitorEnterWaiting                // wants to acquire a contended monitor
	MonitorWait                        // Object.wait, not holding, waiting for notify
)

// Status mirrors scheduler_status_t.
type Status int

const (
	StatusDone Status = iota
	StatusMore
	StatusInvalid
)

// ExecutionRecord is one scheduled unit of work and its outcome —
// execution_record, minus the JS-handle/VM-pointer fields that don't
// apply here. ID replaces the original's raw vm_thread/js_handle pair
// with a process-unique identifier a caller can log or correlate
// without holding a reference to the thread itself.
type ExecutionRecord struct {
	ID       uuid.UUID
	ThreadID int32
	Status   Status
	Result   interface{}
	Err      error
}

// wakeupInfo mirrors rr_wakeup_info: the reason a thread parked itself
// and when (if ever) it should be reconsidered.
type wakeupInfo struct {
	reason   WakeupReason
	wakeupAt time.Time // zero means "wake on explicit signal only"
}

type parkedThread struct {
	threadID int32
	info     wakeupInfo
	resume   chan struct{} // closed by the scheduler to let the goroutine continue
}

// Scheduler is the single shared round-robin context: a token that only
// one runnable thread holds at a time, plus the bookkeeping needed to
// decide how long the VM may idle before the next parked thread is due.
type Scheduler struct {
	mu      sync.Mutex
	token   chan struct{} // buffered(1): held by whichever thread may run
	parked  []*parkedThread
	preempt time.Duration
	pending map[int32][]PendingCall
}

// PendingCall is one unit of work queued against a specific thread —
// bjvm's execution_record before it has actually run: a continuation
// (e.g. resuming after a blocking native call completes, or a monitor
// waiter's retry once notified) that must execute on behalf of
// ThreadID specifically, not whichever thread next happens to hold the
// token under ordinary round-robin rotation.
type PendingCall struct {
	ThreadID int32
	Task     func() (interface{}, error)
}

// New returns a scheduler with the given preemption quantum (clamped to
// at least 1ms, mirroring rr_scheduler's "clamped to 1000us" comment).
func New(preemption time.Duration) *Scheduler {
	if preemption < time.Millisecond {
		preemption = time.Millisecond
	}
	s := &Scheduler{token: make(chan struct{}, 1), preempt: preemption}
	s.token <- struct{}{}
	return s
}

// Acquire blocks until th may run, then returns holding the execution
// token. Every thread must call this before interpreting bytecode.
func (s *Scheduler) Acquire(th *thread.ExecThread) {
	<-s.token
}

// Release gives up the execution token, e.g. because th yielded its
// timeslice or parked itself via Park.
func (s *Scheduler) Release() {
	select {
	case s.token <- struct{}{}:
	default:
	}
}

// Park records that th is no longer runnable for the given reason,
// releases the execution token, and blocks until Wake (or, for
// WakeupSleep/a deadline-bearing reason, until the deadline) is reached.
func (s *Scheduler) Park(th *thread.ExecThread, reason WakeupReason, d time.Duration) {
	p := &parkedThread{threadID: th.ID, info: wakeupInfo{reason: reason}, resume: make(chan struct{})}
	if d > 0 {
		p.info.wakeupAt = time.Now().Add(d)
	}

	s.mu.Lock()
	s.parked = append(s.parked, p)
	s.mu.Unlock()
	s.Release()

	var timer *time.Timer
	var timeout <-chan time.Time
	if d > 0 {
		timer = time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-p.resume:
	case <-timeout:
		s.removeParked(p)
	}

	s.Acquire(th)
}

// Wake makes every parked thread waiting for reason runnable again —
// monitor_notify_one/monitor_notify_all's "scan parked threads, flip
// ready" loop, generalized past monitors to any wakeup reason.
func (s *Scheduler) Wake(reason WakeupReason) {
	s.mu.Lock()
	var remaining []*parkedThread
	var toWake []*parkedThread
	for _, p := range s.parked {
		if p.info.reason == reason {
			toWake = append(toWake, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	s.parked = remaining
	s.mu.Unlock()

	for _, p := range toWake {
		close(p.resume)
	}
}

func (s *Scheduler) removeParked(p *parkedThread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.parked {
		if q == p {
			s.parked = append(s.parked[:i], s.parked[i+1:]...)
			return
		}
	}
}

// MaySleepUs reports how many microseconds the VM's own event loop (if
// any) may sleep before a parked thread is next due to wake — the same
// question rr_scheduler_may_sleep_us answers by scanning every thread's
// wakeup_us and taking the minimum. Returns -1 if nothing is due (no
// parked thread carries a deadline).
func (s *Scheduler) MaySleepUs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadlines []time.Time
	for _, p := range s.parked {
		if !p.info.wakeupAt.IsZero() {
			deadlines = append(deadlines, p.info.wakeupAt)
		}
	}
	if len(deadlines) == 0 {
		return -1
	}
	slices.SortFunc(deadlines, func(a, b time.Time) int {
		if a.Before(b) {
			return -1
		}
		if a.After(b) {
			return 1
		}
		return 0
	})
	soonest := deadlines[0]
	remaining := time.Until(soonest)
	if remaining < 0 {
		return 0
	}
	return remaining.Microseconds()
}

// ParkedCount reports how many threads are currently parked — a cheap
// diagnostic, e.g. for CLI -verbose output.
func (s *Scheduler) ParkedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parked)
}

// Submit queues call against its ThreadID, FIFO per thread, for a later
// ExecuteImmediately to run — the enqueue half of bjvm's pending_call
// mechanism, used wherever resuming a thread's execution can't happen
// synchronously with whatever woke it (e.g. Wake runs on a different
// goroutine than the woken thread's own interpreter loop).
func (s *Scheduler) Submit(call PendingCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[int32][]PendingCall)
	}
	s.pending[call.ThreadID] = append(s.pending[call.ThreadID], call)
}

// ExecuteImmediately runs th's oldest queued PendingCall (if any) right
// now, acquiring the token out of the ordinary Acquire-blocks-until-
// available rotation a freshly woken thread would otherwise wait
// through — the dispatch half of bjvm's pending_call mechanism,
// letting a just-notified thread's continuation run before the token
// passes back to unrelated runnable threads. Returns nil if th has
// nothing queued.
func (s *Scheduler) ExecuteImmediately(th *thread.ExecThread) *ExecutionRecord {
	s.mu.Lock()
	queue := s.pending[th.ID]
	if len(queue) == 0 {
		s.mu.Unlock()
		return nil
	}
	call := queue[0]
	s.pending[th.ID] = queue[1:]
	s.mu.Unlock()

	s.Acquire(th)
	defer s.Release()

	result, err := call.Task()
	status := StatusDone
	if err != nil {
		status = StatusInvalid
	}
	return &ExecutionRecord{ID: uuid.New(), ThreadID: th.ID, Status: status, Result: result, Err: err}
}

// Step runs th for a single scheduling quantum: it acquires the token,
// invokes step (expected to do fuel- or deadline-bounded work and report
// whether th's task has now finished), and releases the token so
// another runnable thread gets a turn before th's next Step call —
// the actual cooperative-preemption boundary Interpret's own fuel/
// deadline arguments implement, with Scheduler only responsible for the
// acquire/release bracketing around each bounded slice. Matches
// rr_scheduler_run's poll-one-slice-at-a-time shape now that an
// interpreter loop capable of running in bounded slices (vesper/jvm's
// Interpret) actually exists to drive it, rather than Run's whole-task
// grant.
func (s *Scheduler) Step(th *thread.ExecThread, step func() (done bool, err error)) *ExecutionRecord {
	s.Acquire(th)
	defer s.Release()

	done, err := step()
	status := StatusMore
	switch {
	case err != nil:
		status = StatusInvalid
	case done:
		status = StatusDone
	}
	return &ExecutionRecord{ID: uuid.New(), ThreadID: th.ID, Status: status, Err: err}
}

// Run executes task as th, holding the execution token for the whole
// call: unlike Step, it grants the whole task at once rather than one
// bounded slice. Task is expected to
// call s.Park itself at any blocking point (Thread.sleep, monitorenter,
// Object.wait) rather than blocking outside the scheduler's view.
func (s *Scheduler) Run(th *thread.ExecThread, task func() (interface{}, error)) *ExecutionRecord {
	s.Acquire(th)
	defer s.Release()

	result, err := task()
	status := StatusDone
	if err != nil {
		status = StatusInvalid
	}
	return &ExecutionRecord{ID: uuid.New(), ThreadID: th.ID, Status: status, Result: result, Err: err}
}
