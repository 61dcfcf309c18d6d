package playhost

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler creates timers. Production code uses RealScheduler; tests use
// FakeScheduler to fire timers deterministically.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules callbacks on the runtime timer heap.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// TimerScope owns every timer started for one scene visit. Cancelling the
// scope stops all of them, so no callback fires for a scene the learner has
// left or a session that has been disposed.
type TimerScope struct {
	mu     sync.Mutex
	sched  Scheduler
	timers map[uint64]Timer
	seq    uint64
	closed bool
}

// NewTimerScope creates a scope on the given scheduler.
func NewTimerScope(s Scheduler) *TimerScope {
	if s == nil {
		s = RealScheduler{}
	}
	return &TimerScope{
		sched:  s,
		timers: make(map[uint64]Timer),
	}
}

// After schedules f after d. The returned cancel func stops just this timer.
// On a closed scope After does nothing.
func (sc *TimerScope) After(d time.Duration, f func()) (cancel func()) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return func() {}
	}

	sc.seq++
	id := sc.seq
	sc.timers[id] = sc.sched.AfterFunc(d, func() {
		sc.mu.Lock()
		_, live := sc.timers[id]
		delete(sc.timers, id)
		sc.mu.Unlock()
		if live {
			f()
		}
	})

	return func() {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		if t, ok := sc.timers[id]; ok {
			t.Stop()
			delete(sc.timers, id)
		}
	}
}

// CancelAll stops every pending timer. The scope stays usable.
func (sc *TimerScope) CancelAll() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for id, t := range sc.timers {
		t.Stop()
		delete(sc.timers, id)
	}
}

// Close stops every pending timer and refuses new ones.
func (sc *TimerScope) Close() {
	sc.CancelAll()
	sc.mu.Lock()
	sc.closed = true
	sc.mu.Unlock()
}

// Pending returns the number of timers that have not fired or been cancelled.
func (sc *TimerScope) Pending() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.timers)
}

// FakeScheduler fires timers only when Advance moves its clock past them.
type FakeScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*fakeTimer
	seq     int
}

type fakeTimer struct {
	s       *FakeScheduler
	at      time.Duration
	seq     int
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.pending = append(s.pending, t)
	return t
}

// Advance moves the clock forward by d and fires due timers in order.
// Callbacks run on the calling goroutine and may schedule further timers.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		sort.SliceStable(s.pending, func(i, j int) bool {
			if s.pending[i].at == s.pending[j].at {
				return s.pending[i].seq < s.pending[j].seq
			}
			return s.pending[i].at < s.pending[j].at
		})
		if len(s.pending) == 0 || s.pending[0].at > target {
			s.now = target
			s.mu.Unlock()
			return
		}
		t := s.pending[0]
		s.pending = s.pending[1:]
		s.now = t.at
		fire := !t.stopped
		t.stopped = true
		s.mu.Unlock()

		if fire {
			t.f()
		}
	}
}

// Pending returns the number of timers not yet fired or stopped.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}
