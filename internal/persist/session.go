package persist

import "sync/atomic"

// Session is the cooperative stop handle for one persistence run. The zero
// value is ready to use. A Session is not reused across runs.
type Session struct {
	active atomic.Bool
	stop   atomic.Bool
}

// Active reports whether a run is in progress.
func (s *Session) Active() bool { return s.active.Load() }

// RequestStop asks the run to stop before its next batch.
func (s *Session) RequestStop() { s.stop.Store(true) }

// StopRequested reports whether RequestStop has been called.
func (s *Session) StopRequested() bool { return s.stop.Load() }

// Progress receives completion percentages in [0, 100].
type Progress func(percent int)

// monotonic wraps p so it never reports a value lower than one already sent.
func monotonic(p Progress) Progress {
	last := -1
	return func(pct int) {
		if pct <= last {
			return
		}
		last = pct
		if p != nil {
			p(pct)
		}
	}
}

// ToChannel returns a Progress that sends to ch without blocking. When a
// buffered ch is full the oldest pending value is replaced, so a slow reader
// sees the latest. Sends to an unbuffered ch with no waiting reader are dropped.
func ToChannel(ch chan int) Progress {
	return func(pct int) {
		select {
		case ch <- pct:
			return
		default:
		}
		if cap(ch) == 0 {
			return
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- pct:
		default:
		}
	}
}
