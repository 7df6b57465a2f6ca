package status

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval between two scheduled polls
const DefaultInterval = 30 * time.Second

// Ticker is the subset of time.Ticker used by the scheduler
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

// NewTimeTicker wraps time.NewTicker
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Scheduler runs a function periodically. At most one schedule is active:
// arming again cancels the previous one.
type Scheduler struct {
	newTicker func(time.Duration) Ticker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler; a nil factory uses time.NewTicker
func NewScheduler(newTicker func(time.Duration) Ticker) *Scheduler {
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	return &Scheduler{newTicker: newTicker}
}

// Arm starts calling fn every interval until ctx ends or the scheduler is
// re-armed or stopped. fn never runs concurrently with itself.
func (s *Scheduler) Arm(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := s.newTicker(interval)
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C():
				// re-arm may race with a tick already delivered
				if runCtx.Err() != nil {
					return
				}
				fn()
			}
		}
	}()
}

// Stop cancels the active schedule and waits for it to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Active reports the number of running schedules, 0 or 1
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return 0
	}
	select {
	case <-s.done:
		return 0
	default:
		return 1
	}
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}
