package game

import (
	"sync"
	"time"
)

// timerTask is a single-shot scheduled callback with idempotent cancel.
// Callbacks must re-validate room state when they run: a cancelled or stale
// timer that still fires has to end up as a no-op.
type timerTask struct {
	t *time.Timer
}

func newTimerTask(d time.Duration, fn func()) *timerTask {
	return &timerTask{t: time.AfterFunc(d, fn)}
}

// Cancel stops the timer. Safe to call multiple times and on nil.
func (t *timerTask) Cancel() {
	if t != nil {
		t.t.Stop()
	}
}

// tickTask invokes fn repeatedly at a fixed interval until cancelled
type tickTask struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func newTickTask(d time.Duration, fn func()) *tickTask {
	t := &tickTask{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				fn()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

// Cancel stops the ticker goroutine. Safe to call multiple times and on nil.
func (t *tickTask) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
