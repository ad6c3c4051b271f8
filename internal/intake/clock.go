package intake

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

// Clock is the time source for the autosave scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Revisions hands out strictly increasing write revisions, in Unix milliseconds
// when the clock allows it.
type Revisions struct {
	clock Clock
	mu    sync.Mutex
	last  int64
}

func NewRevisions(clock Clock) *Revisions {
	return &Revisions{clock: clock}
}

func (r *Revisions) Next() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.clock.Now().UnixMilli()
	if next <= r.last {
		next = r.last + 1
	}
	r.last = next
	return next
}
