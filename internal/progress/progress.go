// Package progress delivers run progress to a slow consumer without ever
// blocking the run.
package progress

import (
	"sync"
	"sync/atomic"
)

// #region types

// Update is one progress checkpoint.
type Update struct {
	Percent int
	Message string
}

// Func is the onProgress callback shape used by the run controller.
type Func func(percent int, message string)

// Sink consumes updates on the reporter's own goroutine.
type Sink func(Update)

// #endregion types

// #region reporter

// Reporter buffers updates for a sink. Report never blocks: when the
// buffer is full the update is dropped.
type Reporter struct {
	ch      chan Update
	sink    Sink
	done    chan struct{}
	once    sync.Once
	closed  bool
	dropped atomic.Int64
	mu      sync.RWMutex
}

// NewReporter starts delivering to sink with a buffer of size.
func NewReporter(sink Sink, size int) *Reporter {
	if size < 1 {
		size = 1
	}
	r := &Reporter{
		ch:   make(chan Update, size),
		sink: sink,
		done: make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Reporter) loop() {
	defer close(r.done)
	for u := range r.ch {
		if r.sink != nil {
			r.sink(u)
		}
	}
}

// Report queues an update. Percent is clamped to [0, 100].
func (r *Reporter) Report(percent int, message string) {
	percent = min(max(percent, 0), 100)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- Update{Percent: percent, Message: message}:
	default:
		// Buffer full, drop update for this slow sink
		r.dropped.Add(1)
	}
}

// Func adapts the reporter to the onProgress callback shape.
func (r *Reporter) Func() Func {
	return r.Report
}

// Dropped returns how many updates were discarded.
func (r *Reporter) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting updates and waits for queued ones to be delivered.
func (r *Reporter) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
	})
	<-r.done
}

// #endregion reporter

// #region helpers

// Nop discards progress.
func Nop(int, string) {}

// LevelPercent maps the completion of level (0-based) out of levels onto
// the 10-90 band reserved for scene generation.
func LevelPercent(level, levels int) int {
	if levels <= 0 {
		return 90
	}
	return 10 + 80*(level+1)/levels
}

// #endregion helpers
