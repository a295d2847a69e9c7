package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultFlushDelay is the quiet period a Flusher waits for before saving.
const DefaultFlushDelay = 150 * time.Millisecond

var ErrFlusherClosed = errors.New("flusher closed")

// SnapshotFunc serializes the current in-memory state of a store.
type SnapshotFunc func() ([]byte, error)

// Flusher coalesces bursts of mutations into a single save of the latest
// snapshot. At most one save runs at a time.
type Flusher struct {
	doc      Document
	snapshot SnapshotFunc
	delay    time.Duration
	log      logrus.FieldLogger

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64 // bumped each time timer is re-armed
	dirty  bool
	closed bool

	// writeMu serializes saves; the snapshot is taken while holding it.
	writeMu sync.Mutex
}

func NewFlusher(doc Document, snapshot SnapshotFunc, delay time.Duration, log logrus.FieldLogger) *Flusher {
	if delay <= 0 {
		delay = DefaultFlushDelay
	}
	return &Flusher{
		doc:      doc,
		snapshot: snapshot,
		delay:    delay,
		log:      log.WithField("document", doc.String()),
	}
}

// Schedule marks the state dirty and (re)arms the quiet-period timer.
func (f *Flusher) Schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.Warn("mutation after close will not be persisted")
		return
	}
	f.dirty = true
	if f.timer != nil {
		f.timer.Stop()
	}
	f.gen++
	gen := f.gen
	f.timer = time.AfterFunc(f.delay, func() { f.fire(gen) })
}

// Pending reports whether a mutation is waiting for the timer.
func (f *Flusher) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// fire runs on the timer armed for generation gen. Stale timers do nothing.
func (f *Flusher) fire(gen uint64) {
	f.mu.Lock()
	if f.gen != gen || f.closed {
		f.mu.Unlock()
		return
	}
	f.timer = nil
	f.mu.Unlock()

	if err := f.save(context.Background(), true); err != nil {
		f.log.WithError(err).Error("save failed")
	}
}

// Flush cancels any pending timer and saves synchronously.
func (f *Flusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
	f.mu.Unlock()

	return f.save(ctx, false)
}

// Close performs a final flush and stops accepting new schedules.
func (f *Flusher) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlusherClosed
	}
	f.closed = true
	f.mu.Unlock()

	return f.Flush(ctx)
}

func (f *Flusher) save(ctx context.Context, fromTimer bool) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	// Clear dirty before the snapshot: a mutation racing with this save
	// re-marks it and arms a new timer. A timer save that lost the race to
	// Flush or Close finds nothing to do.
	f.mu.Lock()
	if fromTimer && (f.closed || !f.dirty) {
		f.mu.Unlock()
		return nil
	}
	f.dirty = false
	f.mu.Unlock()

	body, err := f.snapshot()
	if err != nil {
		return err
	}
	if err := f.doc.Save(ctx, body); err != nil {
		return err
	}
	f.log.WithField("bytes", len(body)).Debug("saved")
	return nil
}
