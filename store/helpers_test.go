package store

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"quick-notes/db"
)

// memDocument is an in-memory db.Document.
type memDocument struct {
	mu   sync.Mutex
	body []byte
	err  error
}

func (d *memDocument) Load(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if d.body == nil {
		return nil, db.ErrNoDocument
	}
	return d.body, nil
}

func (d *memDocument) Save(ctx context.Context, body []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.body = append([]byte(nil), body...)
	return nil
}

func (d *memDocument) String() string { return "memory" }

func nullLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

// stepClock returns a clock advancing one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// Long enough that no test sees a timer fire on its own.
const testFlushDelay = time.Hour

func newNoteStore(doc db.Document) *NoteStore {
	s := NewNoteStore(doc, testFlushDelay, nullLogger())
	s.now = stepClock()
	return s
}
