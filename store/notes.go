package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"quick-notes/db"
	"quick-notes/models"
)

// NoteStore owns every note in memory and persists the whole set through a
// debounced Flusher.
type NoteStore struct {
	mu     sync.RWMutex
	notes  []models.Note
	nextID int

	doc     db.Document
	flusher *db.Flusher
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewNoteStore(doc db.Document, flushDelay time.Duration, log logrus.FieldLogger) *NoteStore {
	s := &NoteStore{
		notes:  []models.Note{},
		nextID: 1,
		doc:    doc,
		log:    log.WithField("component", "notes"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.flusher = db.NewFlusher(doc, s.Snapshot, flushDelay, s.log)
	return s
}

// Load replaces the in-memory set with whatever the document holds.
func (s *NoteStore) Load(ctx context.Context) {
	notes := loadCollection[models.Note](ctx, s.doc, "notes", s.log)

	maxID := 0
	for _, n := range notes {
		if n.ID > maxID {
			maxID = n.ID
		}
	}

	s.mu.Lock()
	s.notes = notes
	s.nextID = maxID + 1
	s.mu.Unlock()

	s.log.WithField("count", len(notes)).Infof("loaded notes from %s", s.doc)
}

// Snapshot serializes every note as {"notes": [...]}.
func (s *NoteStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return encodeCollection("notes", s.notes)
}

// List returns the notes owned by userID, pinned first, newest first.
func (s *NoteStore) List(userID int) []models.Note {
	s.mu.RLock()
	out := make([]models.Note, 0)
	for _, n := range s.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	sortNotes(out)
	return out
}

func sortNotes(notes []models.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func (s *NoteStore) Create(userID int, text string) (models.Note, error) {
	text, err := normalizeText(text)
	if err != nil {
		return models.Note{}, err
	}

	now := s.now()

	s.mu.Lock()
	note := models.Note{
		ID:        s.nextID,
		UserID:    userID,
		Text:      text,
		Pinned:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.notes = append([]models.Note{note}, s.notes...)
	s.mu.Unlock()

	s.flusher.Schedule()
	return note, nil
}

func (s *NoteStore) Update(id, userID int, patch models.NotePatch) (models.Note, error) {
	s.mu.Lock()
	idx, err := s.owned(id, userID)
	if err != nil {
		s.mu.Unlock()
		return models.Note{}, err
	}
	note := &s.notes[idx]
	if patch.Text != nil {
		text, err := normalizeText(*patch.Text)
		if err != nil {
			s.mu.Unlock()
			return models.Note{}, err
		}
		note.Text = text
	}
	if patch.Pinned != nil {
		note.Pinned = *patch.Pinned
	}
	note.UpdatedAt = s.now()
	updated := *note
	s.mu.Unlock()

	s.flusher.Schedule()
	return updated, nil
}

func (s *NoteStore) Delete(id, userID int) (models.Note, error) {
	s.mu.Lock()
	idx, err := s.owned(id, userID)
	if err != nil {
		s.mu.Unlock()
		return models.Note{}, err
	}
	removed := s.notes[idx]
	s.notes = append(s.notes[:idx], s.notes[idx+1:]...)
	s.mu.Unlock()

	s.flusher.Schedule()
	return removed, nil
}

// owned must be called with s.mu held.
func (s *NoteStore) owned(id, userID int) (int, error) {
	for i := range s.notes {
		if s.notes[i].ID != id {
			continue
		}
		if s.notes[i].UserID != userID {
			return -1, ErrForbidden
		}
		return i, nil
	}
	return -1, ErrNotFound
}

// Flush writes the current state immediately.
func (s *NoteStore) Flush(ctx context.Context) error {
	return s.flusher.Flush(ctx)
}

// Close performs the final flush on shutdown.
func (s *NoteStore) Close(ctx context.Context) error {
	return s.flusher.Close(ctx)
}

func normalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalid("note text is empty")
	}
	if utf8.RuneCountInString(text) > models.MaxNoteLength {
		return "", invalid("note text exceeds %d characters", models.MaxNoteLength)
	}
	return text, nil
}
