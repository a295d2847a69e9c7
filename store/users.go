package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"quick-notes/db"
	"quick-notes/models"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// UserStore owns the registered accounts, indexed by case-folded username.
type UserStore struct {
	mu     sync.RWMutex
	users  []models.User
	byName map[string]int
	nextID int

	cost    int
	doc     db.Document
	flusher *db.Flusher
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewUserStore(doc db.Document, flushDelay time.Duration, bcryptCost int, log logrus.FieldLogger) *UserStore {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	s := &UserStore{
		users:  []models.User{},
		byName: map[string]int{},
		nextID: 1,
		cost:   bcryptCost,
		doc:    doc,
		log:    log.WithField("component", "users"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.flusher = db.NewFlusher(doc, s.Snapshot, flushDelay, s.log)
	return s
}

func foldUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *UserStore) Load(ctx context.Context) {
	users := loadCollection[models.User](ctx, s.doc, "users", s.log)

	byName := make(map[string]int, len(users))
	maxID := 0
	for i, u := range users {
		key := foldUsername(u.Username)
		if _, dup := byName[key]; dup {
			s.log.WithField("username", u.Username).Warn("duplicate username in document, keeping first")
			continue
		}
		byName[key] = i
		if u.ID > maxID {
			maxID = u.ID
		}
	}

	s.mu.Lock()
	s.users = users
	s.byName = byName
	s.nextID = maxID + 1
	s.mu.Unlock()

	s.log.WithField("count", len(users)).Infof("loaded users from %s", s.doc)
}

func (s *UserStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return encodeCollection("users", s.users)
}

// Register creates an account. The returned user still carries its hash;
// callers decide what to expose.
func (s *UserStore) Register(username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, invalid("username and password are required")
	}
	if len(password) > maxPasswordBytes {
		return models.User{}, invalid("password must be at most %d bytes", maxPasswordBytes)
	}

	key := foldUsername(username)
	if s.exists(key) {
		return models.User{}, ErrConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	// Re-check: another registration may have won while we were hashing.
	if _, taken := s.byName[key]; taken {
		s.mu.Unlock()
		return models.User{}, ErrConflict
	}
	user := models.User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	s.nextID++
	s.users = append(s.users, user)
	s.byName[key] = len(s.users) - 1
	s.mu.Unlock()

	s.flusher.Schedule()
	return user, nil
}

func (s *UserStore) Authenticate(username, password string) (models.User, error) {
	s.mu.RLock()
	idx, ok := s.byName[foldUsername(username)]
	var user models.User
	if ok {
		user = s.users[idx]
	}
	s.mu.RUnlock()

	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("compare password: %w", err)
	}
	return user, nil
}

func (s *UserStore) Get(id int) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *UserStore) exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[key]
	return ok
}

func (s *UserStore) Flush(ctx context.Context) error {
	return s.flusher.Flush(ctx)
}

func (s *UserStore) Close(ctx context.Context) error {
	return s.flusher.Close(ctx)
}
