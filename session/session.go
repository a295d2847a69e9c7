package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultCookieName = "notes_session"
	DefaultTTL        = 24 * time.Hour
)

var (
	ErrNoSession = errors.New("no session")
	ErrExpired   = errors.New("session expired")
)

type Options struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
}

type entry struct {
	userID  int
	expires time.Time
}

// Manager keeps the process-local session table. The cookie holds a signed
// token whose ID names a row in that table; a restart forgets every row.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]entry

	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

func NewManager(opts Options) (*Manager, error) {
	secret := opts.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	return &Manager{
		sessions:   map[string]entry{},
		secret:     secret,
		ttl:        opts.TTL,
		cookieName: opts.CookieName,
		secure:     opts.Secure,
		now:        time.Now,
	}, nil
}

// Create opens a session for userID and sets the cookie on w.
func (m *Manager) Create(w http.ResponseWriter, userID int) error {
	id := uuid.NewString()
	now := m.now()
	expires := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		ID:        id,
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = entry{userID: userID, expires: expires}
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// UserID resolves the request's session to a user id.
func (m *Manager) UserID(r *http.Request) (int, error) {
	id, userID, err := m.parse(r)
	if err != nil {
		return 0, err
	}

	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || e.userID != userID {
		return 0, ErrNoSession
	}
	if m.now().After(e.expires) {
		m.remove(id)
		return 0, ErrExpired
	}
	return e.userID, nil
}

// Destroy forgets the request's session, if any, and clears the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if id, _, err := m.parse(r); err == nil {
		m.remove(id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.sessions {
		if now.After(e.expires) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live rows in the session table.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) parse(r *http.Request) (string, int, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", 0, ErrNoSession
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", 0, ErrExpired
		}
		return "", 0, ErrNoSession
	}
	if !token.Valid || claims.ID == "" {
		return "", 0, ErrNoSession
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return "", 0, ErrNoSession
	}
	return claims.ID, userID, nil
}
