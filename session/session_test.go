package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Options{Secret: []byte("test-secret"), TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

// login creates a session and returns a request carrying its cookie.
func login(t *testing.T, m *Manager, userID int) (*http.Request, *http.Cookie) {
	t.Helper()
	rr := httptest.NewRecorder()
	if err := m.Create(rr, userID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Expected one cookie, got %d", len(cookies))
	}
	req := httptest.NewRequest("GET", "/api/notes", nil)
	req.AddCookie(cookies[0])
	return req, cookies[0]
}

func TestManager(t *testing.T) {
	t.Run("Cookie resolves to the user", func(t *testing.T) {
		m := newTestManager(t)
		req, cookie := login(t, m, 7)

		if cookie.Name != DefaultCookieName || !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode {
			t.Errorf("Unexpected cookie attributes: %+v", cookie)
		}

		userID, err := m.UserID(req)
		if err != nil {
			t.Fatalf("UserID failed: %v", err)
		}
		if userID != 7 {
			t.Errorf("Expected user 7, got %d", userID)
		}
	})

	t.Run("No cookie", func(t *testing.T) {
		m := newTestManager(t)
		req := httptest.NewRequest("GET", "/", nil)
		if _, err := m.UserID(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("Expected ErrNoSession, got %v", err)
		}
	})

	t.Run("Tampered token", func(t *testing.T) {
		m := newTestManager(t)
		_, cookie := login(t, m, 7)

		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"})
		if _, err := m.UserID(req); err == nil {
			t.Error("Tampered token should be rejected")
		}
	})

	t.Run("Token signed with another key", func(t *testing.T) {
		m := newTestManager(t)
		claims := jwt.RegisteredClaims{ID: "forged", Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))

		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: forged})
		if _, err := m.UserID(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("Expected ErrNoSession, got %v", err)
		}
	})

	t.Run("Valid signature but unknown session id", func(t *testing.T) {
		m := newTestManager(t)
		claims := jwt.RegisteredClaims{ID: "not-in-table", Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))

		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
		if _, err := m.UserID(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("Expected ErrNoSession, got %v", err)
		}
	})

	t.Run("Restart forgets sessions", func(t *testing.T) {
		m := newTestManager(t)
		req, _ := login(t, m, 7)

		restarted := newTestManager(t)
		if _, err := restarted.UserID(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("Expected ErrNoSession after restart, got %v", err)
		}
	})

	t.Run("Expired session", func(t *testing.T) {
		m := newTestManager(t)
		req, _ := login(t, m, 7)

		m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		if _, err := m.UserID(req); !errors.Is(err, ErrExpired) {
			t.Errorf("Expected ErrExpired, got %v", err)
		}
		if removed := m.Sweep(); removed != 1 {
			t.Errorf("Expected Sweep to remove 1 session, got %d", removed)
		}
		if m.Len() != 0 {
			t.Errorf("Expected empty table, got %d", m.Len())
		}
	})

	t.Run("Destroy ends the session and clears the cookie", func(t *testing.T) {
		m := newTestManager(t)
		req, _ := login(t, m, 7)

		rr := httptest.NewRecorder()
		m.Destroy(rr, req)

		cleared := rr.Result().Cookies()
		if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
			t.Errorf("Expected an expiring cookie, got %+v", cleared)
		}
		if _, err := m.UserID(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("Expected ErrNoSession after Destroy, got %v", err)
		}
	})

	t.Run("Several sessions per user", func(t *testing.T) {
		m := newTestManager(t)
		first, _ := login(t, m, 3)
		second, _ := login(t, m, 3)

		rr := httptest.NewRecorder()
		m.Destroy(rr, first)

		if _, err := m.UserID(second); err != nil {
			t.Errorf("Second session should survive, got %v", err)
		}
	})

	t.Run("Random secret when none configured", func(t *testing.T) {
		m, err := NewManager(Options{})
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if len(m.secret) != 32 {
			t.Errorf("Expected 32-byte generated secret, got %d", len(m.secret))
		}
		if m.ttl != DefaultTTL || m.cookieName != DefaultCookieName {
			t.Errorf("Defaults not applied: ttl=%v cookie=%s", m.ttl, m.cookieName)
		}
	})
}
