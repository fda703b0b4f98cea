// Package session keeps the signed-in user id in an HttpOnly JWT cookie and
// carries one-shot flash notices across redirects.
package session

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName      = "session"
	FlashCookieName = "flash"
	defaultTTL      = 7 * 24 * time.Hour
	flashTTL        = 10 * time.Minute
	flashAudience   = "flash"
)

var ErrNoSession = errors.New("no session")

// Manager issues and verifies session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager signs sessions with secret. secure marks cookies HTTPS-only.
func NewManager(secret string, secure bool) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    defaultTTL,
		secure: secure,
		now:    time.Now,
	}
}

// Issue writes a session cookie for userID.
func (m *Manager) Issue(w http.ResponseWriter, userID int) error {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(m.ttl),
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// UserID returns the user id carried by a valid session cookie.
func (m *Manager) UserID(r *http.Request) (int, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return 0, ErrNoSession
	}

	claims := jwt.RegisteredClaims{}
	if err := m.parse(cookie.Value, &claims); err != nil {
		return 0, ErrNoSession
	}

	id, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || id < 1 {
		return 0, ErrNoSession
	}
	return id, nil
}

// Clear expires the session cookie. It is safe to call without a session.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type flashClaims struct {
	Notice string `json:"notice"`
	jwt.RegisteredClaims
}

// SetFlash stores a notice shown on the next rendered page. The notice is
// signed like the session so a client cannot plant its own text.
func (m *Manager) SetFlash(w http.ResponseWriter, message string) {
	now := m.now()
	claims := flashClaims{
		Notice: message,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{flashAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash returns the pending notice, if any, and clears it. Unsigned or
// expired flash cookies are cleared and ignored.
func (m *Manager) PopFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	claims := flashClaims{}
	if err := m.parse(cookie.Value, &claims, jwt.WithAudience(flashAudience)); err != nil {
		return ""
	}
	return claims.Notice
}

func (m *Manager) parse(value string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
