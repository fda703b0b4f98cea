package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// carry copies the cookies set on rec into a new request.
func carry(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestIssueAndResolve(t *testing.T) {
	m := NewManager("secret", false)
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, 42))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	id, err := m.UserID(carry(rec))
	require.NoError(t, err)
	require.Equal(t, 42, id)
}

func TestUserIDRejectsBadCookies(t *testing.T) {
	m := NewManager("secret", false)

	_, err := m.UserID(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, ErrNoSession)

	forged := httptest.NewRecorder()
	require.NoError(t, NewManager("other-secret", false).Issue(forged, 1))
	_, err = m.UserID(carry(forged))
	require.ErrorIs(t, err, ErrNoSession)

	garbage := httptest.NewRequest(http.MethodGet, "/", nil)
	garbage.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-jwt"})
	_, err = m.UserID(garbage)
	require.ErrorIs(t, err, ErrNoSession)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	unsignedReq := httptest.NewRequest(http.MethodGet, "/", nil)
	unsignedReq.AddCookie(&http.Cookie{Name: CookieName, Value: unsigned})
	_, err = m.UserID(unsignedReq)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestUserIDRejectsExpiredSession(t *testing.T) {
	m := NewManager("secret", false)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, 7))

	m.now = func() time.Time { return issued.Add(8 * 24 * time.Hour) }
	_, err := m.UserID(carry(rec))
	require.ErrorIs(t, err, ErrNoSession)
}

func TestClearExpiresCookie(t *testing.T) {
	m := NewManager("secret", true)
	rec := httptest.NewRecorder()
	m.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	require.Equal(t, -1, cookies[0].MaxAge)
	require.True(t, cookies[0].Secure)
}

func TestFlashIsShownOnce(t *testing.T) {
	m := NewManager("secret", false)
	rec := httptest.NewRecorder()
	m.SetFlash(rec, "El email ya está registrado.")

	req := carry(rec)
	next := httptest.NewRecorder()
	require.Equal(t, "El email ya está registrado.", m.PopFlash(next, req))

	cleared := next.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, -1, cleared[0].MaxAge)

	require.Empty(t, m.PopFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestPopFlashIgnoresForgedNotices(t *testing.T) {
	m := NewManager("secret", false)

	forged := httptest.NewRecorder()
	NewManager("other-secret", false).SetFlash(forged, "Pago aprobado, visita evil.example")

	issued := httptest.NewRecorder()
	require.NoError(t, m.Issue(issued, 1))
	session := issued.Result().Cookies()[0]

	tests := []struct {
		name  string
		value string
	}{
		{name: "plain text", value: "Pago aprobado"},
		{name: "base64 text", value: "UGFnbyBhcHJvYmFkbw"},
		{name: "other secret", value: forged.Result().Cookies()[0].Value},
		{name: "session token", value: session.Value},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: FlashCookieName, Value: tt.value})
			rec := httptest.NewRecorder()

			require.Empty(t, m.PopFlash(rec, req))
			cleared := rec.Result().Cookies()
			require.Len(t, cleared, 1)
			require.Equal(t, -1, cleared[0].MaxAge)
		})
	}
}

func TestFlashExpires(t *testing.T) {
	m := NewManager("secret", false)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	rec := httptest.NewRecorder()
	m.SetFlash(rec, "Curso creado.")

	m.now = func() time.Time { return issued.Add(time.Hour) }
	require.Empty(t, m.PopFlash(httptest.NewRecorder(), carry(rec)))
}

func TestFlashTokenIsNotASession(t *testing.T) {
	m := NewManager("secret", false)
	rec := httptest.NewRecorder()
	m.SetFlash(rec, "1")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: rec.Result().Cookies()[0].Value})
	_, err := m.UserID(req)
	require.ErrorIs(t, err, ErrNoSession)
}
