package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bcrypt hash for "testpass"
const testPasswordHash = "$2y$10$qOIpGITktzktHpcnWXiow.penxJmMcapV3G2ZRQaK0QRW7BSmAuJG" //nolint:gosec // test password hash

func withPassword(c *Config) { c.PasswordHash = testPasswordHash }

func loginRequest(password, remoteAddr string) *http.Request {
	req := httptest.NewRequest("POST", "/login", strings.NewReader("password="+password))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.RemoteAddr = remoteAddr
	return req
}

func TestServer_Authentication(t *testing.T) {
	ts := newTestServer(t, sampleTechs(), withPassword)
	handler := ts.routes()

	t.Run("without auth redirects to login", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", http.NoBody)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("api without auth returns 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/technicians", http.NoBody)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("wrong basic auth password", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/technicians", http.NoBody)
		req.SetBasicAuth("techbe", "wrongpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong basic auth user", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/technicians", http.NoBody)
		req.SetBasicAuth("admin", "testpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("basic auth", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/technicians", http.NoBody)
		req.SetBasicAuth("techbe", "testpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("valid cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", http.NoBody)
		req.AddCookie(&http.Cookie{Name: authCookieName, Value: ts.generateAuthToken()})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `id="logout-link"`)
	})

	t.Run("invalid cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", http.NoBody)
		req.AddCookie(&http.Cookie{Name: authCookieName, Value: "bad"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("login page and static are public", func(t *testing.T) {
		for _, path := range []string{"/login", "/static/style.css"} {
			req := httptest.NewRequest("GET", path, http.NoBody)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})
}

func TestServer_handleLogin(t *testing.T) {
	ts := newTestServer(t, nil, withPassword)
	handler := ts.routes()

	t.Run("success sets cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("testpass", "10.1.0.1:1234"))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, authCookieName, cookies[0].Name)
		assert.Equal(t, ts.generateAuthToken(), cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("wrong", "10.1.0.2:1234"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Mot de passe invalide")
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("empty password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("", "10.1.0.3:1234"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Mot de passe requis")
	})

	t.Run("cross origin rejected", func(t *testing.T) {
		req := loginRequest("testpass", "10.1.0.4:1234")
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestServer_handleLogout(t *testing.T) {
	ts := newTestServer(t, nil, withPassword, func(c *Config) { c.BaseURL = "/techbe" })
	req := httptest.NewRequest("GET", "/logout", http.NoBody)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: ts.generateAuthToken()})
	rec := httptest.NewRecorder()
	ts.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/techbe/login", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, authCookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Equal(t, "/techbe/", cookies[0].Path)
}

func TestServer_validateAuthToken(t *testing.T) {
	s := &Server{passwordHash: testPasswordHash}
	assert.True(t, s.validateAuthToken(s.generateAuthToken()))
	assert.False(t, s.validateAuthToken(""))
	assert.False(t, s.validateAuthToken("abc"))

	other := &Server{passwordHash: "other"}
	assert.False(t, s.validateAuthToken(other.generateAuthToken()), "token bound to password hash")
}

func TestServer_CSRFProtection(t *testing.T) {
	ts := newTestServer(t, sampleTechs())
	handler := ts.routes()

	t.Run("cross-site form post rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/cancel", http.NoBody)
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("same-origin form post allowed", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/cancel", http.NoBody)
		req.Header.Set("Sec-Fetch-Site", "same-origin")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("cross-site api write rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/technicians", strings.NewReader(`{"nom":"A","prenom":"B","email":"c"}`))
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 2, ts.roster.Len())
	})
}

func TestServer_LoginRateLimiting(t *testing.T) {
	ts := newTestServer(t, nil, withPassword)
	handler := ts.routes()
	testIP := "10.0.0.1:12345"

	var limited bool
	for range 20 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("wrongpass", testIP))
		if rec.Code == http.StatusTooManyRequests {
			assert.Contains(t, rec.Body.String(), "Too many login attempts")
			limited = true
			break
		}
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.True(t, limited, "rate limit should kick in")

	// other client is not affected
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("testpass", "10.0.0.2:12345"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
