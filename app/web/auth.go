package web

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"
	"golang.org/x/crypto/bcrypt"
)

const (
	authCookieName = "techbe-auth"
	authUser       = "techbe"
)

// handleLoginForm displays the login form
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, r, http.StatusOK, "")
}

// handleLogin processes the login form submission
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password == "" {
		s.renderLogin(w, r, http.StatusUnauthorized, "Mot de passe requis")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		log.Printf("[WARN] failed login attempt from %s", r.RemoteAddr)
		s.renderLogin(w, r, http.StatusUnauthorized, "Mot de passe invalide")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    s.generateAuthToken(),
		Path:     s.cookiePath(),
		MaxAge:   7 * 24 * 60 * 60, // 7 days
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})

	http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
}

// handleLogout clears the auth cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
	http.Redirect(w, r, s.url("/login"), http.StatusSeeOther)
}

// renderLogin renders standalone login page with optional error
func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, errorMsg string) {
	data := s.newTemplateData(r)
	data.Error = errorMsg
	w.Header().Set("X-Content-Type-Options", "nosniff")
	s.renderStatus(w, status, "login", "login.html", data)
}

// authMiddleware checks for auth cookie or falls back to basic auth
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// skip auth for login page and static resources
		if r.URL.Path == "/login" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(authCookieName); err == nil && s.validateAuthToken(cookie.Value) {
			next.ServeHTTP(w, r)
			return
		}

		// fallback to basic auth for API clients
		if username, password, ok := r.BasicAuth(); ok && username == authUser {
			if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		accept := r.Header.Get("Accept")
		if !strings.HasPrefix(r.URL.Path, "/api/") && (accept == "" || strings.Contains(accept, "text/html")) {
			http.Redirect(w, r, s.url("/login"), http.StatusSeeOther)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="Techniciens BE"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// generateAuthToken derives the cookie token from the password hash
func (s *Server) generateAuthToken() string {
	h := sha256.Sum256([]byte(s.passwordHash + "techbe-auth-token"))
	return hex.EncodeToString(h[:])
}

// validateAuthToken checks if the auth token is valid
func (s *Server) validateAuthToken(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.generateAuthToken())) == 1
}
