package ui

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

const (
	csrfCookie = "catalog_csrf"
	csrfField  = "csrf_token"
)

// csrfToken returns the session's CSRF token, issuing a new one when absent.
func csrfToken(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(csrfCookie); err == nil && c.Value != "" {
		return c.Value
	}
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// verifyCSRF checks the submitted form token against the session token using
// a constant-time comparison.
func verifyCSRF(r *http.Request) bool {
	c, err := r.Cookie(csrfCookie)
	if err != nil || c.Value == "" {
		return false
	}
	submitted := r.FormValue(csrfField)
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(submitted)) == 1
}
