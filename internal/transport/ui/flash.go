package ui

import (
	"net/http"
	"net/url"
	"strings"
)

const flashCookie = "catalog_flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Type    string // success, error, warning
	Message string
}

// setFlash stores a flash message in a cookie consumed by the next render.
func setFlash(w http.ResponseWriter, kind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + "|" + message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending flash message, if any, and clears the cookie.
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(raw, "|")
	if !ok || message == "" {
		return nil
	}
	return &Flash{Type: kind, Message: message}
}

// alertClass maps a flash type to its Bootstrap alert class.
func (f Flash) AlertClass() string {
	switch f.Type {
	case "success":
		return "alert-success"
	case "error":
		return "alert-danger"
	default:
		return "alert-warning"
	}
}
