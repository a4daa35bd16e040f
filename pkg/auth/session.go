package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

// NewSessionID returns 32 random bytes, hex encoded.
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type CookieOptions struct {
	Name   string
	Secure bool
}

// SetSessionCookie writes the session cookie. gin's SetCookie cannot emit
// Partitioned, so this goes through net/http directly.
func SetSessionCookie(w http.ResponseWriter, opts CookieOptions, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:        opts.Name,
		Value:       token,
		Path:        "/",
		MaxAge:      int(ttl.Seconds()),
		HttpOnly:    true,
		Secure:      opts.Secure,
		SameSite:    http.SameSiteStrictMode,
		Partitioned: opts.Secure,
	})
}

func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:        opts.Name,
		Value:       "",
		Path:        "/",
		MaxAge:      -1,
		HttpOnly:    true,
		Secure:      opts.Secure,
		SameSite:    http.SameSiteStrictMode,
		Partitioned: opts.Secure,
	})
}
