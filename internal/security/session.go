package security

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// GenerateSessionToken creates a new random UUID for session identification
func GenerateSessionToken() string {
	return uuid.New().String()
}

// IsSecureRequest determines if the request is over HTTPS
// Checks TLS connection, X-Forwarded-Proto header (for reverse proxies), and URL scheme
func IsSecureRequest(r *http.Request) bool {
	// Direct TLS connection
	if r.TLS != nil {
		return true
	}

	// Behind reverse proxy (nginx, Caddy, load balancer, etc.)
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		return true
	}

	// Explicit HTTPS scheme
	if r.URL.Scheme == "https" {
		return true
	}

	return false
}

// CreateSessionCookie creates an HttpOnly session cookie. The Secure flag is
// set when forceSecure is true or the request arrived over HTTPS.
func CreateSessionCookie(r *http.Request, name, value string, maxAge time.Duration, forceSecure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   forceSecure || IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// CreateDeleteCookie creates a cookie that clears name in the browser
func CreateDeleteCookie(r *http.Request, name string, forceSecure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   forceSecure || IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}
