package auth

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "token"

// SessionCookies sets and clears the session cookie.
//
// The cookie is HttpOnly (scripts cannot read it) and SameSite=Lax (not sent
// on cross-site POSTs). Secure is set when the request reached us over TLS,
// directly or through a proxy that reports X-Forwarded-Proto, or when
// ForceSecure is on.
type SessionCookies struct {
	TTL         time.Duration
	ForceSecure bool
}

// Set stores token in the session cookie for TTL.
func (c SessionCookies) Set(w http.ResponseWriter, r *http.Request, token string) {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear tells the browser to drop the session cookie immediately.
func (c SessionCookies) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (c SessionCookies) secure(r *http.Request) bool {
	if c.ForceSecure || r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// TokenFromRequest returns the session token, if the cookie is present and
// non-empty.
func TokenFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
