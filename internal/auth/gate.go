package auth

import (
	"net/http"
	"net/url"
	"strings"
)

var (
	protectedPrefixes = []string{"/dashboard", "/projects", "/tasks"}
	authOnlyPrefixes  = []string{"/login", "/signup"}
	gateBypass        = []string{"/api", "/static"}
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// Gate decides, for page requests, whether to serve, send the visitor to
// the login page, or send a signed-in user away from login/signup.
//
//	no token  + protected  → 307 /login?redirect=<path>
//	bad token              → clear cookie; protected → login, else serve
//	good token + auth-only → 307 /dashboard
//	otherwise              → serve, with the user (if any) in the context
//
// Prefixes match on path segments: /tasks/abc is protected, /taskset is not.
// API and static paths pass through untouched.
func Gate(v Verifier, cookies SessionCookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if matchesAny(path, gateBypass) {
				next.ServeHTTP(w, r)
				return
			}

			protected := matchesAny(path, protectedPrefixes)
			authOnly := matchesAny(path, authOnlyPrefixes)

			token, ok := TokenFromRequest(r)
			if !ok {
				if protected {
					redirectToLogin(w, r)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			user, ok := v.VerifyToken(r.Context(), token)
			if !ok {
				cookies.Clear(w, r)
				if protected {
					redirectToLogin(w, r)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if authOnly {
				http.Redirect(w, r, dashboardPath, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	q := url.Values{"redirect": {r.URL.Path}}
	http.Redirect(w, r, loginPath+"?"+q.Encode(), http.StatusTemporaryRedirect)
}

// HasPathPrefix reports whether path equals prefix or continues it with a
// new segment.
func HasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if HasPathPrefix(path, p) {
			return true
		}
	}
	return false
}
