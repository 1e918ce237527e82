package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sakif/tasktracker/internal/model"
)

// Verifier resolves a session token to the user it belongs to. It reports
// false for any token that does not resolve: bad signature, expired, or a
// user that no longer exists.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*model.PublicUser, bool)
}

// contextKey is unexported so no other package can read or overwrite the
// values this package stores in a request context.
type contextKey string

const userKey contextKey = "user"

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *model.PublicUser) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user stored by RequireAuth or Gate.
func UserFromContext(ctx context.Context) (*model.PublicUser, bool) {
	u, ok := ctx.Value(userKey).(*model.PublicUser)
	return u, ok && u != nil
}

// UserIDFromContext is a shortcut for handlers that only need the id.
func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := UserFromContext(ctx)
	if !ok || u.ID == "" {
		return "", false
	}
	return u.ID, true
}

// RequireAuth guards API routes. A missing cookie yields 401
// {"error":"Not authenticated"}; a cookie that does not verify is cleared
// and yields 401 {"error":"Invalid token"}. Otherwise the resolved user is
// stored in the request context.
func RequireAuth(v Verifier, cookies SessionCookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := TokenFromRequest(r)
			if !ok {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			user, ok := v.VerifyToken(r.Context(), token)
			if !ok {
				cookies.Clear(w, r)
				writeUnauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
