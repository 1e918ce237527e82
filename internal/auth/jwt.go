// Package auth issues and checks session credentials: signed tokens, bcrypt
// password hashes, the session cookie, and the middleware that turns a
// cookie back into a user.
//
// SESSION FLOW:
//  1. Signup or login succeeds → TokenService.Generate mints a signed token
//  2. The token is stored in the HttpOnly "token" cookie
//  3. Each later request carries the cookie; RequireAuth (API) or Gate
//     (pages) validates it and resolves the user
//  4. Logout clears the cookie. Tokens are not revoked server-side, so a
//     copied token stays valid until it expires.
//
// TOKEN STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"userId":"...","email":"...","iss":"tasktracker","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "tasktracker"

	// DefaultTokenTTL matches the session cookie lifetime.
	DefaultTokenTTL = 7 * 24 * time.Hour

	minSecretLen = 16
)

// ErrTokenExpired is returned by Validate for a well-signed token whose
// expiry has passed.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. ttl <= 0 selects DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLen)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Claims is the token payload. UserID and Email are the session identity;
// the registered claims carry expiry, issuer and a unique token id.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TTL is the lifetime given to tokens minted by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate mints a token for the user with the service's TTL.
func (s *TokenService) Generate(userID, email string) (string, error) {
	return s.GenerateWithDuration(userID, email, s.ttl)
}

// GenerateWithDuration mints a token with a custom lifetime. Tests use a
// negative duration to produce an already-expired token.
func (s *TokenService) GenerateWithDuration(userID, email string, d time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature matches the secret
//   - Algorithm is HS256 (blocks "none" and key-confusion tricks)
//   - Issuer is ours and an expiry is present and in the future
//   - Every segment is canonical base64url, so no two encodings of one
//     signature are both accepted
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("auth: token has no user id")
	}
	return c, nil
}
