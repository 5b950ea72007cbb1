package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/kinen-app/challenge-engine/challenge"
)

type authCtxKey int

const userKey authCtxKey = 1

// Claims carried by user bearer tokens. The identity provider itself is an
// external collaborator; the engine only needs a stable user ID.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// Auth verifies HS256 bearer tokens and exposes the caller's user ID
// through the request context.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// SignToken mints a token for the given user. Used by tests and tooling;
// production tokens come from the identity provider sharing the secret.
func (a *Auth) SignToken(userID challenge.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) parseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid && c.UID != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's user ID in the context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		c, err := a.parseToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token", nil)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, challenge.UserID(c.UID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated caller's user ID.
func UserIDFromContext(ctx context.Context) (challenge.UserID, bool) {
	id, ok := ctx.Value(userKey).(challenge.UserID)
	return id, ok
}
