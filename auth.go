package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ordersummary/server/storage"

	"github.com/golang-jwt/jwt/v5"
)

// jwtSecretParam is the system parameter holding the HS256 signing secret.
// It is read on every issue/validate call, so rotating the parameter takes
// effect on the next request without a restart.
const jwtSecretParam = "order_summary.jwt_secret"

// tokenLifetime is fixed at issuance; tokens carry no revocation state.
const tokenLifetime = time.Hour

// ErrNoSecret indicates the signing secret is not configured.
var ErrNoSecret = errors.New("jwt secret is not configured")

// Claims is the token payload: the authenticated user id and the tenant
// database it authenticated against.
type Claims struct {
	UID int64  `json:"uid"`
	DB  string `json:"db"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsContextKey contextKey = "claims"

// issueToken mints a signed bearer token for the given user and tenant.
func issueToken(ctx context.Context, store storage.Store, uid int64, db string) (string, error) {
	secret, err := store.GetParameter(ctx, jwtSecretParam)
	if err != nil {
		return "", fmt.Errorf("read signing secret: %w", err)
	}
	if secret == "" {
		return "", ErrNoSecret
	}

	now := time.Now()
	claims := Claims{
		UID: uid,
		DB:  db,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// requireJWT wraps a handler with bearer token validation. On success the
// parsed claims are attached to the request context for downstream use.
func requireJWT(store storage.Store, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeJSONError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeJSONError(w, http.StatusUnauthorized,
				`Invalid token format. Expected "Bearer <token>".`)
			return
		}

		secret, err := store.GetParameter(r.Context(), jwtSecretParam)
		if err != nil {
			logError("Failed to read JWT secret", "error", err)
			writeJSONError(w, http.StatusInternalServerError,
				"An unexpected server error occurred")
			return
		}
		if secret == "" {
			logError("JWT secret is not configured", "parameter", jwtSecretParam)
			writeJSONError(w, http.StatusInternalServerError,
				"Server is not configured for JWT authentication.")
			return
		}

		claims := &Claims{}
		_, err = jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeJSONError(w, http.StatusUnauthorized, "Token has expired")
				return
			}
			writeJSONError(w, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// claimsFromContext returns the validated claims attached by requireJWT,
// or nil if the request did not pass through it.
func claimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}
