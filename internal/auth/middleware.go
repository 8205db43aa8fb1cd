package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package, so no
// other package can collide with (or spoof) the claims value.
type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth enforces authentication on protected routes.
//
// The access token is read from the accessToken cookie (same-site browser
// sessions) or from an Authorization: Bearer header (programmatic clients
// that received tokens via the redirect delivery). Valid claims go into the
// request context; anything else ends the chain with a 401.
//
// Expired and forged tokens get one undifferentiated response, but they are
// logged at different levels: expiry is routine, a bad signature is worth
// noticing.
func RequireAuth(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractToken(r)
			if tokenStr == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.Verify(tokenStr)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					logger.Debug("auth: expired access token", slog.String("path", r.URL.Path))
				default:
					logger.Warn("auth: rejected access token",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified claims set by RequireAuth.
// The second return is false on anonymous requests.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// SubjectFromContext is a shorthand for the authenticated user's email.
func SubjectFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return c.Subject, c.Subject != ""
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"message":"Invalid or expired token."}`))
}
