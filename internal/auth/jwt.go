// Package auth provides the token codec and identity-provider client for the
// gateway's federated login flow.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Client hits /auth/google/login → redirected to Google's consent page
// 2. Google calls back /auth/google/callback with a code (+ echoed state)
// 3. Server exchanges the code, verifies Google's ID token, resolves the user
// 4. Server issues an access JWT and a refresh JWT
// 5. Tokens are delivered either as HttpOnly cookies (same-site browser) or
//    as query parameters on a redirect to the client callback URL (when the
//    caller supplied an opaque state value)
//
// Tokens are stateless: downstream services verify the HMAC signature with
// the shared secret and never call back into this gateway. All the claims a
// consumer needs (subject, roles, scopes, expiry) travel inside the token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/gmarinow/auth-gateway/internal/model"
)

// Verification failures fall into two categories. Expired and invalid are
// kept distinct here so the middleware can log tampering separately from
// routine expiry, but HTTP responses fold both into one undifferentiated
// rejection — a caller cannot probe which case it hit.
var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// Claims is the JWT payload for every token the gateway mints.
//
// It embeds jwt.RegisteredClaims (sub, exp, iat, aud, iss, jti) and adds the
// authorization claims carried only by access tokens. Subject is always the
// user's email. Each token gets a fresh jti at construction time, so two
// logins by the same user always produce distinguishable tokens.
type Claims struct {
	Roles  []string `json:"roles,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig carries the deployment-level token parameters. Algorithm,
// secret, audience, issuer and durations are configuration, not protocol
// constants — see config.Config for the corresponding env vars.
type TokenConfig struct {
	Secret     string
	Algorithm  string // HMAC family only: HS256, HS384 or HS512
	Audience   string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

// TokenService issues and verifies the gateway's signed tokens.
//
// A bad secret or unknown algorithm is a construction-time error: the
// process refuses to start rather than failing on the first login.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	cfg    TokenConfig
}

// NewTokenService validates the token configuration and returns a ready
// service. The secret must be at least 16 bytes; generate one with
// `openssl rand -hex 32`.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}

	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("auth: unknown signing algorithm %q", cfg.Algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("auth: algorithm %q is not an HMAC method", cfg.Algorithm)
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token durations must be positive")
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		method: method,
		cfg:    cfg,
	}, nil
}

// IssueAccess mints a short-lived access token for the user.
// Access tokens carry the user's role and scope sets; expiry is
// issued-at plus the configured access duration.
func (s *TokenService) IssueAccess(user *model.User) (string, error) {
	return s.issue(user.Email, user.Roles, user.Scopes, s.cfg.AccessTTL)
}

// IssueRefresh mints a longer-lived refresh token. Refresh tokens identify
// the user but carry no authorization claims — a service that accepts one
// for API access would be granting days-scale credentials roles it never
// should have had.
func (s *TokenService) IssueRefresh(user *model.User) (string, error) {
	return s.issue(user.Email, nil, nil, s.cfg.RefreshTTL)
}

// IssueReset mints a password-reset token for the given email. Reset tokens
// are consumed through DecodeSkipAudience because the reset page may live
// under a different audience than API clients.
func (s *TokenService) IssueReset(email string) (string, error) {
	return s.issue(email, nil, nil, s.cfg.ResetTTL)
}

func (s *TokenService) issue(subject string, roles, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		Roles:  roles,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        xid.New().String(), // fresh jti per token
		},
	}

	signed, err := jwt.NewWithClaims(s.method, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses a token and enforces signature, algorithm, audience, issuer
// and expiry. On success it returns the claims.
//
// Pinning the algorithm with WithValidMethods closes the classic algorithm
// confusion hole where an attacker re-signs the payload under "none" or a
// different method.
//
// Errors wrap ErrTokenExpired for a structurally valid but stale token and
// ErrTokenInvalid for everything else (bad signature, wrong audience,
// malformed input). Callers that surface errors to clients should present
// the two identically.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		s.keyFunc,
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return c, nil
}

// DecodeSkipAudience parses a token without enforcing the audience or issuer
// claims, but still requires a valid signature and an unexpired exp.
// Malformed, forged or expired tokens all return (nil, false).
//
// This asymmetric policy exists for reset-style tokens, which are redeemed
// in a context whose audience differs from normal API issuance. Do not use
// it for access or refresh tokens — those go through Verify.
func (s *TokenService) DecodeSkipAudience(tokenStr string) (*Claims, bool) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		s.keyFunc,
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, false
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, false
	}

	return c, true
}

// AccessTTL reports the configured access-token lifetime. The callback
// handler uses it for the cookie max-age so the cookie and the token it
// carries expire together.
func (s *TokenService) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

func (s *TokenService) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}
