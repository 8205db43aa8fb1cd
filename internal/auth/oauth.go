package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/gmarinow/auth-gateway/internal/apperror"
)

// Identity is the canonical external identity produced by a verified
// provider callback. It is ephemeral — used to key a user lookup or to
// populate a brand-new record, never persisted as-is.
type Identity struct {
	ID        string // provider-scoped stable subject ("sub")
	Provider  string // provider tag, e.g. "google"
	Email     string
	FirstName string
	LastName  string
	Picture   string
}

// IdentityProvider is the boundary to the external IdP. The login flow
// depends only on these two operations, so the concrete integration is
// swappable and trivially mockable in tests.
//
// VerifyCallback owns all OAuth2/OIDC mechanics: code exchange, ID-token
// signature verification, claim extraction. A denial or an unverifiable
// response surfaces as an error wrapping apperror.ErrUnauthorized, which
// the callback handler maps to 401.
type IdentityProvider interface {
	// AuthURL builds the authorization redirect. The opaque state value is
	// round-tripped through the provider and comes back on the callback.
	AuthURL(state string) string

	// VerifyCallback validates the provider's callback request and returns
	// the canonical identity it asserts.
	VerifyCallback(ctx context.Context, r *http.Request) (*Identity, error)
}

const googleIssuer = "https://accounts.google.com"

// GoogleProvider implements IdentityProvider for Google OIDC.
//
// Construction performs OIDC discovery against Google (one network call)
// and sets up the ID-token verifier. The verifier checks the token's
// signature against Google's published keys, plus issuer, audience and
// expiry — the gateway never trusts callback parameters it hasn't verified.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ IdentityProvider = (*GoogleProvider)(nil)

// NewGoogleProvider discovers Google's OIDC endpoints and returns a ready
// provider. Missing credentials or failed discovery are startup-fatal.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("auth: google provider requires client ID, secret and redirect URL")
	}

	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("auth: google OIDC discovery: %w", err)
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthURL returns the Google consent URL.
//
// AccessTypeOffline plus prompt=consent asks Google for a refresh grant, so
// re-authentication is not needed when the gateway later adds token renewal.
// The caller's opaque state is passed straight through; Google echoes it on
// the callback, where it doubles as the delivery-mode selector.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// VerifyCallback completes the authorization-code flow for a callback
// request: exchanges the code, verifies the returned ID token, and extracts
// the identity claims.
func (p *GoogleProvider) VerifyCallback(ctx context.Context, r *http.Request) (*Identity, error) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		return nil, fmt.Errorf("%w: provider denied authorization: %s", apperror.ErrUnauthorized, errParam)
	}

	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: callback missing authorization code", apperror.ErrUnauthorized)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %w", apperror.ErrUnauthorized, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: provider returned no id_token", apperror.ErrUnauthorized)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: id_token verification failed: %w", apperror.ErrUnauthorized, err)
	}

	var claims struct {
		Subject    string `json:"sub"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: parsing id_token claims: %w", apperror.ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: id_token missing required claims", apperror.ErrUnauthorized)
	}

	return &Identity{
		ID:        claims.Subject,
		Provider:  "google",
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		Picture:   claims.Picture,
	}, nil
}
