package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gmarinow/auth-gateway/internal/apperror"
	"github.com/gmarinow/auth-gateway/internal/auth"
	"github.com/gmarinow/auth-gateway/internal/service"
)

// AuthHandler drives the federated login flow over HTTP.
//
// ROUTES:
//   - HandleGoogleLogin    → 302 to the provider's consent page
//   - HandleGoogleCallback → verify, provision, issue tokens, deliver
//   - HandleMe             → profile of the authenticated user
//
// DELIVERY MODES (the state parameter is the selector):
// A caller that supplies an opaque ?state= value on login is a
// programmatic or cross-origin client: the callback answers with a 302 to
// the configured client callback URL carrying both tokens as query
// parameters. No state means a same-site browser session: the callback
// redirects to "/" and sets the tokens as two HttpOnly cookies whose
// max-age matches each token's own lifetime.
//
// Note the first mode leaks tokens into browser history and any access
// logs along the redirect path. It is the contract programmatic clients
// integrate against, kept as-is; prefer the cookie mode where possible.
type AuthHandler struct {
	provider     auth.IdentityProvider
	tokens       *auth.TokenService
	authService  *service.AuthService
	cookieDomain string
	clientURL    string
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieDomain scopes the token
// cookies; clientURL is the fixed redirect target for the state-present
// delivery branch.
func NewAuthHandler(
	provider auth.IdentityProvider,
	tokens *auth.TokenService,
	authService *service.AuthService,
	cookieDomain string,
	clientURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:     provider,
		tokens:       tokens,
		authService:  authService,
		cookieDomain: cookieDomain,
		clientURL:    clientURL,
		logger:       logger,
	}
}

// HandleGoogleLogin initiates the flow.
//
// HTTP: GET /auth/google/login?state=<opaque, optional>
//
// The state value is passed through to the provider untouched and comes
// back on the callback, where it selects the delivery mode. There is no
// retry semantics here: if anything fails the client restarts the flow.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	redirectURL := h.provider.AuthURL(state)
	if redirectURL == "" {
		h.logger.Error("login: provider produced an empty authorization URL")
		writeError(w, errors.New("empty authorization URL"))
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// HandleGoogleCallback completes the flow.
//
// HTTP: GET /auth/google/callback?state=<echoed>&code=...
//
// FLOW:
//  1. Verify the provider's response → 401 on rejection, terminal
//  2. Resolve or provision the user by email
//  3. Mint the access+refresh pair
//  4. Deliver per the state-based branch
//
// A failure after provisioning does not roll the user back; the record is
// simply there for the next attempt.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := r.URL.Query().Get("state")

	identity, err := h.provider.VerifyCallback(ctx, r)
	if err != nil || identity == nil {
		if err != nil && !errors.Is(err, apperror.ErrUnauthorized) {
			// Unexpected provider failure, not a rejection.
			h.logger.Error("callback: provider verification failed", slog.String("error", err.Error()))
			writeError(w, err)
			return
		}
		if err != nil {
			h.logger.Warn("callback: provider rejected", slog.String("error", err.Error()))
		}
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Invalid credentials."})
		return
	}

	result, err := h.authService.Login(ctx, identity)
	if err != nil {
		h.logger.Error("callback: login failed",
			slog.String("provider", identity.Provider),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	if state != "" {
		h.redirectWithTokens(w, r, result)
		return
	}
	h.redirectWithCookies(w, r, result)
}

// redirectWithTokens sends the programmatic client to its callback URL with
// both tokens appended as query parameters.
func (h *AuthHandler) redirectWithTokens(w http.ResponseWriter, r *http.Request, result *service.LoginResult) {
	q := url.Values{}
	q.Set("access_token", result.AccessToken)
	q.Set("refresh_token", result.RefreshToken)

	http.Redirect(w, r, h.clientURL+"?"+q.Encode(), http.StatusFound)
}

// redirectWithCookies sends the browser to the application root with both
// tokens in domain-scoped HttpOnly cookies. Each cookie dies together with
// the token it carries.
func (h *AuthHandler) redirectWithCookies(w http.ResponseWriter, r *http.Request, result *service.LoginResult) {
	h.setTokenCookie(w, "accessToken", result.AccessToken, h.tokens.AccessTTL())
	h.setTokenCookie(w, "refreshToken", result.RefreshToken, h.tokens.RefreshTTL())

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   h.cookieDomain,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: required — RequireAuth puts the verified claims in the context.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Invalid or expired token."})
		return
	}

	user, err := h.authService.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.logger.Error("me: fetching user failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
