package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/gmarinow/auth-gateway/internal/model"
)

// newTestTokenService creates a TokenService with a fixed secret so tests
// are deterministic. Pass overrides to tweak individual durations.
func newTestTokenService(t *testing.T, override func(*TokenConfig)) *TokenService {
	t.Helper()

	cfg := TokenConfig{
		Secret:     "test-secret-at-least-16-chars!!",
		Algorithm:  "HS256",
		Audience:   "test-clients",
		Issuer:     "test-gateway",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 720 * time.Hour,
		ResetTTL:   time.Hour,
	}
	if override != nil {
		override(&cfg)
	}

	ts, err := NewTokenService(cfg)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func testUser() *model.User {
	return &model.User{
		ID:     "user-test-1",
		Email:  "new@x.com",
		Roles:  []string{"user"},
		Scopes: []string{},
	}
}

// =========================================================================
// CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService(TokenConfig{
		Secret:     "short",
		Algorithm:  "HS256",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_UnknownAlgorithm(t *testing.T) {
	_, err := NewTokenService(TokenConfig{
		Secret:     "test-secret-at-least-16-chars!!",
		Algorithm:  "HS9000",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	if err == nil {
		t.Fatal("NewTokenService() should reject an unknown algorithm")
	}
}

func TestNewTokenService_NonHMACAlgorithm(t *testing.T) {
	_, err := NewTokenService(TokenConfig{
		Secret:     "test-secret-at-least-16-chars!!",
		Algorithm:  "RS256",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	if err == nil {
		t.Fatal("NewTokenService() should reject non-HMAC algorithms for a shared-secret codec")
	}
}

// =========================================================================
// ISSUE + VERIFY ROUND-TRIP TESTS
// =========================================================================

func TestVerify_AccessRoundTrip(t *testing.T) {
	ts := newTestTokenService(t, nil)
	user := testUser()
	user.Roles = []string{"user", "admin"}
	user.Scopes = []string{"profile:read"}

	before := time.Now()
	token, err := ts.IssueAccess(user)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	claims, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if claims.Subject != user.Email {
		t.Errorf("Subject = %q, want %q", claims.Subject, user.Email)
	}
	if len(claims.Roles) != 2 || claims.Roles[1] != "admin" {
		t.Errorf("Roles = %v, want [user admin]", claims.Roles)
	}
	if len(claims.Scopes) != 1 || claims.Scopes[0] != "profile:read" {
		t.Errorf("Scopes = %v, want [profile:read]", claims.Scopes)
	}
	if claims.ID == "" {
		t.Error("claims.ID (jti) is empty")
	}

	// Round-trip law: iat is no earlier than when we asked, and
	// exp = iat + configured access duration.
	if claims.IssuedAt.Time.Before(before.Truncate(time.Second)) {
		t.Errorf("IssuedAt %v is before issuance time %v", claims.IssuedAt.Time, before)
	}
	wantExp := claims.IssuedAt.Time.Add(15 * time.Minute)
	if !claims.ExpiresAt.Time.Equal(wantExp) {
		t.Errorf("ExpiresAt = %v, want IssuedAt+15m = %v", claims.ExpiresAt.Time, wantExp)
	}
}

func TestVerify_RefreshHasNoAuthorizationClaims(t *testing.T) {
	ts := newTestTokenService(t, nil)

	token, err := ts.IssueRefresh(testUser())
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	claims, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(claims.Roles) != 0 || len(claims.Scopes) != 0 {
		t.Errorf("refresh token carries roles=%v scopes=%v, want none", claims.Roles, claims.Scopes)
	}
}

func TestIssue_FreshJTIPerToken(t *testing.T) {
	ts := newTestTokenService(t, nil)
	user := testUser()

	t1, _ := ts.IssueAccess(user)
	t2, _ := ts.IssueAccess(user)

	c1, err := ts.Verify(t1)
	if err != nil {
		t.Fatalf("Verify(t1) error = %v", err)
	}
	c2, err := ts.Verify(t2)
	if err != nil {
		t.Fatalf("Verify(t2) error = %v", err)
	}
	if c1.ID == c2.ID {
		t.Errorf("two tokens share jti %q — jti must be generated per construction", c1.ID)
	}
}

// =========================================================================
// VERIFY REJECTION TESTS
// =========================================================================

func TestVerify_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t, func(cfg *TokenConfig) {
		cfg.AccessTTL = time.Nanosecond
	})

	token, err := ts.IssueAccess(testUser())
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = ts.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t, nil)

	token, _ := ts.IssueAccess(testUser())
	tampered := token[:len(token)-3] + "xxx"

	_, err := ts.Verify(tampered)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	ts1 := newTestTokenService(t, nil)
	ts2 := newTestTokenService(t, func(cfg *TokenConfig) {
		cfg.Secret = "another-secret-also-16+-chars!!!"
	})

	token, _ := ts1.IssueAccess(testUser())

	if _, err := ts2.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify() with wrong secret error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_WrongAudience(t *testing.T) {
	issuer := newTestTokenService(t, func(cfg *TokenConfig) {
		cfg.Audience = "other-audience"
	})
	verifier := newTestTokenService(t, nil)

	token, _ := issuer.IssueAccess(testUser())

	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify() with wrong audience error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_GarbageInput(t *testing.T) {
	ts := newTestTokenService(t, nil)

	for _, input := range []string{"", "not.a.jwt", "a.b.c.d"} {
		if _, err := ts.Verify(input); err == nil {
			t.Errorf("Verify(%q) should fail", input)
		}
	}
}

// =========================================================================
// DecodeSkipAudience TESTS
// =========================================================================

// A reset token minted under one audience must still decode in a context
// configured with another audience — that is the whole point of the
// skip-audience path.
func TestDecodeSkipAudience_AcceptsForeignAudience(t *testing.T) {
	issuer := newTestTokenService(t, func(cfg *TokenConfig) {
		cfg.Audience = "reset-flow"
	})
	decoder := newTestTokenService(t, nil)

	token, err := issuer.IssueReset("reset@x.com")
	if err != nil {
		t.Fatalf("IssueReset() error = %v", err)
	}

	claims, ok := decoder.DecodeSkipAudience(token)
	if !ok {
		t.Fatal("DecodeSkipAudience() rejected a valid token with a foreign audience")
	}
	if claims.Subject != "reset@x.com" {
		t.Errorf("Subject = %q, want reset@x.com", claims.Subject)
	}
}

// Expiry is enforced even though the audience is not: a signed-but-stale
// token must yield nothing.
func TestDecodeSkipAudience_RejectsExpired(t *testing.T) {
	ts := newTestTokenService(t, func(cfg *TokenConfig) {
		cfg.ResetTTL = time.Nanosecond
	})

	token, err := ts.IssueReset("reset@x.com")
	if err != nil {
		t.Fatalf("IssueReset() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if claims, ok := ts.DecodeSkipAudience(token); ok {
		t.Fatalf("DecodeSkipAudience() accepted an expired token: %+v", claims)
	}
}

func TestDecodeSkipAudience_RejectsForged(t *testing.T) {
	ts := newTestTokenService(t, nil)

	token, _ := ts.IssueReset("reset@x.com")
	forged := token[:len(token)-3] + "xxx"

	if _, ok := ts.DecodeSkipAudience(forged); ok {
		t.Fatal("DecodeSkipAudience() accepted a forged signature")
	}
	if _, ok := ts.DecodeSkipAudience("garbage"); ok {
		t.Fatal("DecodeSkipAudience() accepted malformed input")
	}
}
