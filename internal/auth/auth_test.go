package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestTokens(t *testing.T, now *time.Time, opts ...TokenOption) *TokenService {
	t.Helper()
	base := []TokenOption{
		WithAccessSecret("access-secret"),
		WithRefreshSecret("refresh-secret"),
		WithAccessTTL(15 * time.Minute),
		WithRefreshTTL(24 * time.Hour),
		WithClock(func() time.Time { return *now }),
	}
	svc, err := NewTokenService(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestTokenServiceIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokens(t, &now)
	user := &User{ID: "user-42", Username: "a1", Email: "a1@x.com", Role: RoleAdmin}

	pair, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !pair.AccessExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", pair.AccessExpiresAt)
	}

	claims, err := svc.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "user-42" || claims.Role != RoleAdmin || claims.Username != "a1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Issuer != defaultIssuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}

	refresh, err := svc.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if refresh.Subject != "user-42" {
		t.Fatalf("unexpected refresh subject %q", refresh.Subject)
	}
}

func TestTokenServiceRejectsForeignSecret(t *testing.T) {
	now := time.Now().UTC()
	issuer := newTestTokens(t, &now, WithAccessSecret("another-secret"))
	verifier := newTestTokens(t, &now)

	pair, err := issuer.Issue(&User{ID: "u1", Role: RoleEmployee})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, err = verifier.VerifyAccess(pair.AccessToken)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected error to match ErrInvalidToken")
	}
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokens(t, &now)
	pair, err := svc.Issue(&User{ID: "u1", Role: RoleEmployee})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := svc.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := svc.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("refresh token should outlive access token: %v", err)
	}
}

func TestTokenServiceRejectsMalformed(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestTokens(t, &now)
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		if _, err := svc.VerifyAccess(raw); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("VerifyAccess(%q): expected ErrMalformedToken, got %v", raw, err)
		}
	}
}

func TestTokenServiceRejectsSwappedTokenTypes(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestTokens(t, &now, WithRefreshSecret("access-secret"))
	pair, err := svc.Issue(&User{ID: "u1", Role: RoleEmployee})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := svc.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestNewTokenServiceRequiresSecrets(t *testing.T) {
	if _, err := NewTokenService(WithAccessSecret("only-access")); err == nil {
		t.Fatal("expected error without refresh secret")
	}
	if _, err := NewTokenService(WithAccessSecret("   ")); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestRepeatedIssueProducesDistinctRefreshTokens(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestTokens(t, &now)
	u := &User{ID: "u1", Role: RoleEmployee}
	a, err := svc.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, err := svc.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if a.RefreshToken == b.RefreshToken {
		t.Fatal("expected a new refresh token on every issue")
	}
	if strings.Count(a.AccessToken, ".") != 2 {
		t.Fatalf("access token is not a compact JWS: %q", a.AccessToken)
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		got, err := ParseRole(" " + string(r) + " ")
		if err != nil || got != r {
			t.Fatalf("ParseRole(%q) = %q, %v", r, got, err)
		}
	}
	for _, bad := range []string{"", "admin", "Owner", "MANAGER"} {
		if _, err := ParseRole(bad); !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("ParseRole(%q): expected ErrInvalidRole, got %v", bad, err)
		}
	}
}

func TestPublicUserOmitsCredentials(t *testing.T) {
	u := &User{ID: "u1", Username: "e1", PasswordHash: "hash", RefreshToken: "rt", Role: RoleEmployee}
	pub := u.Public()
	if pub.ID != "u1" || pub.Username != "e1" || pub.Role != RoleEmployee {
		t.Fatalf("unexpected public view: %+v", pub)
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("s3cret!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Verify(hash, "s3cret!"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := h.Verify(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := h.Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if NewHasher(1).cost != 4 || NewHasher(99).cost != 31 {
		t.Fatal("cost was not clamped")
	}
}
