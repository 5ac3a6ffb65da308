package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "auditdesk"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 10 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims represents the JWT claims issued by TokenService.
type Claims struct {
	TokenType string `json:"typ"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens. Access and refresh
// tokens are signed with distinct secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService) error

// WithAccessSecret sets the HMAC secret for access tokens.
func WithAccessSecret(secret string) TokenOption {
	return func(s *TokenService) error {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return errors.New("auth: access token secret is empty")
		}
		s.accessSecret = []byte(secret)
		return nil
	}
}

// WithRefreshSecret sets the HMAC secret for refresh tokens.
func WithRefreshSecret(secret string) TokenOption {
	return func(s *TokenService) error {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return errors.New("auth: refresh token secret is empty")
		}
		s.refreshSecret = []byte(secret)
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewTokenService builds a TokenService. Both secrets are required.
func NewTokenService(opts ...TokenOption) (*TokenService, error) {
	s := &TokenService{
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if len(s.accessSecret) == 0 || len(s.refreshSecret) == 0 {
		return nil, errors.New("auth: access and refresh token secrets are required")
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue signs a fresh access/refresh pair for u. Persisting the refresh
// token is up to the caller.
func (s *TokenService) Issue(u *User) (TokenPair, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return TokenPair{}, errors.New("auth: user id is required")
	}
	now := s.now().UTC()

	accessExp := now.Add(s.accessTTL)
	access, err := s.sign(s.accessSecret, Claims{
		TokenType:        tokenTypeAccess,
		Username:         u.Username,
		Email:            u.Email,
		Role:             u.Role,
		RegisteredClaims: s.registered(u.ID, now, accessExp),
	})
	if err != nil {
		return TokenPair{}, err
	}

	refreshExp := now.Add(s.refreshTTL)
	refresh, err := s.sign(s.refreshSecret, Claims{
		TokenType:        tokenTypeRefresh,
		RegisteredClaims: s.registered(u.ID, now, refreshExp),
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, s.accessSecret, tokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, s.refreshSecret, tokenTypeRefresh)
}

func (s *TokenService) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

func (s *TokenService) sign(secret []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) verify(token string, secret []byte, wantType string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.TokenType != wantType || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrInvalidSignature
	default:
		return ErrMalformedToken
	}
}
