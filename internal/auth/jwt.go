// Package auth issues and validates the service tokens that protect the
// ingestion endpoints.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service tokens are HS256 JWTs shared between the API and the external
// processes that push data into it (the prediction model). They carry the
// caller name as subject and a list of scopes. There is no refresh flow:
// operators mint a new token with airectl when one expires.

const (
	// DefaultTokenExpiry is how long service tokens are valid unless configured otherwise.
	DefaultTokenExpiry = 30 * 24 * time.Hour

	// DefaultIssuer is the issuer claim used when none is configured.
	DefaultIssuer = "aire-api"

	// DefaultAudience is the audience claim used when none is configured.
	DefaultAudience = "aire-ingest"

	// ScopePredictionsWrite allows storing predictions.
	ScopePredictionsWrite = "predictions:write"
)

// Token errors.
var (
	ErrInvalidToken     = errors.New("invalid service token")
	ErrTokenExpired     = errors.New("service token has expired")
	ErrMissingScope     = errors.New("service token lacks required scope")
	ErrMissingSubject   = errors.New("service token subject is required")
	ErrSigningKeyNotSet = errors.New("signing key is not configured")
)

// ServiceClaims are the claims carried by a service token.
type ServiceClaims struct {
	jwt.RegisteredClaims

	// Scopes lists what the caller may do.
	Scopes []string `json:"scp"`
}

// HasScope reports whether the claims grant scope.
func (c *ServiceClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the shared secret used to sign tokens.
	SigningKey string

	// Issuer is the issuer claim (default: DefaultIssuer).
	Issuer string

	// Audience is the audience claim (default: DefaultAudience).
	Audience string

	// Expiry is the token lifetime (default: DefaultTokenExpiry).
	Expiry time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// JWTService handles service token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	expiry     time.Duration
	now        func() time.Time
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	audience := cfg.Audience
	if audience == "" {
		audience = DefaultAudience
	}
	expiry := cfg.Expiry
	if expiry == 0 {
		expiry = DefaultTokenExpiry
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     issuer,
		audience:   audience,
		expiry:     expiry,
		now:        now,
	}
}

// Enabled reports whether a signing key is configured.
func (s *JWTService) Enabled() bool {
	return len(s.signingKey) > 0
}

// IssueServiceToken signs a token for subject with the given scopes.
func (s *JWTService) IssueServiceToken(subject string, scopes ...string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrSigningKeyNotSet
	}
	if subject == "" {
		return "", time.Time{}, ErrMissingSubject
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing service token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateServiceToken validates a token and returns its claims.
func (s *JWTService) ValidateServiceToken(tokenString string) (*ServiceClaims, error) {
	if !s.Enabled() {
		return nil, ErrSigningKeyNotSet
	}

	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

// generateTokenID generates a unique token ID.
func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
