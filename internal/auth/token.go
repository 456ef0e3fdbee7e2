package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the verified content of an access credential.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier parses and verifies HS256 access credentials. It performs no I/O;
// the outcome is a pure function of token, key and current time.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier constructs a Verifier for the given signing secret and issuer.
func NewVerifier(secret []byte, issuer string, opts ...VerifierOption) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("auth: issuer is required")
	}
	v := &Verifier{secret: secret, issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks structure, expiry and signature of token and returns its
// claims. Expiry is decided before the signature so an expired credential
// never reveals whether its signature would have verified.
func (v *Verifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}

	var unverified Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &unverified); err != nil {
		return nil, ErrMalformedToken
	}
	if unverified.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	if !v.now().Before(unverified.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrMalformedToken
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrMalformedToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if err := v.validateClaims(claims); err != nil {
		return nil, err
	}
	claims.Roles = NormalizeRoles(claims.Roles)
	return claims, nil
}

func (v *Verifier) validateClaims(claims *Claims) error {
	if !strings.EqualFold(claims.Issuer, v.issuer) {
		return ErrMalformedToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ErrMalformedToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return ErrMalformedToken
	}
	now := v.now()
	if !now.Before(claims.ExpiresAt.Time) {
		return ErrExpiredToken
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return ErrMalformedToken
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return ErrMalformedToken
	}
	return nil
}

// Sign produces a credential for the given subject and roles. Issuance is
// the identity provider's job; this exists for tests and the dev token tool.
func (v *Verifier) Sign(subject string, roles []string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("auth: subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("auth: ttl must be greater than zero")
	}
	now := v.now().UTC()
	claims := Claims{
		Roles: NormalizeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Fingerprint derives the revocation-store key for a raw credential. It is
// computed identically on revoke and on check so the gate can consult the
// store before the token is parsed.
func Fingerprint(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// NormalizeRoles trims, upper-cases and deduplicates role names.
func NormalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToUpper(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
