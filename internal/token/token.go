// Package token issues and verifies the time-bounded bearer tokens used
// by the identity core: session tokens proving a completed login and
// short-lived reset tokens authorizing a password change.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer = "signon"

	purposeSession = "session"
	purposeReset   = "reset"

	// DefaultSessionTTL bounds session token lifetime unless overridden.
	DefaultSessionTTL = time.Hour
	// ResetTTL is fixed: possession of an unexpired reset token is the
	// sole authorization to change a password.
	ResetTTL = 15 * time.Minute
)

// ErrInvalidToken covers malformed, forged, expired and wrong-purpose
// tokens alike so callers cannot distinguish the cases.
var ErrInvalidToken = errors.New("token: invalid token")

// Claims are the verified claims of a signon JWT.
type Claims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a single symmetric secret.
type Issuer struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	now        func() time.Time
}

// Option configures Issuer behavior.
type Option func(*Issuer)

// WithSessionTTL overrides the session token lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.sessionTTL = ttl
		}
	}
}

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) Option {
	return func(i *Issuer) {
		if name = strings.TrimSpace(name); name != "" {
			i.issuer = name
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer from the signing secret.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	i := &Issuer{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueSession signs a session token for the given identity.
func (i *Issuer) IssueSession(id, email string) (string, time.Time, error) {
	return i.issue(id, email, purposeSession, i.sessionTTL)
}

// IssueReset signs a password reset token bound to the identity id only.
func (i *Issuer) IssueReset(id string) (string, time.Time, error) {
	return i.issue(id, "", purposeReset, ResetTTL)
}

func (i *Issuer) issue(subject, email, purpose string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("token: subject is required")
	}

	now := i.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Email:     email,
		TokenType: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifySession validates a session token and returns its claims.
func (i *Issuer) VerifySession(raw string) (*Claims, error) {
	return i.verify(raw, purposeSession)
}

// VerifyReset validates a password reset token and returns its claims.
func (i *Issuer) VerifyReset(raw string) (*Claims, error) {
	return i.verify(raw, purposeReset)
}

func (i *Issuer) verify(raw, purpose string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != i.issuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
