package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"signon.org/internal/federation"
	"signon.org/internal/ids"
	"signon.org/internal/obs"
	"signon.org/internal/token"
)

// Metrics counts authentication outcomes. Implementations must be safe
// for concurrent use.
type Metrics interface {
	Registration()
	LoginAttempt(status string)
}

// Publisher delivers lifecycle events to the outbound message channel.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Service composes the credential store, password hasher, token issuer,
// event publisher, metrics recorder and federated providers into the
// authentication use cases. All collaborators are supplied explicitly at
// construction.
type Service struct {
	store     Store
	tokens    *token.Issuer
	events    Publisher
	metrics   Metrics
	providers map[string]federation.Provider
	logger    *log.Logger
	now       func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithPublisher enables lifecycle event publishing.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithMetrics enables outcome counting.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithProvider registers a federated identity provider.
func WithProvider(p federation.Provider) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.providers[p.Name()] = p
		}
	}
}

// WithLogger overrides the structured logger.
func WithLogger(l *log.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the orchestrator. Store and token issuer are
// mandatory, the rest default to no-ops.
func NewService(store Store, tokens *token.Issuer, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		tokens:    tokens,
		events:    noopPublisher{},
		metrics:   noopMetrics{},
		providers: make(map[string]federation.Provider),
		logger:    obs.Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a local identity. The store enforces email uniqueness
// atomically, so a concurrent duplicate registration loses with
// ErrEmailTaken rather than creating a second record. A failed lifecycle
// publish fails the whole call even though the identity persists; a
// retry then observes ErrEmailTaken.
func (s *Service) Register(ctx context.Context, input NewIdentity) (*Identity, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		s.logEvent("registration attempt with existing email", map[string]any{"email": email})
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, s.internal("check existing identity", err)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	ident := &Identity{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Picture:      strings.TrimSpace(input.Picture),
	}
	if err := s.createIdentity(ctx, ident); err != nil {
		return nil, err
	}
	return ident, nil
}

// createIdentity persists the record, counts the registration and
// publishes the lifecycle event, in that order. Shared by local and
// federated registration.
func (s *Service) createIdentity(ctx context.Context, ident *Identity) error {
	now := s.now().UTC()
	ident.CreatedAt = now
	ident.UpdatedAt = now

	if err := s.store.Create(ctx, ident); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.logEvent("duplicate identity create lost race", map[string]any{"email": ident.Email})
			return ErrEmailTaken
		}
		return s.internal("create identity", err)
	}

	s.logEvent("new identity registered", map[string]any{"identity_id": ident.ID})
	s.metrics.Registration()

	evt := RegisteredEvent{ID: ident.ID, Email: ident.Email}
	if err := s.events.Publish(ctx, TopicRegistered, evt); err != nil {
		// The identity is already persisted; the caller sees the
		// delivery failure and may retry, observing ErrEmailTaken.
		s.logEvent("lifecycle event delivery failed", map[string]any{
			"identity_id": ident.ID,
			"error":       err.Error(),
		})
		return ErrEventDelivery
	}
	return nil
}

// Login validates credentials and issues a session token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)

	ident, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logEvent("failed login attempt", map[string]any{"email": email})
			s.metrics.LoginAttempt("failure")
			return nil, ErrInvalidCredentials
		}
		return nil, s.internal("lookup identity", err)
	}

	if err := VerifyPassword(ident.PasswordHash, password); err != nil {
		s.logEvent("failed login attempt", map[string]any{"email": email})
		s.metrics.LoginAttempt("failure")
		return nil, ErrInvalidCredentials
	}

	s.metrics.LoginAttempt("success")
	s.logEvent("identity logged in", map[string]any{"identity_id": ident.ID})

	return s.newSession(ident)
}

// ForgotPassword issues a password reset token for the account. The
// miss is surfaced as ErrNotFound; out-of-band delivery of the token is
// the caller's concern.
func (s *Service) ForgotPassword(ctx context.Context, email string) (*ResetRequest, error) {
	email = strings.TrimSpace(email)

	ident, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal("lookup identity", err)
	}

	raw, expiresAt, err := s.tokens.IssueReset(ident.ID)
	if err != nil {
		return nil, s.internal("issue reset token", err)
	}

	s.logEvent("password reset token issued", map[string]any{"identity_id": ident.ID})

	return &ResetRequest{
		Email:     ident.Email,
		Token:     raw,
		ExpiresAt: expiresAt,
	}, nil
}

// ResetPassword changes the password of the identity the token was
// issued for. The token subject is authoritative; expired, forged and
// wrong-purpose tokens all fail identically.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) (*Identity, error) {
	claims, err := s.tokens.VerifyReset(rawToken)
	if err != nil {
		return nil, token.ErrInvalidToken
	}
	if newPassword == "" {
		return nil, ErrInvalidInput
	}

	ident, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal("lookup identity", err)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	updated, err := s.store.UpdatePassword(ctx, ident.ID, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal("update password", err)
	}

	s.logEvent("password reset completed", map[string]any{"identity_id": updated.ID})
	return updated, nil
}

// FederatedLogin completes a third-party handshake and logs the profile
// in, creating a local identity on first sight. The placeholder password
// of a federated identity is random and never disclosed.
func (s *Service) FederatedLogin(ctx context.Context, provider, code string) (*Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrFederation
	}

	profile, err := p.ResolveProfile(ctx, code)
	if err != nil {
		s.logEvent("federated profile resolution failed", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, ErrFederation
	}
	if profile.Email == "" {
		return nil, ErrFederation
	}

	ident, err := s.store.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		// Existing identity, local or federated: reuse it.
	case errors.Is(err, ErrNotFound):
		ident, err = s.registerFederated(ctx, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, s.internal("lookup identity", err)
	}

	return s.newSession(ident)
}

func (s *Service) registerFederated(ctx context.Context, profile federation.Profile) (*Identity, error) {
	placeholder, err := randomPassword()
	if err != nil {
		return nil, s.internal("generate placeholder password", err)
	}
	hash, err := HashPassword(placeholder)
	if err != nil {
		return nil, s.internal("hash placeholder password", err)
	}

	ident := &Identity{
		ID:           ids.New(),
		Email:        profile.Email,
		PasswordHash: hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Picture:      profile.Picture,
	}
	err = s.createIdentity(ctx, ident)
	if errors.Is(err, ErrEmailTaken) {
		// Lost a race against a concurrent login with the same profile:
		// the winner's record is the one to use.
		return s.store.FindByEmail(ctx, profile.Email)
	}
	if err != nil {
		return nil, err
	}
	return ident, nil
}

// Authenticate verifies a session token and loads its identity.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*Identity, error) {
	claims, err := s.tokens.VerifySession(rawToken)
	if err != nil {
		return nil, token.ErrInvalidToken
	}
	ident, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, token.ErrInvalidToken
		}
		return nil, s.internal("lookup identity", err)
	}
	return ident, nil
}

// AuthURL builds the federated authorization URL for the given provider.
func (s *Service) AuthURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrFederation
	}
	return p.AuthURL(state), nil
}

func (s *Service) newSession(ident *Identity) (*Session, error) {
	raw, expiresAt, err := s.tokens.IssueSession(ident.ID, ident.Email)
	if err != nil {
		return nil, s.internal("issue session token", err)
	}
	return &Session{Token: raw, ExpiresAt: expiresAt, Identity: ident}, nil
}

// internal logs the raw cause and returns the sanitized taxonomy error;
// lower-layer details never cross the orchestrator boundary.
func (s *Service) internal(op string, err error) error {
	s.logEvent("internal failure", map[string]any{"level": "error", "op": op, "error": err.Error()})
	return ErrInternal
}

func (s *Service) logEvent(msg string, fields map[string]any) {
	entry := map[string]any{
		"ts":    s.now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"msg":   msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	s.logger.Println(string(data))
}

func randomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

type noopMetrics struct{}

func (noopMetrics) Registration()       {}
func (noopMetrics) LoginAttempt(string) {}
