// Package federation mediates third-party login: it completes the
// authorization-code exchange with an external identity provider and
// normalizes the returned account into the local profile shape.
package federation

import (
	"context"
	"errors"
)

// ErrNoEmail is returned when a provider completes the handshake but
// yields no usable email claim.
var ErrNoEmail = errors.New("federation: provider returned no email")

// Profile is the normalized shape the identity core consumes, regardless
// of which provider produced it.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
	Picture   string
}

// Provider completes an OAuth-style authorization-code flow with one
// third-party identity provider.
type Provider interface {
	// Name returns the provider identifier used in routes ("google").
	Name() string

	// AuthURL builds the provider authorization URL carrying the given
	// one-time state.
	AuthURL(state string) string

	// ResolveProfile exchanges the authorization code and fetches the
	// provider's view of the user. Any failure leaves no local state.
	ResolveProfile(ctx context.Context, code string) (Profile, error)
}

// Config is the shared provider configuration loaded from the
// environment by the process bootstrap.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}
