package identity

import "time"

// Identity represents a registered account, local or federated.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Picture      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewIdentity carries the caller-supplied fields for a registration.
type NewIdentity struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Picture   string
}

// Session is the result of a successful login: a signed bearer token
// bound to the identity it was issued for.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  *Identity
}

// ResetRequest carries a freshly issued password reset token. Delivering
// it to the user out-of-band is the caller's concern.
type ResetRequest struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// TopicRegistered is the outbound channel for registration events.
const TopicRegistered = "identity_registered"

// RegisteredEvent is the payload published once per successful
// registration.
type RegisteredEvent struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
