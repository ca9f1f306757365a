package identity

import "errors"

var (
	ErrNotFound           = errors.New("identity: not found")
	ErrEmailTaken         = errors.New("identity: email already in use")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrInvalidInput       = errors.New("identity: invalid input")
	ErrFederation         = errors.New("identity: federated authentication failed")
	ErrEventDelivery      = errors.New("identity: event delivery failed")
	ErrInternal           = errors.New("identity: internal failure")
)
