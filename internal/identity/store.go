package identity

import "context"

// Store describes the persistence operations the identity core requires.
// Email uniqueness must be enforced atomically by the implementation: of
// two concurrent creates with the same email exactly one succeeds and
// the other observes ErrEmailTaken.
type Store interface {
	Create(ctx context.Context, ident *Identity) error
	FindByID(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) (*Identity, error)
}
