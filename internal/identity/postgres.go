package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"signon.org/internal/ids"
)

// uniqueViolation is the SQLSTATE raised by the identities email
// uniqueness constraint.
const uniqueViolation = "23505"

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, ident *Identity) error {
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx,
		`insert into identities(id, email, password_hash, first_name, last_name, picture)
		 values($1,$2,$3,$4,$5,$6)
		 returning created_at, updated_at`,
		ident.ID, ident.Email, ident.PasswordHash, ident.FirstName, ident.LastName, ident.Picture,
	).Scan(&ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`select id, email, password_hash, first_name, last_name, picture, created_at, updated_at
		 from identities where id=$1`, id,
	))
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`select id, email, password_hash, first_name, last_name, picture, created_at, updated_at
		 from identities where email=$1`, email,
	))
}

func (s *PGStore) UpdatePassword(ctx context.Context, id, passwordHash string) (*Identity, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`update identities set password_hash=$2, updated_at=now()
		 where id=$1
		 returning id, email, password_hash, first_name, last_name, picture, created_at, updated_at`,
		id, passwordHash,
	))
}

func (s *PGStore) scanOne(row *sql.Row) (*Identity, error) {
	var ident Identity
	err := row.Scan(
		&ident.ID, &ident.Email, &ident.PasswordHash,
		&ident.FirstName, &ident.LastName, &ident.Picture,
		&ident.CreatedAt, &ident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ident, nil
}
