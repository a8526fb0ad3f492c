// Package profile is the profile store: row-level access to the users
// relation over a pgx pool.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KeremAR/Microservice/pkg/apperr"
	"github.com/KeremAR/Microservice/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// ErrEmptyFilter is returned when FindOne is called without any criteria.
var ErrEmptyFilter = errors.New("profile filter has no criteria")

// Filter selects a single profile. The first non-empty field wins, in
// field order.
type Filter struct {
	IdentityID string
	ID         string
	Email      string
}

func (f Filter) clause() (string, string, bool) {
	switch {
	case f.IdentityID != "":
		return "identity_id", f.IdentityID, true
	case f.ID != "":
		return "id", f.ID, true
	case f.Email != "":
		return "email", f.Email, true
	default:
		return "", "", false
	}
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store reads and writes profile rows. Every call is bounded by timeout.
type Store struct {
	db      DB
	timeout time.Duration
}

func NewStore(db DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

const columns = `id, identity_id, email, name, surname, role, phone_number, is_active, department_id, provider, created_at, updated_at`

// FindOne returns the matching profile, or (nil, nil) when none exists.
func (s *Store) FindOne(ctx context.Context, f Filter) (*models.Profile, error) {
	col, val, ok := f.clause()
	if !ok {
		return nil, ErrEmptyFilter
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRow(ctx, "SELECT "+columns+" FROM users WHERE "+col+" = $1", val)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding profile by %s: %w", col, err)
	}
	return p, nil
}

// Insert creates p and returns the stored row. A unique violation on email
// or identity id is reported as apperr.ErrProfileEmailExists.
func (s *Store) Insert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRow(ctx,
		`INSERT INTO users (id, identity_id, email, name, surname, role, phone_number, is_active, department_id, provider)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+columns,
		p.ID, p.IdentityID, p.Email, p.Name, p.Surname, string(p.Role),
		p.PhoneNumber, p.IsActive, p.DepartmentID, p.Provider,
	)
	stored, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperr.ErrProfileEmailExists.WithDetails(map[string]any{"constraint": pgErr.ConstraintName})
		}
		return nil, fmt.Errorf("inserting profile: %w", err)
	}
	return stored, nil
}

// Ping checks store reachability for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.Ping(ctx)
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	var role string
	err := row.Scan(
		&p.ID, &p.IdentityID, &p.Email, &p.Name, &p.Surname, &role,
		&p.PhoneNumber, &p.IsActive, &p.DepartmentID, &p.Provider,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Stored as-is: the empty-role policy belongs to the reconciler.
	p.Role = models.Role(role)
	return &p, nil
}
