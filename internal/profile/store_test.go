package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KeremAR/Microservice/pkg/apperr"
	"github.com/KeremAR/Microservice/pkg/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{
	"id", "identity_id", "email", "name", "surname", "role",
	"phone_number", "is_active", "department_id", "provider", "created_at", "updated_at",
}

func strPtr(s string) *string { return &s }
func intPtr(n int64) *int64   { return &n }

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock, time.Second)
}

func TestFindOne_ByIdentityID(t *testing.T) {
	mock, store := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE identity_id = \$1`).
		WithArgs("idp-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"local-1", "idp-1", "a@b.org", "Ada", "Lovelace", "staff",
			strPtr("+905551112233"), true, intPtr(7), strPtr("password"), now, now,
		))

	p, err := store.FindOne(context.Background(), Filter{IdentityID: "idp-1", ID: "ignored"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "local-1", p.ID)
	assert.Equal(t, models.RoleStaff, p.Role)
	assert.Equal(t, "+905551112233", *p.PhoneNumber)
	assert.Equal(t, int64(7), *p.DepartmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOne_ByIDAndEmail(t *testing.T) {
	mock, store := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("local-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"local-1", "idp-1", "a@b.org", "", "", "",
			(*string)(nil), true, (*int64)(nil), (*string)(nil), now, now,
		))
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("a@b.org").
		WillReturnRows(pgxmock.NewRows(cols))

	p, err := store.FindOne(context.Background(), Filter{ID: "local-1"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, models.Role(""), p.Role, "store reports the raw role")
	assert.Nil(t, p.PhoneNumber)

	p, err = store.FindOne(context.Background(), Filter{Email: "a@b.org"})
	require.NoError(t, err)
	assert.Nil(t, p, "no rows is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOne_EmptyFilter(t *testing.T) {
	_, store := newMock(t)
	_, err := store.FindOne(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrEmptyFilter)
}

func TestFindOne_StoreError(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectQuery(`SELECT`).WithArgs("idp-1").WillReturnError(errors.New("connection reset"))

	p, err := store.FindOne(context.Background(), Filter{IdentityID: "idp-1"})
	assert.Nil(t, p)
	assert.Error(t, err)
}

func TestInsert_ReturnsStoredRow(t *testing.T) {
	mock, store := newMock(t)
	now := time.Now()

	in := &models.Profile{
		ID: "local-1", IdentityID: "idp-1", Email: "a@b.org",
		Name: "a", Role: models.RoleUser, IsActive: true, Provider: strPtr("password"),
	}
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"local-1", "idp-1", "a@b.org", "a", "", "user",
			(*string)(nil), true, (*int64)(nil), strPtr("password"), now, now,
		))

	out, err := store.Insert(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "local-1", out.ID)
	assert.Equal(t, now, out.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_UniqueViolation(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := store.Insert(context.Background(), &models.Profile{ID: "x", Email: "a@b.org"})
	assert.ErrorIs(t, err, apperr.ErrProfileEmailExists)
}

func TestInsert_OtherError(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("pool closed"))

	_, err := store.Insert(context.Background(), &models.Profile{ID: "x"})
	require.Error(t, err)
	assert.False(t, apperr.IsAlreadyExists(err))
}

func TestPing(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectPing()
	assert.NoError(t, store.Ping(context.Background()))
}
