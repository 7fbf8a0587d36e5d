package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{
	"id", "name", "email", "phone", "password_hash", "profile_image", "address",
	"state", "city", "country", "pincode", "role", "created_at", "updated_at",
}

func userRow(rows *pgxmock.Rows, id int64, name, email string, role string) *pgxmock.Rows {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return rows.AddRow(
		id, name, email, "0123456789", "hash", (*string)(nil), (*string)(nil),
		"Lagos", "Ikeja", "Nigeria", "100001", role, now, now,
	)
}

func newMockUsersRepo(t *testing.T) (*UsersRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUsersRepo(mock, nil), mock
}

func TestUsersRepo_Create(t *testing.T) {
	repo, mock := newMockUsersRepo(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Ada Lovelace", "ada@example.com", "0123456789", "hash", (*string)(nil), (*string)(nil),
			"Lagos", "Ikeja", "Nigeria", "100001", "user").
		WillReturnRows(userRow(pgxmock.NewRows(userCols), 7, "Ada Lovelace", "ada@example.com", "user"))

	u, err := repo.Create(context.Background(), user.User{
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		Phone:        "0123456789",
		PasswordHash: "hash",
		State:        "Lagos",
		City:         "Ikeja",
		Country:      "Nigeria",
		Pincode:      "100001",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, user.RoleUser, u.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_Create_Duplicate(t *testing.T) {
	repo, mock := newMockUsersRepo(t)

	args := make([]any, 11)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), user.User{Email: "dup@example.com"})
	assert.ErrorIs(t, err, user.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockUsersRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_GetByLogin(t *testing.T) {
	repo, mock := newMockUsersRepo(t)

	mock.ExpectQuery("WHERE email = \\$1 OR phone = \\$1").
		WithArgs("0123456789").
		WillReturnRows(userRow(pgxmock.NewRows(userCols), 3, "Grace", "grace@example.com", "admin"))

	u, err := repo.GetByLogin(context.Background(), "0123456789")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, u.Role)
	assert.Nil(t, u.ProfileImage)
}

func TestUsersRepo_List_SearchAndFilter(t *testing.T) {
	repo, mock := newMockUsersRepo(t)

	rows := pgxmock.NewRows(userCols)
	userRow(rows, 2, "Bola", "bola@example.com", "user")
	userRow(rows, 1, "Ada", "ada@example.com", "user")

	mock.ExpectQuery(`WHERE \(name ILIKE \$1 OR email ILIKE \$1\) AND city = \$2 ORDER BY created_at DESC, id DESC`).
		WithArgs(`%50\%%`, "Ikeja").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), user.NewListFilter("50%", "city", "Ikeja"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_List_Empty(t *testing.T) {
	repo, mock := newMockUsersRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY").
		WillReturnRows(pgxmock.NewRows(userCols))

	got, err := repo.List(context.Background(), user.ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUsersRepo_Update(t *testing.T) {
	repo, mock := newMockUsersRepo(t)

	name := "Ada L."
	city := "Abuja"

	mock.ExpectQuery(`UPDATE users SET name = \$1, city = \$2, updated_at = NOW\(\) WHERE id = \$3 RETURNING`).
		WithArgs(name, city, int64(7)).
		WillReturnRows(userRow(pgxmock.NewRows(userCols), 7, name, "ada@example.com", "user"))

	u, err := repo.Update(context.Background(), 7, user.Patch{Name: &name, City: &city})
	require.NoError(t, err)
	assert.Equal(t, name, u.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_Update_Errors(t *testing.T) {
	repo, mock := newMockUsersRepo(t)
	email := "taken@example.com"

	mock.ExpectQuery("UPDATE users SET email").
		WithArgs(email, int64(7)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err := repo.Update(context.Background(), 7, user.Patch{Email: &email})
	assert.ErrorIs(t, err, user.ErrDuplicate)

	mock.ExpectQuery("UPDATE users SET email").
		WithArgs(email, int64(99)).
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Update(context.Background(), 99, user.Patch{Email: &email})
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_Delete(t *testing.T) {
	repo, mock := newMockUsersRepo(t)

	mock.ExpectExec("DELETE FROM users WHERE id = \\$1").
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), 7))

	mock.ExpectExec("DELETE FROM users").
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 8), user.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
}
