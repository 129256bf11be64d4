package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-library-api/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestUserRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, fname, lname, password) VALUES (?,?,?,?)")).
		WithArgs("a@b.com", "Ada", "Byron", "digest").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := NewUserRepo(db).Create(context.Background(), "  A@B.com ", "Ada", "Byron", "digest")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := NewUserRepo(db).Create(context.Background(), "a@b.com", "", "", "digest")
	require.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_CreateOtherError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("db down"))

	_, err := NewUserRepo(db).Create(context.Background(), "a@b.com", "", "", "digest")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id,email,fname,lname,password,created_at FROM users WHERE email=?")).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "fname", "lname", "password", "created_at"}).
			AddRow(7, "a@b.com", "Ada", "Byron", "digest", now))

	u, err := NewUserRepo(db).GetByEmail(context.Background(), "A@b.com")
	require.NoError(t, err)
	assert.Equal(t, model.User{ID: 7, Email: "a@b.com", FirstName: "Ada", LastName: "Byron", Password: "digest", CreatedAt: now}, u)
}

func TestUserRepo_GetByEmailMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id,email").WithArgs("nobody@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "fname", "lname", "password", "created_at"}))

	_, err := NewUserRepo(db).GetByEmail(context.Background(), "nobody@b.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLibraryRepo_ListByEmail(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_library WHERE email=?")).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "imdb_id", "title", "poster", "created_at"}).
			AddRow(2, "a@b.com", "tt0111161", "The Shawshank Redemption", "p1.jpg", now).
			AddRow(1, "a@b.com", "tt0068646", "The Godfather", "", now))

	items, err := NewLibraryRepo(db).ListByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "tt0111161", items[0].ImdbID)
	assert.Equal(t, "The Godfather", items[1].Title)
}

func TestLibraryRepo_ListEmptyIsNotNil(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM user_library").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "imdb_id", "title", "poster", "created_at"}))

	items, err := NewLibraryRepo(db).ListByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestLibraryRepo_SaveConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_library (email, imdb_id, title, poster) VALUES (?,?,?,?)")).
		WithArgs("a@b.com", "tt1", "T", "").
		WillReturnError(&mysql.MySQLError{Number: 1062})

	_, err := NewLibraryRepo(db).Save(context.Background(), model.LibraryItem{Email: "a@b.com", ImdbID: "tt1", Title: "T"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestLibraryRepo_Delete(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_library WHERE imdb_id=? AND email=?")).
		WithArgs("tt1", "a@b.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM user_library").
		WithArgs("tt2", "a@b.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewLibraryRepo(db)
	require.NoError(t, repo.Delete(context.Background(), "a@b.com", "tt1"))
	require.ErrorIs(t, repo.Delete(context.Background(), "a@b.com", "tt2"), ErrNotFound)
}
