package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var traditional = Session{SQLMode: "TRADITIONAL", TimeZone: "-08:00"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectSession(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("SET SESSION sql_mode = 'TRADITIONAL'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET time_zone = '-08:00'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

type failingPool struct {
	err   error
	calls int
}

func (p *failingPool) Conn(context.Context) (*sql.Conn, error) {
	p.calls++
	return nil, p.err
}

func TestSessionStatements(t *testing.T) {
	assert.Equal(t, []string{
		"SET SESSION sql_mode = 'TRADITIONAL'",
		"SET time_zone = '-08:00'",
	}, traditional.Statements())
	assert.Empty(t, Session{}.Statements())
}

func TestAcquire_ConfiguresAndReleasesOnce(t *testing.T) {
	db, mock := newMockDB(t)
	expectSession(mock)

	lease, err := Acquire(context.Background(), db, time.Second, traditional)
	require.NoError(t, err)
	assert.True(t, lease.Configured())
	assert.Equal(t, 1, db.Stats().InUse)

	require.NoError(t, lease.Release())
	require.NoError(t, lease.Release())
	assert.True(t, lease.Released())
	assert.Equal(t, 0, db.Stats().InUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLease_UseAfterRelease(t *testing.T) {
	db, mock := newMockDB(t)
	expectSession(mock)

	lease, err := Acquire(context.Background(), db, time.Second, traditional)
	require.NoError(t, err)
	require.NoError(t, lease.Release())

	_, err = lease.ExecContext(context.Background(), "DELETE FROM users")
	require.ErrorIs(t, err, ErrLeaseReleased)
	_, err = lease.QueryContext(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, ErrLeaseReleased)
	require.ErrorIs(t, lease.PingContext(context.Background()), ErrLeaseReleased)

	var n int
	err = lease.QueryRowContext(context.Background(), "SELECT 1").Scan(&n)
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestAcquire_SessionFailureReleases(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("SET SESSION sql_mode")).
		WillReturnError(errors.New("unknown sql_mode"))

	lease, err := Acquire(context.Background(), db, time.Second, traditional)
	require.Error(t, err)
	assert.Nil(t, lease)
	assert.NotErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestAcquire_PoolError(t *testing.T) {
	pool := &failingPool{err: errors.New("too many connections")}

	lease, err := Acquire(context.Background(), pool, time.Second, traditional)
	require.ErrorIs(t, err, ErrPoolExhausted)
	assert.Nil(t, lease)
	assert.Equal(t, 1, pool.calls)
}

func TestAcquire_FailsFastWhenPoolIsFull(t *testing.T) {
	db, _ := newMockDB(t)
	db.SetMaxOpenConns(1)

	held, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	start := time.Now()
	lease, err := Acquire(context.Background(), db, 30*time.Millisecond, Session{})
	require.ErrorIs(t, err, ErrPoolExhausted)
	assert.Nil(t, lease)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, db.Stats().InUse)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	l := &Lease{}
	got, ok := FromContext(WithLease(context.Background(), l))
	require.True(t, ok)
	assert.Same(t, l, got)
}

func TestSession_Location(t *testing.T) {
	tests := []struct {
		zone   string
		offset int
	}{
		{"", 0},
		{"+00:00", 0},
		{"-08:00", -8 * 3600},
		{"+05:30", 5*3600 + 30*60},
	}
	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			loc, err := Session{TimeZone: tt.zone}.Location()
			require.NoError(t, err)
			_, offset := time.Now().In(loc).Zone()
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestSession_ValidateRejectsUnsafeValues(t *testing.T) {
	require.NoError(t, traditional.Validate())
	require.NoError(t, Session{SQLMode: "STRICT_TRANS_TABLES,NO_ZERO_DATE"}.Validate())

	for _, s := range []Session{
		{SQLMode: "TRADITIONAL'; DROP TABLE users; --"},
		{SQLMode: "traditional"},
		{TimeZone: "-8:00"},
		{TimeZone: "America/Los_Angeles"},
		{TimeZone: "+00:00'"},
		{TimeZone: "+15:00"},
	} {
		assert.Error(t, s.Validate(), "%+v", s)
	}
}

func TestAcquire_UnsafeSessionNeverReachesServer(t *testing.T) {
	db, mock := newMockDB(t)

	lease, err := Acquire(context.Background(), db, time.Second, Session{TimeZone: "x'; DROP TABLE users; --"})
	require.Error(t, err)
	assert.Nil(t, lease)
	assert.Equal(t, 0, db.Stats().InUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquire_CancelledRequestIsNotExhaustion(t *testing.T) {
	db, _ := newMockDB(t)
	db.SetMaxOpenConns(1)
	held, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lease, err := Acquire(ctx, db, time.Second, traditional)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPoolExhausted)
	assert.Nil(t, lease)
}
