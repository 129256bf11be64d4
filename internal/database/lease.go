// Package database owns the MySQL connection pool and the per-request
// connection lease handed to handlers.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrPoolExhausted is returned when no connection could be checked out
	// before the acquire deadline.
	ErrPoolExhausted = errors.New("database: connection pool exhausted")
	// ErrLeaseReleased is returned by every method of a released lease.
	ErrLeaseReleased = errors.New("database: lease already released")
)

// Pool hands out exclusive connections. *sql.DB satisfies it.
type Pool interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Querier is the query surface repositories need. *sql.DB, *sql.Conn and
// *Lease all satisfy it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session holds the statements run on every freshly leased connection.
type Session struct {
	SQLMode  string // e.g. TRADITIONAL
	TimeZone string // e.g. -08:00
}

var (
	sqlModePattern  = regexp.MustCompile(`^[A-Z_]+(,[A-Z_]+)*$`)
	timeZonePattern = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)
)

// Validate rejects settings that cannot be written into a SET statement:
// sql_mode must be a comma-separated list of upper-case mode names and
// time_zone an offset of the form ±HH:MM.
func (s Session) Validate() error {
	if s.SQLMode != "" && !sqlModePattern.MatchString(s.SQLMode) {
		return fmt.Errorf("invalid sql_mode %q", s.SQLMode)
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the zone in which the server renders DATETIME values for a
// connection configured with s.  It must be handed to the driver as its Loc
// so values read back carry the right offset.  An empty TimeZone is UTC.
func (s Session) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	m := timeZonePattern.FindStringSubmatch(s.TimeZone)
	if m == nil {
		return nil, fmt.Errorf("invalid time_zone %q: want ±HH:MM", s.TimeZone)
	}
	hh, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	if hh > 14 || mm > 59 {
		return nil, fmt.Errorf("invalid time_zone %q: offset out of range", s.TimeZone)
	}
	offset := hh*3600 + mm*60
	if m[1] == "-" {
		offset = -offset
	}
	if offset == 0 {
		return time.UTC, nil
	}
	return time.FixedZone(s.TimeZone, offset), nil
}

// Statements returns the SET statements for s, skipping empty settings.
func (s Session) Statements() []string {
	var out []string
	if s.SQLMode != "" {
		out = append(out, fmt.Sprintf("SET SESSION sql_mode = '%s'", s.SQLMode))
	}
	if s.TimeZone != "" {
		out = append(out, fmt.Sprintf("SET time_zone = '%s'", s.TimeZone))
	}
	return out
}

// Lease is one pooled connection owned by a single request. Release returns
// it to the pool exactly once; later calls are no-ops.
type Lease struct {
	conn       *sql.Conn
	configured bool

	once     sync.Once
	mu       sync.RWMutex
	released bool
	err      error
}

// Acquire checks out a connection from pool, waiting at most timeout, and
// applies the session settings. On any failure nothing stays checked out.
func Acquire(ctx context.Context, pool Pool, timeout time.Duration, s Session) (*Lease, error) {
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := pool.Conn(actx)
	if err != nil {
		// the request was cancelled, the pool is not exhausted
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("acquire connection: %w", cerr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, err)
	}
	l := &Lease{conn: conn}
	if err := l.configure(ctx, s); err != nil {
		_ = l.Release()
		return nil, err
	}
	return l, nil
}

func (l *Lease) configure(ctx context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("configure session: %w", err)
	}
	for _, stmt := range s.Statements() {
		if _, err := l.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("configure session (%s): %w", stmt, err)
		}
	}
	l.configured = true
	return nil
}

// Configured reports whether the session settings were applied.
func (l *Lease) Configured() bool { return l.configured }

// Released reports whether the connection has gone back to the pool.
func (l *Lease) Released() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.released
}

// Release hands the connection back to the pool. It waits for in-flight
// calls on the lease to finish.
func (l *Lease) Release() error {
	l.once.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released = true
		l.err = l.conn.Close()
	})
	return l.err
}

func (l *Lease) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.released {
		return nil, ErrLeaseReleased
	}
	return l.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the leased connection. The returned rows keep
// the connection busy until closed, so callers must close them before the
// request ends.
func (l *Lease) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.released {
		return nil, ErrLeaseReleased
	}
	return l.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query. On a released lease the row's
// Scan reports sql.ErrConnDone.
func (l *Lease) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conn.QueryRowContext(ctx, query, args...)
}

func (l *Lease) PingContext(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.released {
		return ErrLeaseReleased
	}
	return l.conn.PingContext(ctx)
}

type leaseKey struct{}

// WithLease attaches l to ctx.
func WithLease(ctx context.Context, l *Lease) context.Context {
	return context.WithValue(ctx, leaseKey{}, l)
}

// FromContext returns the lease attached by WithLease.
func FromContext(ctx context.Context) (*Lease, bool) {
	l, ok := ctx.Value(leaseKey{}).(*Lease)
	return l, ok && l != nil
}
