package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-library-api/internal/database"
	"github.com/iliyamo/movie-library-api/internal/middleware"
	"github.com/iliyamo/movie-library-api/internal/model"
	"github.com/iliyamo/movie-library-api/internal/queue"
	"github.com/iliyamo/movie-library-api/internal/utils"
)

const testSecret = "handler-test-secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.LibraryEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.LibraryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingCache struct{ invalidated []string }

func (c *recordingCache) Invalidate(_ context.Context, email string) error {
	c.invalidated = append(c.invalidated, email)
	return nil
}

type testServer struct {
	e      *echo.Echo
	db     *sql.DB
	mock   sqlmock.Sqlmock
	tokens *utils.TokenCodec
	events *recordingPublisher
	cache  *recordingCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := &testServer{
		db:     db,
		mock:   mock,
		tokens: utils.NewTokenCodec(testSecret, time.Hour),
		events: &recordingPublisher{},
		cache:  &recordingCache{},
	}
	auth := NewAuthHandler(utils.NewHasher(bcrypt.MinCost), s.tokens, s.events)
	lib := NewLibraryHandler(s.events, s.cache)
	gate := middleware.JWTAuth(s.tokens, nil)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.Use(middleware.DBLease(db, middleware.LeaseOptions{
		Session:        database.Session{SQLMode: "TRADITIONAL", TimeZone: "-08:00"},
		AcquireTimeout: time.Second,
	}))
	e.GET("/healthz", Health)
	e.POST("/register", auth.Register)
	e.POST("/log-in", auth.Login)
	e.GET("/me", auth.Me, gate)
	e.GET("/user-library", lib.List, gate)
	e.PUT("/save", lib.Save, gate)
	e.DELETE("/delete-movie/:imdbID", lib.Delete, gate)
	s.e = e
	return s
}

func (s *testServer) expectSession() {
	s.mock.ExpectExec(regexp.QuoteMeta("SET SESSION sql_mode = 'TRADITIONAL'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectExec(regexp.QuoteMeta("SET time_zone = '-08:00'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T, uid uint64, email string) string {
	t.Helper()
	tok, _, err := s.tokens.Issue(utils.Claims{UserID: uid, Email: email, Role: utils.DefaultRole})
	require.NoError(t, err)
	return tok
}

func envelopeOf(t *testing.T, rec *httptest.ResponseRecorder) model.Envelope {
	t.Helper()
	var env model.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func stringOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s), rec.Body.String())
	return s
}

// bcryptDigest matches a bcrypt digest argument and remembers it.
type bcryptDigest struct{ got *string }

func (a bcryptDigest) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "$2") {
		return false
	}
	*a.got = s
	return true
}

var userColumns = []string{"id", "email", "fname", "lname", "password", "created_at"}
