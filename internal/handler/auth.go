package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-library-api/internal/apperr"
	"github.com/iliyamo/movie-library-api/internal/logging"
	"github.com/iliyamo/movie-library-api/internal/model"
	"github.com/iliyamo/movie-library-api/internal/queue"
	"github.com/iliyamo/movie-library-api/internal/repository"
	"github.com/iliyamo/movie-library-api/internal/utils"
)

// EventPublisher emits domain events.  *service.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.LibraryEvent) error
}

// AuthHandler bundles dependencies for the credential endpoints.
type AuthHandler struct {
	Hasher utils.Hasher
	Tokens *utils.TokenCodec
	Events EventPublisher
}

func NewAuthHandler(h utils.Hasher, t *utils.TokenCodec, ev EventPublisher) *AuthHandler {
	return &AuthHandler{Hasher: h, Tokens: t, Events: ev}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Password  string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register: hash the password, create the user and return a token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, model.Fail("Invalid request body"))
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, model.Fail("Email and password are required"))
	}
	db, err := lease(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	digest, err := h.Hasher.Hash(req.Password)
	if err != nil {
		if utils.IsTooLong(err) {
			return c.JSON(http.StatusBadRequest, model.Fail("Password is too long"))
		}
		return apperr.New(apperr.HashingFailure, "Error, please try again", err)
	}

	fname, lname := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	uid, err := repository.NewUserRepo(db).Create(ctx, req.Email, fname, lname, digest)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, model.Fail("Error creating user"))
		}
		return apperr.New(apperr.QueryFailure, "Error, please try again", err)
	}

	token, _, err := h.Tokens.Issue(utils.Claims{
		UserID:    uid,
		Email:     req.Email,
		FirstName: fname,
		LastName:  lname,
		Role:      utils.DefaultRole,
	})
	if err != nil {
		return apperr.New(apperr.Internal, "Error, please try again", err)
	}

	h.publish(ctx, queue.LibraryEvent{Type: queue.EventUserRegistered, UserID: uid, Email: req.Email})
	return c.JSON(http.StatusOK, model.OK(token, ""))
}

// Login: look the user up by email, check the password and return a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, model.Fail("Invalid request body"))
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, model.Fail("Email and password are required"))
	}
	db, err := lease(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	u, err := repository.NewUserRepo(db).GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, model.Fail("Email not found"))
		}
		return apperr.New(apperr.QueryFailure, "Error logging in", err)
	}
	if !h.Hasher.Verify(req.Password, u.Password) {
		logging.FromContext(ctx).Info("log-in rejected", "kind", string(apperr.CredentialMismatch), "user_id", u.ID)
		return c.JSON(http.StatusUnauthorized, model.Fail("Password not found"))
	}

	token, _, err := h.Tokens.Issue(utils.Claims{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      utils.DefaultRole,
	})
	if err != nil {
		return apperr.New(apperr.Internal, "Error logging in", err)
	}
	return c.JSON(http.StatusOK, model.OK(token, ""))
}

// Me returns the identity decoded from the bearer token.
func (h *AuthHandler) Me(c echo.Context) error {
	cl, err := identity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model.OK(echo.Map{
		"userId": cl.UserID,
		"email":  cl.Email,
		"fname":  cl.FirstName,
		"lname":  cl.LastName,
		"role":   cl.Role,
		"exp":    cl.ExpiresAt,
	}, ""))
}

func (h *AuthHandler) publish(ctx context.Context, ev queue.LibraryEvent) {
	publish(ctx, h.Events, ev)
}

func publish(ctx context.Context, p EventPublisher, ev queue.LibraryEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("publish event failed", "type", ev.Type, "err", err)
	}
}
