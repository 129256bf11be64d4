package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-library-api/internal/logging"
	"github.com/iliyamo/movie-library-api/internal/model"
	"github.com/iliyamo/movie-library-api/internal/queue"
	"github.com/iliyamo/movie-library-api/internal/repository"
)

// CacheInvalidator drops cached responses for a user.  *middleware.UserCache
// implements it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, email string) error
}

// LibraryHandler serves the per-user movie library.  Every route requires
// JWTAuth.
type LibraryHandler struct {
	Events EventPublisher
	Cache  CacheInvalidator
}

func NewLibraryHandler(ev EventPublisher, cache CacheInvalidator) *LibraryHandler {
	return &LibraryHandler{Events: ev, Cache: cache}
}

type saveReq struct {
	ImdbID string `json:"imdbID"`
	Title  string `json:"title"`
	Poster string `json:"poster"`
}

// List returns the caller's saved movies.
func (h *LibraryHandler) List(c echo.Context) error {
	cl, err := identity(c)
	if err != nil {
		return err
	}
	db, err := lease(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	movies, err := repository.NewLibraryRepo(db).ListByEmail(ctx, cl.Email)
	if err != nil {
		logging.FromContext(ctx).Error("Error in /user-library", "err", err)
		return c.JSON(http.StatusInternalServerError, model.Fail("Error fetching movies"))
	}
	return c.JSON(http.StatusOK, model.OK(movies, "Fetched movies"))
}

// Save adds a movie to the caller's library.  Responses are bare JSON strings.
func (h *LibraryHandler) Save(c echo.Context) error {
	cl, err := identity(c)
	if err != nil {
		return err
	}
	var req saveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, "Error sending movie")
	}
	req.ImdbID = strings.TrimSpace(req.ImdbID)
	req.Title = strings.TrimSpace(req.Title)
	if req.ImdbID == "" || req.Title == "" {
		return c.JSON(http.StatusBadRequest, "Error sending movie")
	}
	db, err := lease(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	_, err = repository.NewLibraryRepo(db).Save(ctx, model.LibraryItem{
		Email:  cl.Email,
		ImdbID: req.ImdbID,
		Title:  req.Title,
		Poster: strings.TrimSpace(req.Poster),
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, "Movie already saved")
		}
		logging.FromContext(ctx).Error("Error in /save", "err", err)
		return c.JSON(http.StatusInternalServerError, "Error sending movie")
	}

	h.changed(ctx, queue.LibraryEvent{
		Type:   queue.EventItemSaved,
		UserID: cl.UserID,
		Email:  cl.Email,
		ImdbID: req.ImdbID,
		Title:  req.Title,
	})
	return c.JSON(http.StatusOK, "/movie save success!")
}

// Delete removes a movie from the caller's library.
func (h *LibraryHandler) Delete(c echo.Context) error {
	cl, err := identity(c)
	if err != nil {
		return err
	}
	imdbID := strings.TrimSpace(c.Param("imdbID"))
	if imdbID == "" {
		return c.JSON(http.StatusBadRequest, "Error deleting movie")
	}
	db, err := lease(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if err := repository.NewLibraryRepo(db).Delete(ctx, cl.Email, imdbID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, "Movie not found")
		}
		logging.FromContext(ctx).Error("Error in /delete", "err", err)
		return c.JSON(http.StatusInternalServerError, "Error deleting movie")
	}

	h.changed(ctx, queue.LibraryEvent{Type: queue.EventItemDeleted, UserID: cl.UserID, Email: cl.Email, ImdbID: imdbID})
	return c.JSON(http.StatusOK, "/deleted success!")
}

// changed drops the caller's cached library and announces the change.
func (h *LibraryHandler) changed(ctx context.Context, ev queue.LibraryEvent) {
	if h.Cache != nil {
		if err := h.Cache.Invalidate(ctx, ev.Email); err != nil {
			logging.FromContext(ctx).Warn("cache invalidate failed", "err", err)
		}
	}
	publish(ctx, h.Events, ev)
}
