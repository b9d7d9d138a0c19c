package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

type tasksResponse struct {
	Filter     models.Filter `json:"filter"`
	Tasks      []models.Task `json:"tasks"`
	LoadFailed bool          `json:"loadFailed"`
}

func (s *Server) handleSignIn(c echo.Context) error {
	var req struct {
		User string `json:"user"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	as := s.session(c)
	session, err := as.provider.SignIn(c.Request().Context(), req.User)
	if err != nil {
		as.notifier.Error("Sign-in failed")
		return writeError(c, err)
	}
	as.notifier.Info("Signed in")
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleSignOut(c echo.Context) error {
	as := s.session(c)
	if err := as.provider.SignOut(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	as.notifier.Info("Signed out")
	return c.JSON(http.StatusOK, as.provider.Current())
}

func (s *Server) handleSession(c echo.Context) error {
	as := s.session(c)
	return c.JSON(http.StatusOK, as.provider.Current())
}

// handleTasks renders the current filtered view. A filter query
// parameter, when present, becomes the new selection.
func (s *Server) handleTasks(c echo.Context) error {
	as := s.session(c)
	if raw := c.QueryParam("filter"); raw != "" {
		filter, ok := models.ParseFilter(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown filter: " + raw})
		}
		as.syncer.SetFilter(filter)
	}
	filter := as.syncer.Filter()
	return c.JSON(http.StatusOK, tasksResponse{
		Filter:     filter,
		Tasks:      as.syncer.View(filter),
		LoadFailed: as.syncer.LoadFailed(),
	})
}

// Mutations answer 202: the store write succeeded, and the mirror
// catches up when the subscription redelivers.
func (s *Server) handleCreateTask(c echo.Context) error {
	var draft models.Draft
	if err := c.Bind(&draft); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	as := s.session(c)
	if err := as.syncer.Create(c.Request().Context(), draft); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	var patch models.Patch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	as := s.session(c)
	if err := as.syncer.Update(c.Request().Context(), c.Param("id"), patch); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleCompleteTask(c echo.Context) error {
	var req struct {
		Completed *bool `json:"completed"`
	}
	if err := c.Bind(&req); err != nil || req.Completed == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "completed is required"})
	}
	as := s.session(c)
	if err := as.syncer.ToggleComplete(c.Request().Context(), c.Param("id"), *req.Completed); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	as := s.session(c)
	if err := as.syncer.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleBeginEdit(c echo.Context) error {
	as := s.session(c)
	task, err := as.syncer.BeginEdit(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleEditing(c echo.Context) error {
	as := s.session(c)
	task, ok := as.syncer.Editing()
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"editing": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{"editing": task})
}

func (s *Server) handleSubmitEdit(c echo.Context) error {
	var patch models.Patch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	as := s.session(c)
	if err := as.syncer.SubmitEdit(c.Request().Context(), patch); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleCancelEdit(c echo.Context) error {
	as := s.session(c)
	as.syncer.CancelEdit()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleNotice(c echo.Context) error {
	as := s.session(c)
	notice, ok := as.notifier.Current()
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"notice": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{"notice": notice})
}

// handleReload rebinds the current session, retrying the initial load
// after a subscription failure.
func (s *Server) handleReload(c echo.Context) error {
	as := s.session(c)
	if err := as.syncer.Bind(context.Background(), as.provider.Current()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleEvents streams change signals over Server-Sent Events. Events
// carry no payload; clients pull the state they care about after each
// one. The first event fires immediately so a fresh client renders.
func (s *Server) handleEvents(c echo.Context) error {
	as := s.session(c)
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	changes, stopChanges := as.syncer.Watch()
	defer stopChanges()
	notices, stopNotices := as.notifier.Watch()
	defer stopNotices()

	if err := writeEvent(res, "change"); err != nil {
		return err
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if err := writeEvent(res, "change"); err != nil {
				return err
			}
		case <-notices:
			if err := writeEvent(res, "notice"); err != nil {
				return err
			}
		}
	}
}

func writeEvent(res *echo.Response, event string) error {
	if _, err := fmt.Fprintf(res, "event: %s\ndata: {}\n\n", event); err != nil {
		return err
	}
	res.Flush()
	return nil
}

// writeError maps the error taxonomy onto HTTP statuses: sign-in
// problems to 401, bad input to 400, store failures to 502.
func writeError(c echo.Context, err error) error {
	return c.JSON(httpStatus(err), map[string]string{"error": err.Error()})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case apperr.IsAuth(err):
		return http.StatusUnauthorized
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case apperr.IsRemote(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
