// Package web exposes the task application over HTTP. Each browser
// session gets its own identity provider, notifier and syncer, keyed by
// an opaque cookie; the JSON API and the event stream are thin views
// over that trio.
package web

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskdeck/internal/identity"
	"taskdeck/internal/models"
	"taskdeck/internal/notify"
	"taskdeck/internal/store"
	"taskdeck/internal/tasksync"
)

const sessionCookie = "taskdeck_session"

// Server owns the per-browser application sessions and serves the API.
type Server struct {
	store     store.Store
	dir       *identity.Directory
	noticeTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*appSession
}

// appSession is one browser's slice of the application: its sign-in
// state, its notification slot and its task mirror.
type appSession struct {
	token    string
	provider *identity.Provider
	notifier *notify.Notifier
	syncer   *tasksync.Syncer
}

// NewServer returns a Server backed by st, admitting the users dir
// knows about. noticeTTL is how long a notification stays visible.
func NewServer(st store.Store, dir *identity.Directory, noticeTTL time.Duration) *Server {
	return &Server{
		store:     st,
		dir:       dir,
		noticeTTL: noticeTTL,
		sessions:  make(map[string]*appSession),
	}
}

// Register mounts all routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.handleHealth)

	api := e.Group("/api")
	api.POST("/signin", s.handleSignIn)
	api.POST("/signout", s.handleSignOut)
	api.GET("/session", s.handleSession)

	api.GET("/tasks", s.handleTasks)
	api.POST("/tasks", s.handleCreateTask)
	api.PATCH("/tasks/:id", s.handleUpdateTask)
	api.POST("/tasks/:id/complete", s.handleCompleteTask)
	api.DELETE("/tasks/:id", s.handleDeleteTask)

	api.POST("/tasks/:id/edit", s.handleBeginEdit)
	api.GET("/edit", s.handleEditing)
	api.PUT("/edit", s.handleSubmitEdit)
	api.DELETE("/edit", s.handleCancelEdit)

	api.GET("/notice", s.handleNotice)
	api.POST("/reload", s.handleReload)
	api.GET("/events", s.handleEvents)
}

// Close unbinds every session, cancelling their subscriptions. The
// server must not serve requests afterwards.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := make([]*appSession, 0, len(s.sessions))
	for _, as := range s.sessions {
		sessions = append(sessions, as)
	}
	s.sessions = make(map[string]*appSession)
	s.mu.Unlock()
	for _, as := range sessions {
		if err := as.syncer.Bind(context.Background(), models.Session{}); err != nil {
			log.Printf("Failed to unbind session: %v", err)
		}
	}
}

// session returns the request's application session, creating one (and
// setting the cookie) on first contact. A cookie the server no longer
// knows, say after a restart, is adopted as-is so the browser keeps its
// token.
func (s *Server) session(c echo.Context) *appSession {
	token := ""
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			token = cookie.Value
		}
	}

	s.mu.Lock()
	if token != "" {
		if as, ok := s.sessions[token]; ok {
			s.mu.Unlock()
			return as
		}
	}
	if token == "" {
		token = uuid.New().String()
	}
	as := s.newAppSession(token)
	s.sessions[token] = as
	s.mu.Unlock()

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	return as
}

// newAppSession wires a provider, notifier and syncer together. The
// provider drives the syncer: every identity change rebinds it, the
// initial signed-out state included.
func (s *Server) newAppSession(token string) *appSession {
	as := &appSession{
		token:    token,
		provider: identity.NewProvider(s.dir),
		notifier: notify.New(s.noticeTTL),
	}
	as.syncer = tasksync.New(s.store, as.notifier)
	as.provider.OnChange(func(session models.Session) {
		// The subscription must outlive the request that triggered the
		// change, hence the background context.
		if err := as.syncer.Bind(context.Background(), session); err != nil {
			log.Printf("Failed to bind session: %v", err)
		}
	})
	return as
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
