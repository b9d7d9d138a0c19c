// Package identity wraps the external identity provider behind a small
// adapter. Authentication itself is simulated: a sign-in handle is checked
// against an optional allow-list and mapped to a stable opaque user id.
// Credentials never enter the system.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

// Directory is the registry of users known to the simulated identity
// service. An empty allow-list accepts any non-empty handle.
type Directory struct {
	allowed map[string]struct{}
}

// NewDirectory builds a Directory from an allow-list of handles.
func NewDirectory(handles []string) *Directory {
	d := &Directory{}
	if len(handles) > 0 {
		d.allowed = make(map[string]struct{}, len(handles))
		for _, h := range handles {
			d.allowed[normalizeHandle(h)] = struct{}{}
		}
	}
	return d
}

// Resolve maps a sign-in handle to its stable opaque user id.
// Unknown or empty handles fail with an AuthError.
func (d *Directory) Resolve(handle string) (string, error) {
	handle = normalizeHandle(handle)
	if handle == "" {
		return "", &apperr.AuthError{Err: fmt.Errorf("empty user handle")}
	}
	if d.allowed != nil {
		if _, ok := d.allowed[handle]; !ok {
			return "", &apperr.AuthError{Err: fmt.Errorf("unknown user %q", handle)}
		}
	}
	// A v5 uuid of the handle keeps the id stable across sign-ins
	// without the directory storing anything.
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("taskdeck:"+handle)).String(), nil
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Provider tracks one app session's sign-in state. Listeners registered
// with OnChange hear the current state once at registration and then
// every subsequent sign-in and sign-out, in registration order.
type Provider struct {
	dir *Directory

	mu        sync.Mutex
	current   models.Session
	listeners []func(models.Session)
}

// NewProvider creates a signed-out Provider backed by dir.
func NewProvider(dir *Directory) *Provider {
	return &Provider{dir: dir}
}

// SignIn resolves handle and switches the session to signed-in.
func (p *Provider) SignIn(ctx context.Context, handle string) (models.Session, error) {
	userID, err := p.dir.Resolve(handle)
	if err != nil {
		return models.Session{}, err
	}
	sess := models.Session{UserID: userID, SignedIn: true}
	p.setCurrent(sess)
	return sess, nil
}

// SignOut switches the session to signed-out.
func (p *Provider) SignOut(ctx context.Context) error {
	p.setCurrent(models.Session{})
	return nil
}

// Current returns the session as of the last change.
func (p *Provider) Current() models.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnChange registers fn. It is invoked synchronously with the current
// session before OnChange returns, then again after every change.
func (p *Provider) OnChange(fn func(models.Session)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	cur := p.current
	p.mu.Unlock()
	fn(cur)
}

func (p *Provider) setCurrent(sess models.Session) {
	p.mu.Lock()
	p.current = sess
	listeners := make([]func(models.Session), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(sess)
	}
}
