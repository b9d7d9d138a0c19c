// Package tasksync keeps an in-memory mirror of one user's task
// collection consistent with the remote store and derives the filtered
// views the presentation layer renders.
//
// The mirror is never mutated locally: every change goes to the store
// first and lands in the mirror only when the live subscription
// redelivers the collection. Between those two moments the mirror is
// stale, and that is fine.
package tasksync

import (
	"context"
	"log"
	"strings"
	"sync"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
	"taskdeck/internal/notify"
	"taskdeck/internal/store"
)

// Syncer binds a user session to the remote store and owns the mirror,
// the current filter selection, and the editing state. All methods are
// safe for concurrent use.
type Syncer struct {
	store    store.Store
	notifier *notify.Notifier

	mu         sync.Mutex
	session    models.Session
	mirror     []models.Task
	filter     models.Filter
	sub        store.Subscription
	subUser    string // user the live subscription belongs to, "" when none
	gen        uint64 // bind generation; deliveries from older binds are discarded
	editing    *models.Task
	loadFailed bool

	watchers    map[int]chan struct{}
	nextWatcher int
}

// New returns a Syncer in the signed-out state.
func New(st store.Store, n *notify.Notifier) *Syncer {
	return &Syncer{
		store:    st,
		notifier: n,
		filter:   models.FilterAll,
		watchers: make(map[int]chan struct{}),
	}
}

// Bind points the syncer at a session. For a signed-in session it opens
// a live subscription for that user; for a signed-out one it just
// clears local state. Either way any previous subscription is cancelled
// first and the mirror, filter and editing state are reset.
//
// Rebinding to the user that is already subscribed is a no-op. After a
// subscription failure the syncer holds no subscription, so binding the
// same user again retries the load.
func (s *Syncer) Bind(ctx context.Context, session models.Session) error {
	if !session.SignedIn || session.UserID == "" {
		session = models.Session{}
	}

	s.mu.Lock()
	if session.SignedIn && s.sub != nil && s.subUser == session.UserID {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	old := s.sub
	s.sub = nil
	s.subUser = ""
	s.session = session
	s.mirror = nil
	s.filter = models.FilterAll
	s.editing = nil
	s.loadFailed = false
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	s.signalWatchers()

	if !session.SignedIn {
		return nil
	}

	sub, err := s.store.Subscribe(ctx, session.UserID,
		func(tasks []models.Task) { s.applyDelivery(gen, tasks) },
		func(err error) { s.subscriptionFailed(gen, err) },
	)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.loadFailed = true
		}
		s.mu.Unlock()
		s.notifier.Error("Couldn't load your tasks")
		s.signalWatchers()
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		// A newer bind won the race while we were subscribing; this
		// subscription belongs to a dead generation.
		s.mu.Unlock()
		sub.Cancel()
		return nil
	}
	s.sub = sub
	s.subUser = session.UserID
	s.mu.Unlock()
	return nil
}

// applyDelivery replaces the mirror with a subscription result set.
// Deliveries carry the generation of the bind that opened their
// subscription, so anything from a superseded bind is dropped here.
func (s *Syncer) applyDelivery(gen uint64, tasks []models.Task) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.mirror = append([]models.Task(nil), tasks...)
	s.loadFailed = false
	s.mu.Unlock()
	s.signalWatchers()
}

// subscriptionFailed records a terminal subscription error. The mirror
// keeps its last-known-good contents; the caller has to rebind to
// resume syncing.
func (s *Syncer) subscriptionFailed(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.loadFailed = true
	s.sub = nil
	s.subUser = ""
	s.mu.Unlock()
	log.Printf("Task subscription failed: %v", err)
	s.notifier.Error("Lost connection to your tasks")
	s.signalWatchers()
}

// Create validates and persists a new task. The mirror picks it up via
// the subscription, not here.
func (s *Syncer) Create(ctx context.Context, draft models.Draft) error {
	userID, err := s.signedInUser()
	if err != nil {
		s.notifier.Error("Sign in to manage tasks")
		return err
	}
	draft = draft.Normalized()
	if draft.Title == "" {
		s.notifier.Error("A task needs a title")
		return apperr.Validation("title", "must not be empty")
	}
	if !draft.Priority.Valid() {
		s.notifier.Error("Unknown priority")
		return apperr.Validation("priority", "must be High, Medium or Low")
	}
	if _, err := s.store.Create(ctx, userID, draft); err != nil {
		s.notifier.Error("Couldn't add the task")
		return err
	}
	s.notifier.Info("Task added")
	return nil
}

// Update applies a partial update to an existing task. On success any
// editing session for that task ends.
func (s *Syncer) Update(ctx context.Context, id string, patch models.Patch) error {
	userID, err := s.signedInUser()
	if err != nil {
		s.notifier.Error("Sign in to manage tasks")
		return err
	}
	if patch.IsZero() {
		s.notifier.Error("Nothing to update")
		return apperr.Validation("patch", "no fields to update")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			s.notifier.Error("A task needs a title")
			return apperr.Validation("title", "must not be empty")
		}
		patch.Title = &title
	}
	if patch.Priority != nil {
		prio, ok := models.ParsePriority(string(*patch.Priority))
		if !ok {
			s.notifier.Error("Unknown priority")
			return apperr.Validation("priority", "must be High, Medium or Low")
		}
		patch.Priority = &prio
	}
	if err := s.store.Update(ctx, userID, id, patch); err != nil {
		s.notifier.Error("Couldn't save the task")
		return err
	}
	s.mu.Lock()
	changed := s.editing != nil && s.editing.ID == id
	if changed {
		s.editing = nil
	}
	s.mu.Unlock()
	if changed {
		s.signalWatchers()
	}
	s.notifier.Info("Task updated")
	return nil
}

// ToggleComplete sets exactly the completed field of a task.
func (s *Syncer) ToggleComplete(ctx context.Context, id string, completed bool) error {
	userID, err := s.signedInUser()
	if err != nil {
		s.notifier.Error("Sign in to manage tasks")
		return err
	}
	if err := s.store.SetCompleted(ctx, userID, id, completed); err != nil {
		s.notifier.Error("Couldn't update the task")
		return err
	}
	if completed {
		s.notifier.Info("Task completed")
	} else {
		s.notifier.Info("Task reopened")
	}
	return nil
}

// Delete removes a task. Deleting a task that is already gone still
// succeeds.
func (s *Syncer) Delete(ctx context.Context, id string) error {
	userID, err := s.signedInUser()
	if err != nil {
		s.notifier.Error("Sign in to manage tasks")
		return err
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		s.notifier.Error("Couldn't delete the task")
		return err
	}
	s.notifier.Info("Task deleted")
	return nil
}

// View returns the mirror entries passing the filter, preserving mirror
// order. The result is a copy.
func (s *Syncer) View(filter models.Filter) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, 0, len(s.mirror))
	for _, t := range s.mirror {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Tasks returns the full mirror, newest first.
func (s *Syncer) Tasks() []models.Task {
	return s.View(models.FilterAll)
}

// SetFilter records the user's filter selection.
func (s *Syncer) SetFilter(filter models.Filter) {
	s.mu.Lock()
	changed := s.filter != filter
	s.filter = filter
	s.mu.Unlock()
	if changed {
		s.signalWatchers()
	}
}

// Filter returns the current filter selection.
func (s *Syncer) Filter() models.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Session returns the session the syncer is bound to.
func (s *Syncer) Session() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// LoadFailed reports whether the last load or subscription attempt
// failed and a rebind is needed.
func (s *Syncer) LoadFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFailed
}

// BeginEdit opens an editing session for a mirrored task and returns a
// snapshot of it, replacing any editing session already open.
func (s *Syncer) BeginEdit(id string) (models.Task, error) {
	s.mu.Lock()
	if !s.session.SignedIn {
		s.mu.Unlock()
		return models.Task{}, apperr.ErrUnauthenticated
	}
	for i := range s.mirror {
		if s.mirror[i].ID == id {
			task := s.mirror[i]
			s.editing = &task
			s.mu.Unlock()
			s.signalWatchers()
			return task, nil
		}
	}
	s.mu.Unlock()
	return models.Task{}, apperr.Validation("id", "unknown task")
}

// CancelEdit ends the editing session, if any, changing nothing else.
func (s *Syncer) CancelEdit() {
	s.mu.Lock()
	changed := s.editing != nil
	s.editing = nil
	s.mu.Unlock()
	if changed {
		s.signalWatchers()
	}
}

// SubmitEdit applies a patch to the task being edited. On failure the
// editing session stays open so the form keeps its values.
func (s *Syncer) SubmitEdit(ctx context.Context, patch models.Patch) error {
	s.mu.Lock()
	if s.editing == nil {
		s.mu.Unlock()
		s.notifier.Error("No task is being edited")
		return apperr.Validation("edit", "no task is being edited")
	}
	id := s.editing.ID
	s.mu.Unlock()
	return s.Update(ctx, id, patch)
}

// Editing returns the task snapshot under edit, if any.
func (s *Syncer) Editing() (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing == nil {
		return models.Task{}, false
	}
	return *s.editing, true
}

// Watch returns a channel that receives a signal whenever the mirror,
// filter, session or editing state changes, plus a function that
// unregisters the watcher. Signals are coalesced; watchers re-read the
// state they care about after each one.
func (s *Syncer) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Syncer) signalWatchers() {
	s.mu.Lock()
	chans := make([]chan struct{}, 0, len(s.watchers))
	for _, ch := range s.watchers {
		chans = append(chans, ch)
	}
	s.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Syncer) signedInUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.SignedIn || s.session.UserID == "" {
		return "", apperr.ErrUnauthenticated
	}
	return s.session.UserID, nil
}
