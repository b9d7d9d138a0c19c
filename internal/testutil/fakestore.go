// Package testutil provides test doubles for the task store.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
	"taskdeck/internal/store"
)

// FakeStore is an in-memory store.Store for tests. Subscriptions are
// delivered synchronously: every successful mutation hands the full,
// newest-first result set to the live subscribers of the affected user
// before the mutating call returns.
//
// The zero value is not usable; call NewFakeStore.
type FakeStore struct {
	mu        sync.Mutex
	nextID    int
	tasks     map[string][]models.Task // user id -> tasks in creation order
	subs      []*FakeSub
	suspended bool

	// Error injection. A non-nil value makes the matching method fail
	// with it until the field is cleared again.
	CreateErr       error
	UpdateErr       error
	SetCompletedErr error
	DeleteErr       error
	SubscribeErr    error

	// Call counters.
	CreateCalls       int
	UpdateCalls       int
	SetCompletedCalls int
	DeleteCalls       int
	SubscribeCalls    int
}

// FakeSub is a handle on a fake subscription. Tests can drive it
// directly to simulate deliveries that race with newer binds.
type FakeSub struct {
	store     *FakeStore
	userID    string
	onData    func([]models.Task)
	onError   func(error)
	cancelled bool
}

// NewFakeStore returns an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{tasks: make(map[string][]models.Task)}
}

func (f *FakeStore) Create(ctx context.Context, userID string, draft models.Draft) (string, error) {
	f.mu.Lock()
	f.CreateCalls++
	if f.CreateErr != nil {
		err := f.CreateErr
		f.mu.Unlock()
		return "", err
	}
	f.nextID++
	task := models.Task{
		ID:          fmt.Sprintf("task-%d", f.nextID),
		UserID:      userID,
		Title:       draft.Title,
		Description: draft.Description,
		DueDate:     draft.DueDate,
		Priority:    draft.Priority,
		Completed:   false,
		CreatedAt:   baseTime.Add(time.Duration(f.nextID) * time.Minute),
	}
	f.tasks[userID] = append(f.tasks[userID], task)
	deliveries := f.pendingDeliveries(userID)
	f.mu.Unlock()
	run(deliveries)
	return task.ID, nil
}

func (f *FakeStore) Update(ctx context.Context, userID, id string, patch models.Patch) error {
	f.mu.Lock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		err := f.UpdateErr
		f.mu.Unlock()
		return err
	}
	idx, err := f.locate(userID, id)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	task := &f.tasks[userID][idx]
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.DueDate != nil {
		task.DueDate = *patch.DueDate
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	deliveries := f.pendingDeliveries(userID)
	f.mu.Unlock()
	run(deliveries)
	return nil
}

func (f *FakeStore) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	f.mu.Lock()
	f.SetCompletedCalls++
	if f.SetCompletedErr != nil {
		err := f.SetCompletedErr
		f.mu.Unlock()
		return err
	}
	idx, err := f.locate(userID, id)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.tasks[userID][idx].Completed = completed
	deliveries := f.pendingDeliveries(userID)
	f.mu.Unlock()
	run(deliveries)
	return nil
}

func (f *FakeStore) Delete(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		err := f.DeleteErr
		f.mu.Unlock()
		return err
	}
	idx, err := f.locate(userID, id)
	if err != nil {
		foreign := f.ownedByOther(userID, id)
		f.mu.Unlock()
		if foreign {
			return err
		}
		// Already gone: deleting is idempotent.
		return nil
	}
	list := f.tasks[userID]
	f.tasks[userID] = append(list[:idx], list[idx+1:]...)
	deliveries := f.pendingDeliveries(userID)
	f.mu.Unlock()
	run(deliveries)
	return nil
}

func (f *FakeStore) Subscribe(ctx context.Context, userID string, onData func([]models.Task), onError func(error)) (store.Subscription, error) {
	f.mu.Lock()
	f.SubscribeCalls++
	if f.SubscribeErr != nil {
		err := f.SubscribeErr
		f.mu.Unlock()
		return nil, err
	}
	sub := &FakeSub{store: f, userID: userID, onData: onData, onError: onError}
	f.subs = append(f.subs, sub)
	snap := f.snapshot(userID)
	suspended := f.suspended
	f.mu.Unlock()
	if !suspended {
		onData(snap)
	}
	return sub, nil
}

func (f *FakeStore) Close() error { return nil }

// Tasks returns a user's stored tasks newest first, the same order a
// subscription delivers them.
func (f *FakeStore) Tasks(userID string) []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(userID)
}

// LiveSubs counts the subscriptions that have not been cancelled.
func (f *FakeStore) LiveSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if !sub.cancelled {
			n++
		}
	}
	return n
}

// Subs returns every subscription ever opened, cancelled ones included,
// in the order they were opened.
func (f *FakeStore) Subs() []*FakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSub(nil), f.subs...)
}

// SuspendDeliveries stops mutations from pushing snapshots to
// subscribers, leaving mirrors stale until ResumeDeliveries.
func (f *FakeStore) SuspendDeliveries() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = true
}

// ResumeDeliveries re-enables deliveries and pushes the current
// snapshot to every live subscriber.
func (f *FakeStore) ResumeDeliveries() {
	f.mu.Lock()
	f.suspended = false
	var deliveries []func()
	for _, sub := range f.subs {
		if sub.cancelled {
			continue
		}
		sub := sub
		snap := f.snapshot(sub.userID)
		deliveries = append(deliveries, func() { sub.onData(snap) })
	}
	f.mu.Unlock()
	run(deliveries)
}

// FailLive terminates every live subscription for userID with err,
// delivering it through onError.
func (f *FakeStore) FailLive(userID string, err error) {
	f.mu.Lock()
	var failures []func()
	for _, sub := range f.subs {
		if sub.cancelled || sub.userID != userID {
			continue
		}
		sub.cancelled = true
		sub := sub
		failures = append(failures, func() { sub.onError(err) })
	}
	f.mu.Unlock()
	run(failures)
}

// Cancel implements store.Subscription.
func (s *FakeSub) Cancel() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.cancelled = true
}

// Cancelled reports whether the subscription has been cancelled.
func (s *FakeSub) Cancelled() bool {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.cancelled
}

// UserID returns the user the subscription was opened for.
func (s *FakeSub) UserID() string { return s.userID }

// Deliver pushes a result set straight to the subscriber, bypassing the
// store and the cancelled flag. Tests use it to model a delivery that
// was already in flight when a newer bind took over.
func (s *FakeSub) Deliver(tasks []models.Task) {
	s.onData(tasks)
}

// Fail pushes a terminal error straight to the subscriber.
func (s *FakeSub) Fail(err error) {
	s.onError(err)
}

var baseTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// locate finds a task by id within userID's records. A hit under a
// different user is a remote error, same as the ownership check the
// Firestore adapter performs.
func (f *FakeStore) locate(userID, id string) (int, error) {
	for i, t := range f.tasks[userID] {
		if t.ID == id {
			return i, nil
		}
	}
	if f.ownedByOther(userID, id) {
		return 0, apperr.Remote("load task", fmt.Errorf("task %s belongs to another user", id))
	}
	return 0, apperr.Remote("load task", fmt.Errorf("task %s not found", id))
}

func (f *FakeStore) ownedByOther(userID, id string) bool {
	for owner, list := range f.tasks {
		if owner == userID {
			continue
		}
		for _, t := range list {
			if t.ID == id {
				return true
			}
		}
	}
	return false
}

// snapshot copies userID's tasks newest first. Callers hold f.mu.
func (f *FakeStore) snapshot(userID string) []models.Task {
	list := f.tasks[userID]
	out := make([]models.Task, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out
}

// pendingDeliveries builds the delivery closures for userID's live
// subscribers. Callers hold f.mu; the closures run after it is
// released so subscribers can call back into the store.
func (f *FakeStore) pendingDeliveries(userID string) []func() {
	if f.suspended {
		return nil
	}
	var deliveries []func()
	for _, sub := range f.subs {
		if sub.cancelled || sub.userID != userID {
			continue
		}
		sub := sub
		snap := f.snapshot(userID)
		deliveries = append(deliveries, func() { sub.onData(snap) })
	}
	return deliveries
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
