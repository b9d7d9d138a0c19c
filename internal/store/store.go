// Package store defines the backend-agnostic contract for task
// persistence. All Firestore calls go through this interface; the
// synchronization layer never imports the vendor SDK.
package store

import (
	"context"

	"taskdeck/internal/models"
)

// Store is the remote task store. Every call is scoped by the owning
// user's id; an implementation must never return or mutate another
// user's records.
type Store interface {
	// Create persists a new task for userID and returns its id.
	// The store assigns the id and the creation timestamp; the task
	// starts with Completed false.
	Create(ctx context.Context, userID string, draft models.Draft) (string, error)

	// Update merges the non-nil patch fields into an existing task.
	// Updating a missing id fails with a RemoteError.
	Update(ctx context.Context, userID, id string, patch models.Patch) error

	// SetCompleted sets exactly the completed field.
	SetCompleted(ctx context.Context, userID, id string, completed bool) error

	// Delete removes a task. Deleting a missing id is a no-op success.
	Delete(ctx context.Context, userID, id string) error

	// Subscribe opens a standing query over userID's tasks, ordered by
	// creation time descending. onData receives the full current result
	// set after every change, in arrival order; onError receives at most
	// one terminal error, after which no further deliveries arrive.
	Subscribe(ctx context.Context, userID string, onData func([]models.Task), onError func(error)) (Subscription, error)

	// Close releases the underlying client.
	Close() error
}

// Subscription is a handle on a standing query.
type Subscription interface {
	// Cancel stops deliveries. Calling it more than once is safe.
	Cancel()
}
