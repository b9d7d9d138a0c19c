// Package firestore implements the task store on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
	"taskdeck/internal/store"
)

// callTimeout bounds every unary Firestore call. Standing queries are
// bounded by the caller's context instead.
const callTimeout = 5 * time.Second

// Client is a store.Store backed by a single Firestore collection.
type Client struct {
	client     *fs.Client
	collection string
}

// New connects to Firestore and returns a task store over the named
// collection.
func New(ctx context.Context, projectID, collection string) (*Client, error) {
	client, err := fs.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &Client{client: client, collection: collection}, nil
}

func (c *Client) Create(ctx context.Context, userID string, draft models.Draft) (string, error) {
	task := models.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       draft.Title,
		Description: draft.Description,
		DueDate:     draft.DueDate,
		Priority:    draft.Priority,
		Completed:   false,
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	if _, err := c.doc(task.ID).Set(ctx, task); err != nil {
		return "", apperr.Remote("create task", err)
	}
	return task.ID, nil
}

func (c *Client) Update(ctx context.Context, userID, id string, patch models.Patch) error {
	updates := patchUpdates(patch)
	if len(updates) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	ref := c.doc(id)
	if err := c.checkOwner(ctx, ref, userID); err != nil {
		return err
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return apperr.Remote("update task", err)
	}
	return nil
}

func (c *Client) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	ref := c.doc(id)
	if err := c.checkOwner(ctx, ref, userID); err != nil {
		return err
	}
	updates := []fs.Update{{Path: "completed", Value: completed}}
	if _, err := ref.Update(ctx, updates); err != nil {
		return apperr.Remote("update task status", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	ref := c.doc(id)
	if err := c.checkOwner(ctx, ref, userID); err != nil {
		// Deleting a task that is already gone counts as success.
		if status.Code(errors.Unwrap(err)) == codes.NotFound {
			return nil
		}
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return apperr.Remote("delete task", err)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, userID string, onData func([]models.Task), onError func(error)) (store.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	snaps := c.client.Collection(c.collection).
		Where("userId", "==", userID).
		OrderBy("createdAt", fs.Desc).
		Snapshots(ctx)

	go func() {
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
					return
				}
				onError(apperr.Remote("watch tasks", err))
				return
			}
			tasks, err := decodeSnapshot(snap)
			if err != nil {
				onError(err)
				return
			}
			onData(tasks)
		}
	}()
	return &subscription{cancel: cancel}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) doc(id string) *fs.DocumentRef {
	return c.client.Collection(c.collection).Doc(id)
}

// checkOwner loads the document and verifies it belongs to userID.
// Firestore documents are keyed by task id alone, so ownership has to
// be enforced before every mutation.
func (c *Client) checkOwner(ctx context.Context, ref *fs.DocumentRef, userID string) error {
	snap, err := ref.Get(ctx)
	if err != nil {
		return apperr.Remote("load task", err)
	}
	owner, err := snap.DataAt("userId")
	if err != nil {
		return apperr.Remote("load task", err)
	}
	if owner != userID {
		return apperr.Remote("load task", fmt.Errorf("task %s belongs to another user", ref.ID))
	}
	return nil
}

// patchUpdates translates the non-nil patch fields into Firestore
// update operations. Title updates are stored trimmed.
func patchUpdates(patch models.Patch) []fs.Update {
	var updates []fs.Update
	if patch.Title != nil {
		updates = append(updates, fs.Update{Path: "title", Value: strings.TrimSpace(*patch.Title)})
	}
	if patch.Description != nil {
		updates = append(updates, fs.Update{Path: "description", Value: *patch.Description})
	}
	if patch.DueDate != nil {
		updates = append(updates, fs.Update{Path: "dueDate", Value: *patch.DueDate})
	}
	if patch.Priority != nil {
		updates = append(updates, fs.Update{Path: "priority", Value: string(*patch.Priority)})
	}
	if patch.Completed != nil {
		updates = append(updates, fs.Update{Path: "completed", Value: *patch.Completed})
	}
	return updates
}

func decodeSnapshot(snap *fs.QuerySnapshot) ([]models.Task, error) {
	var tasks []models.Task
	iter := snap.Documents
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperr.Remote("read tasks", err)
		}
		var task models.Task
		if err := doc.DataTo(&task); err != nil {
			return nil, apperr.Remote("decode task", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

type subscription struct {
	cancel context.CancelFunc
}

func (s *subscription) Cancel() {
	s.cancel()
}
