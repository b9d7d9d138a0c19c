package models

import (
	"strings"
	"time"
)

// Priority is a task's priority level.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority maps a case-insensitive priority name to its canonical
// value.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	}
	return "", false
}

// Task represents a single user-owned task.
//
// CreatedAt is assigned by Firestore when the document is written and is
// the sole sort key for a user's collection (newest first). ID never
// changes after creation.
type Task struct {
	ID          string    `firestore:"id" json:"id"`
	UserID      string    `firestore:"userId" json:"userId"`
	Title       string    `firestore:"title" json:"title"`
	Description string    `firestore:"description" json:"description"`
	DueDate     string    `firestore:"dueDate" json:"dueDate,omitempty"`
	Priority    Priority  `firestore:"priority" json:"priority"`
	Completed   bool      `firestore:"completed" json:"completed"`
	CreatedAt   time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
}

// Draft is a user-supplied, not-yet-persisted task payload.
// Completed is always false on creation, so a draft has no such field.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Priority    Priority `json:"priority"`
}

// TrimmedTitle returns the draft title with surrounding whitespace removed.
func (d Draft) TrimmedTitle() string {
	return strings.TrimSpace(d.Title)
}

// Normalized returns a copy of the draft ready for persistence: the
// title trimmed, an unset priority defaulted to Medium, and a known
// priority folded to its canonical spelling. An unknown priority is
// left as-is for validation to reject.
func (d Draft) Normalized() Draft {
	d.Title = d.TrimmedTitle()
	if d.Priority == "" {
		d.Priority = PriorityMedium
	} else if p, ok := ParsePriority(string(d.Priority)); ok {
		d.Priority = p
	}
	return d
}

// Patch describes a partial update to an existing task. Nil fields are
// left untouched; in particular Completed only changes when the caller
// sets it explicitly, so an edit can never reset completion by accident.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		p.Priority == nil && p.Completed == nil
}

// Filter selects tasks by completion status.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter maps a query-string value to a Filter. The empty string
// means FilterAll; anything unrecognized is rejected.
func ParseFilter(s string) (Filter, bool) {
	switch Filter(strings.ToLower(s)) {
	case FilterAll, Filter(""):
		return FilterAll, true
	case FilterActive:
		return FilterActive, true
	case FilterCompleted:
		return FilterCompleted, true
	}
	return FilterAll, false
}

// Match reports whether t passes the filter.
func (f Filter) Match(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	}
	return true
}

// Session is the current sign-in state, sourced from the identity
// provider. It is derived, never stored.
type Session struct {
	UserID   string `json:"userId,omitempty"`
	SignedIn bool   `json:"signedIn"`
}
