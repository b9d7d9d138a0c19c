// Package notify implements the transient notification slot shared by
// the synchronization and presentation layers.
package notify

import (
	"sync"
	"time"
)

// Level classifies a notification for rendering.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a single transient, user-visible message.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier owns the one visible notification. Publishing replaces
// whatever is currently shown, and each notification dismisses itself
// after the configured lifetime unless replaced first.
type Notifier struct {
	ttl time.Duration

	mu      sync.Mutex
	current *Notification
	seq     uint64
	timer   *time.Timer

	watchers map[int]chan struct{}
	nextID   int
}

// New returns a Notifier whose notifications stay visible for ttl.
func New(ttl time.Duration) *Notifier {
	return &Notifier{ttl: ttl, watchers: make(map[int]chan struct{})}
}

// Info publishes an informational notification.
func (n *Notifier) Info(msg string) { n.publish(LevelInfo, msg) }

// Error publishes an error notification.
func (n *Notifier) Error(msg string) { n.publish(LevelError, msg) }

func (n *Notifier) publish(level Level, msg string) {
	n.mu.Lock()
	n.seq++
	seq := n.seq
	n.current = &Notification{Level: level, Message: msg, At: time.Now()}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(seq) })
	n.mu.Unlock()
	n.broadcast()
}

// expire clears the slot unless a newer notification replaced the one
// the timer was armed for.
func (n *Notifier) expire(seq uint64) {
	n.mu.Lock()
	if n.seq != seq || n.current == nil {
		n.mu.Unlock()
		return
	}
	n.current = nil
	n.mu.Unlock()
	n.broadcast()
}

// Current returns the visible notification, if any.
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notification{}, false
	}
	return *n.current, true
}

// Watch returns a channel that receives a signal whenever the visible
// notification changes, and a function that unregisters the watcher.
// Signals are coalesced; watchers pull Current after each one.
func (n *Notifier) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.watchers[id] = ch
	n.mu.Unlock()
	return ch, func() {
		n.mu.Lock()
		delete(n.watchers, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) broadcast() {
	n.mu.Lock()
	chans := make([]chan struct{}, 0, len(n.watchers))
	for _, ch := range n.watchers {
		chans = append(chans, ch)
	}
	n.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
