package notify

import (
	"testing"
	"time"
)

func TestPublishAndCurrent(t *testing.T) {
	n := New(time.Hour)

	if _, ok := n.Current(); ok {
		t.Fatal("fresh notifier should have no notification")
	}

	n.Info("Task added")
	got, ok := n.Current()
	if !ok {
		t.Fatal("Current() = none, want notification")
	}
	if got.Level != LevelInfo || got.Message != "Task added" {
		t.Errorf("Current() = %+v", got)
	}
	if got.At.IsZero() {
		t.Error("At not set")
	}
}

func TestPublishReplaces(t *testing.T) {
	n := New(time.Hour)
	n.Info("first")
	n.Error("second")

	got, ok := n.Current()
	if !ok || got.Message != "second" || got.Level != LevelError {
		t.Errorf("Current() = %+v, %v; want the replacing notification", got, ok)
	}
}

// Expiry is sequence-guarded: a timer armed for an old notification must
// not dismiss its replacement.
func TestExpireGuard(t *testing.T) {
	n := New(time.Hour)
	n.Info("first")   // seq 1
	n.Error("second") // seq 2

	n.expire(1)
	if _, ok := n.Current(); !ok {
		t.Fatal("stale expiry dismissed the current notification")
	}

	n.expire(2)
	if _, ok := n.Current(); ok {
		t.Fatal("current-seq expiry should dismiss")
	}
}

func TestAutoDismiss(t *testing.T) {
	n := New(20 * time.Millisecond)
	n.Info("soon gone")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := n.Current(); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("notification never auto-dismissed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatch(t *testing.T) {
	n := New(time.Hour)
	ch, stop := n.Watch()
	defer stop()

	n.Info("x")
	select {
	case <-ch:
	default:
		t.Fatal("watcher got no signal after publish")
	}

	// Signals coalesce: many publishes, at most one pending signal.
	n.Info("a")
	n.Info("b")
	select {
	case <-ch:
	default:
		t.Fatal("watcher got no signal after publishes")
	}
	select {
	case <-ch:
		t.Fatal("signals did not coalesce")
	default:
	}
}

func TestWatchStop(t *testing.T) {
	n := New(time.Hour)
	ch, stop := n.Watch()
	stop()

	n.Info("x")
	select {
	case <-ch:
		t.Fatal("stopped watcher still signalled")
	default:
	}
}
