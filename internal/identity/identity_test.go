package identity

import (
	"context"
	"testing"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

func TestResolveStableID(t *testing.T) {
	dir := NewDirectory(nil)

	first, err := dir.Resolve("alice")
	if err != nil {
		t.Fatalf("Resolve(alice) error = %v", err)
	}
	second, err := dir.Resolve("alice")
	if err != nil {
		t.Fatalf("Resolve(alice) again error = %v", err)
	}
	if first != second {
		t.Errorf("ids differ across sign-ins: %q vs %q", first, second)
	}

	other, err := dir.Resolve("bob")
	if err != nil {
		t.Fatalf("Resolve(bob) error = %v", err)
	}
	if other == first {
		t.Error("different handles resolved to the same id")
	}
}

func TestResolveNormalizesHandle(t *testing.T) {
	dir := NewDirectory(nil)
	a, _ := dir.Resolve("Alice ")
	b, _ := dir.Resolve("alice")
	if a != b {
		t.Errorf("handle normalization broken: %q vs %q", a, b)
	}
}

func TestResolveEmptyHandle(t *testing.T) {
	dir := NewDirectory(nil)
	for _, handle := range []string{"", "   "} {
		if _, err := dir.Resolve(handle); !apperr.IsAuth(err) {
			t.Errorf("Resolve(%q) error = %v, want auth error", handle, err)
		}
	}
}

func TestResolveAllowList(t *testing.T) {
	dir := NewDirectory([]string{"Alice", "bob"})

	if _, err := dir.Resolve("alice"); err != nil {
		t.Errorf("allow-listed handle rejected: %v", err)
	}
	if _, err := dir.Resolve("mallory"); !apperr.IsAuth(err) {
		t.Errorf("Resolve(mallory) error = %v, want auth error", err)
	}
}

func TestProviderSignInSignOut(t *testing.T) {
	p := NewProvider(NewDirectory(nil))
	ctx := context.Background()

	if cur := p.Current(); cur.SignedIn {
		t.Fatal("fresh provider should be signed out")
	}

	sess, err := p.SignIn(ctx, "alice")
	if err != nil {
		t.Fatalf("SignIn error = %v", err)
	}
	if !sess.SignedIn || sess.UserID == "" {
		t.Fatalf("SignIn session = %+v, want signed in with user id", sess)
	}
	if cur := p.Current(); cur != sess {
		t.Errorf("Current() = %+v, want %+v", cur, sess)
	}

	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("SignOut error = %v", err)
	}
	if cur := p.Current(); cur.SignedIn || cur.UserID != "" {
		t.Errorf("Current() after sign-out = %+v, want zero session", cur)
	}
}

func TestProviderSignInUnknownUserKeepsState(t *testing.T) {
	p := NewProvider(NewDirectory([]string{"alice"}))
	ctx := context.Background()

	if _, err := p.SignIn(ctx, "alice"); err != nil {
		t.Fatalf("SignIn(alice) error = %v", err)
	}
	if _, err := p.SignIn(ctx, "mallory"); !apperr.IsAuth(err) {
		t.Fatalf("SignIn(mallory) error = %v, want auth error", err)
	}
	if cur := p.Current(); !cur.SignedIn {
		t.Error("failed sign-in should not clobber the current session")
	}
}

func TestOnChangeDeliveryOrder(t *testing.T) {
	p := NewProvider(NewDirectory(nil))
	ctx := context.Background()

	var seen []models.Session
	p.OnChange(func(s models.Session) { seen = append(seen, s) })

	if len(seen) != 1 || seen[0].SignedIn {
		t.Fatalf("listener should hear the signed-out state at registration, got %+v", seen)
	}

	sess, err := p.SignIn(ctx, "alice")
	if err != nil {
		t.Fatalf("SignIn error = %v", err)
	}
	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("SignOut error = %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("listener heard %d changes, want 3", len(seen))
	}
	if seen[1] != sess {
		t.Errorf("second delivery = %+v, want %+v", seen[1], sess)
	}
	if seen[2].SignedIn {
		t.Errorf("third delivery = %+v, want signed out", seen[2])
	}
}
