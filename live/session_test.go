package live

import (
	"context"
	"testing"
	"time"

	"github.com/use-agent/cortex/cortexerr"
	"github.com/use-agent/cortex/renderer"
)

func TestSessionManagerCreateGet(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	rc, _ := fake.NewContext(context.Background(), false)
	mgr := NewSessionManager(time.Minute)

	id := mgr.Create(rc)
	if id == "" {
		t.Fatal("expected a non-empty session id")
	}

	session, err := mgr.Get(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Context() != rc {
		t.Fatal("expected the same render context back")
	}
	if mgr.ActiveCount() != 1 {
		t.Fatalf("expected 1 active session, got %d", mgr.ActiveCount())
	}
}

func TestSessionManagerGetMissing(t *testing.T) {
	mgr := NewSessionManager(time.Minute)
	_, err := mgr.Get("sess-does-not-exist")
	if err == nil {
		t.Fatal("expected an error for a missing session")
	}
	cerr, ok := err.(*cortexerr.Error)
	if !ok || cerr.Kind != cortexerr.NotFound {
		t.Fatalf("expected a NotFound error, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	rc, _ := fake.NewContext(context.Background(), false)
	mgr := NewSessionManager(time.Millisecond)

	id := mgr.Create(rc)
	time.Sleep(5 * time.Millisecond)

	_, err := mgr.Get(id)
	if err == nil {
		t.Fatal("expected an expiry error")
	}
	if mgr.ActiveCount() != 0 {
		t.Fatalf("expected expired session to be removed, count=%d", mgr.ActiveCount())
	}
}

func TestSessionManagerClose(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	rc, _ := fake.NewContext(context.Background(), false)
	mgr := NewSessionManager(time.Minute)

	id := mgr.Create(rc)
	if err := mgr.Close(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mgr.ActiveCount() != 0 {
		t.Fatalf("expected session removed after close, count=%d", mgr.ActiveCount())
	}
	if err := mgr.Close(id); err == nil {
		t.Fatal("expected an error closing an already-closed session")
	}
}

func TestCleanupExpired(t *testing.T) {
	fake := renderer.NewFakeRenderer()
	rc1, _ := fake.NewContext(context.Background(), false)
	rc2, _ := fake.NewContext(context.Background(), false)
	mgr := NewSessionManager(time.Millisecond)

	mgr.Create(rc1)
	mgr.Create(rc2)
	time.Sleep(5 * time.Millisecond)

	mgr.CleanupExpired()
	if mgr.ActiveCount() != 0 {
		t.Fatalf("expected all sessions swept, count=%d", mgr.ActiveCount())
	}
}
