package realtime

import (
	"testing"

	"github.com/google/uuid"
)

func TestRegistryRegisterReplacesAndReturnsPrevious(t *testing.T) {
	r := NewRegistry()
	uid := uuid.New()

	first := &Connection{userID: uid, send: make(chan []byte, 1)}
	if prev := r.Register(first); prev != nil {
		t.Fatalf("expected no previous connection, got %v", prev)
	}

	got, ok := r.Get(uid)
	if !ok || got != first {
		t.Fatalf("expected to find the first connection")
	}

	second := &Connection{userID: uid, send: make(chan []byte, 1)}
	prev := r.Register(second)
	if prev != first {
		t.Fatalf("expected Register to return the displaced connection")
	}

	got, ok = r.Get(uid)
	if !ok || got != second {
		t.Fatalf("expected to find the second connection after displacement")
	}
}

func TestRegistryUnregisterIsIdempotentAgainstDisplacement(t *testing.T) {
	r := NewRegistry()
	uid := uuid.New()

	first := &Connection{userID: uid, send: make(chan []byte, 1)}
	second := &Connection{userID: uid, send: make(chan []byte, 1)}

	r.Register(first)
	r.Register(second)

	// A stale disconnect of the displaced connection must not remove the
	// newer, already-registered one.
	r.Unregister(first)

	got, ok := r.Get(uid)
	if !ok || got != second {
		t.Fatalf("expected second connection to remain registered")
	}

	r.Unregister(second)
	if _, ok := r.Get(uid); ok {
		t.Fatalf("expected no connection registered after unregistering the current one")
	}
}

func TestRegistryOnline(t *testing.T) {
	r := NewRegistry()
	id1, id2 := uuid.New(), uuid.New()

	r.Register(&Connection{userID: id1, send: make(chan []byte, 1)})
	r.Register(&Connection{userID: id2, send: make(chan []byte, 1)})

	online := r.Online()
	if len(online) != 2 {
		t.Fatalf("expected 2 online users, got %d", len(online))
	}
}
