package presence

import (
	"fmt"
	"sync"
	"testing"
)

type stubConn struct{ id string }

func (c stubConn) ID() string             { return c.id }
func (c stubConn) Emit(string, any) error { return nil }

func TestRegisterLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("+1", stubConn{id: "a"})

	c, ok := r.Lookup("+1")
	if !ok || c.ID() != "a" {
		t.Fatalf("expected conn a, got %v ok=%v", c, ok)
	}
	if _, ok := r.Lookup("+2"); ok {
		t.Fatalf("expected +2 absent")
	}
}

func TestRegister_LastWins(t *testing.T) {
	r := NewRegistry()
	r.Register("+1", stubConn{id: "a"})
	r.Register("+1", stubConn{id: "b"})

	c, _ := r.Lookup("+1")
	if c.ID() != "b" {
		t.Fatalf("expected newest conn b, got %s", c.ID())
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", r.Len())
	}
}

func TestRemove_OnlyMatchingHandle(t *testing.T) {
	r := NewRegistry()
	r.Register("+1", stubConn{id: "a"})
	r.Register("+1", stubConn{id: "b"})

	// the stale handle "a" disconnecting must not evict "b".
	if removed := r.Remove(stubConn{id: "a"}); len(removed) != 0 {
		t.Fatalf("expected nothing removed, got %v", removed)
	}
	if _, ok := r.Lookup("+1"); !ok {
		t.Fatalf("expected +1 still present")
	}

	removed := r.Remove(stubConn{id: "b"})
	if len(removed) != 1 || removed[0] != "+1" {
		t.Fatalf("unexpected removed %v", removed)
	}
	if _, ok := r.Lookup("+1"); ok {
		t.Fatalf("expected +1 gone")
	}
}

func TestRemove_Idempotent(t *testing.T) {
	r := NewRegistry()
	r.Remove(stubConn{id: "never"})
	r.Register("+1", stubConn{id: "a"})
	r.Remove(stubConn{id: "a"})
	r.Remove(stubConn{id: "a"})
	if r.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
	r.Remove(nil)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := stubConn{id: fmt.Sprintf("c%d", i)}
			user := fmt.Sprintf("+%d", i%5)
			r.Register(user, c)
			r.Lookup(user)
			r.Remove(c)
		}(i)
	}
	wg.Wait()
	if r.Len() > 5 {
		t.Fatalf("registry grew past user count: %d", r.Len())
	}
}
