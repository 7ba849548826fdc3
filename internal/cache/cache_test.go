package cache

import (
	"testing"
	"time"
)

func TestGetMissingScope(t *testing.T) {
	c := New[int](0)
	defer c.Close()

	if _, ok := c.Get("u1"); ok {
		t.Fatal("expected miss for unknown scope")
	}
}

func TestSetThenGet(t *testing.T) {
	c := New[int](0)
	defer c.Close()

	c.Set("u1", []int{3, 2, 1})
	got, ok := c.Get("u1")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 3 || got[0] != 3 {
		t.Fatalf("unexpected records: %v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := New[int](0)
	defer c.Close()

	c.Set("u1", []int{1, 2})
	got, _ := c.Get("u1")
	got[0] = 99

	again, _ := c.Get("u1")
	if again[0] != 1 {
		t.Fatalf("caller mutation leaked into cache: %v", again)
	}
}

func TestPatchOnMissingScopeIsNoop(t *testing.T) {
	c := New[int](0)
	defer c.Close()

	called := false
	c.Patch("u1", func(in []int) []int {
		called = true
		return []int{1}
	})
	if called {
		t.Fatal("patch fn should not run for an absent scope")
	}
	if _, ok := c.Get("u1"); ok {
		t.Fatal("patch must not fabricate an entry")
	}
}

func TestPatchReplacesList(t *testing.T) {
	c := New[int](0)
	defer c.Close()

	c.Set("u1", []int{1, 2, 3})
	c.Patch("u1", func(in []int) []int {
		out := make([]int, 0, len(in))
		for _, v := range in {
			out = append(out, v*10)
		}
		return out
	})

	got, _ := c.Get("u1")
	if got[0] != 10 || got[2] != 30 {
		t.Fatalf("unexpected records after patch: %v", got)
	}
}

func TestScopeIsolation(t *testing.T) {
	c := New[string](0)
	defer c.Close()

	c.Set("user-1", []string{"a"})
	c.Set("user-2", []string{"b"})

	c.Patch("user-1", func(in []string) []string {
		return append([]string{"x"}, in...)
	})

	got2, _ := c.Get("user-2")
	if len(got2) != 1 || got2[0] != "b" {
		t.Fatalf("patching user-1 mutated user-2: %v", got2)
	}
}

func TestDelete(t *testing.T) {
	c := New[int](0)
	defer c.Close()

	c.Set("u1", []int{1})
	c.Delete("u1")
	if _, ok := c.Get("u1"); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestEvictIdle(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Close()

	c.Set("old", []int{1})
	c.Set("fresh", []int{2})

	// Backdate the old entry past the idle TTL, then run one sweep.
	c.mu.Lock()
	c.entries["old"].touched = time.Now().Add(-2 * time.Minute)
	c.mu.Unlock()
	c.evictIdle(time.Now())

	if _, ok := c.Get("old"); ok {
		t.Fatal("idle entry should have been evicted")
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry should survive the sweep")
	}
}
