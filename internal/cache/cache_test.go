package cache

import (
	"testing"
	"time"
)

func TestGetPut(t *testing.T) {
	s := New[string](5 * time.Minute)
	if _, ok := s.Get(Key("ネコ")); ok {
		t.Error("expected miss on empty store")
	}

	s.Put(Key("ネコ"), "<p>body</p>")
	v, ok := s.Get(Key("ネコ"))
	if !ok || v != "<p>body</p>" {
		t.Errorf("expected hit with stored value, got %q ok=%v", v, ok)
	}

	s.Put(Key("ネコ"), "replaced")
	if v, _ := s.Get(Key("ネコ")); v != "replaced" {
		t.Errorf("expected replaced value, got %q", v)
	}
}

func TestExpiryBoundary(t *testing.T) {
	ttl := 5 * time.Minute
	s := New[string](ttl)

	base := time.Now()
	now := base
	s.SetNowFunc(func() time.Time { return now })

	s.Put("k", "v")

	now = base.Add(ttl - time.Millisecond)
	if _, ok := s.Get("k"); !ok {
		t.Error("entry should still be fresh just before TTL")
	}

	now = base.Add(ttl + time.Millisecond)
	if _, ok := s.Get("k"); ok {
		t.Error("entry should be absent just after TTL")
	}

	// Lazy eviction removed the stale entry on read.
	if s.Len() != 0 {
		t.Errorf("stale entry should be evicted on read, len=%d", s.Len())
	}
}

func TestSweep(t *testing.T) {
	ttl := time.Minute
	s := New[int](ttl)

	base := time.Now()
	now := base
	s.SetNowFunc(func() time.Time { return now })

	s.Put("old", 1)
	now = base.Add(30 * time.Second)
	s.Put("fresh", 2)

	now = base.Add(70 * time.Second)
	if removed := s.Sweep(); removed != 1 {
		t.Errorf("expected 1 entry swept, got %d", removed)
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestKeyStable(t *testing.T) {
	if Key("ネコ") != Key("ネコ") {
		t.Error("key derivation must be deterministic")
	}
	if Key("ネコ") == Key("イヌ") {
		t.Error("distinct titles should not collide")
	}
	if len(Key("ネコ")) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(Key("ネコ")))
	}
}
