package research

import (
	"fmt"
	"testing"
	"time"
)

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache returned a value")
	}

	c.Set("k", []string{"a", "b"})
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Set value not found")
	}
	if vs, _ := got.([]string); len(vs) != 2 {
		t.Errorf("got %v, want [a b]", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache(10, 10*time.Millisecond)
	c.Set("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry still served")
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	c := NewMemoryCache(3, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	if c.Size() > 3 {
		t.Errorf("Size = %d, want at most 3", c.Size())
	}
	if _, ok := c.Get("k4"); !ok {
		t.Error("most recent entry was evicted")
	}
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	c.Set("k", "v")
	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Size after Clear = %d, want 0", c.Size())
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("rank", "query one")
	b := CacheKey("rank", "query one")
	if a != b {
		t.Error("identical parts produced different keys")
	}
	if len(a) != 16 {
		t.Errorf("key length = %d, want 16", len(a))
	}

	// The separator must keep adjacent parts from colliding.
	if CacheKey("ab", "c") == CacheKey("a", "bc") {
		t.Error("shifted part boundaries collided")
	}
	if CacheKey("x") == CacheKey("y") {
		t.Error("different parts collided")
	}
}
