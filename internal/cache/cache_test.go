package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubledger/internal/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](4, time.Minute)
	c.now = clock.now

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	clock.t = clock.t.Add(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("entry should expire at its TTL")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be dropped on read")
	}
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)
	c.Set("a", "A")
	c.Set("b", "B")
	c.Get("a")
	c.Set("c", "C")

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a was used recently and should survive")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second)
	c.now = clock.now
	c.Set("a", 1)
	c.Set("b", 2)
	clock.t = clock.t.Add(2 * time.Second)
	c.Set("c", 3)

	m := NewManager()
	m.Register(c)
	if n := m.CleanNow(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if c.Size() != 1 {
		t.Fatalf("expected 1 left, got %d", c.Size())
	}
	m.Stop()
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}

type countingDirectory struct {
	calls   int
	members []core.Member
	err     error
}

func (d *countingDirectory) ListMembers(context.Context) ([]core.Member, error) {
	d.calls++
	return d.members, d.err
}

func TestMemberDirectoryCaches(t *testing.T) {
	next := &countingDirectory{members: []core.Member{{ID: "a"}, {ID: "b"}}}
	d := NewMemberDirectory(next, time.Hour)

	for i := 0; i < 3; i++ {
		got, err := d.ListMembers(context.Background())
		if err != nil || len(got) != 2 {
			t.Fatalf("unexpected result %v %v", got, err)
		}
		got[0].ID = "mutated"
	}
	if next.calls != 1 {
		t.Fatalf("expected one backend call, got %d", next.calls)
	}

	d.Invalidate()
	got, _ := d.ListMembers(context.Background())
	if next.calls != 2 || got[0].ID != "a" {
		t.Fatalf("invalidate should reload clean data, calls=%d got=%v", next.calls, got)
	}
}

func TestMemberDirectoryDoesNotCacheErrors(t *testing.T) {
	next := &countingDirectory{err: errors.New("db down")}
	d := NewMemberDirectory(next, time.Hour)
	d.ListMembers(context.Background())
	d.ListMembers(context.Background())
	if next.calls != 2 {
		t.Fatalf("errors must not be cached, calls=%d", next.calls)
	}
}
