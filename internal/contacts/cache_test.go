package contacts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/imsg/internal/bus"
)

type stubLookup struct {
	names map[string]string
	gate  chan struct{}
	calls atomic.Int32
}

func (s *stubLookup) Lookup(ctx context.Context, id string) (string, bool) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", false
		}
	}
	name, ok := s.names[id]
	return name, ok
}

func waitEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return bus.Event{}
	}
}

func TestResolvePublishesName(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("names.", 10)
	defer unsub()

	c := NewCache(&stubLookup{names: map[string]string{"+15551234567": "Ada"}}, b, nil, CacheOptions{MaxConcurrent: 2})
	defer c.Close()

	if _, ok := c.Name("+15551234567"); ok {
		t.Fatal("name cached before resolution")
	}
	c.Resolve("+15551234567")

	evt := waitEvent(t, ch)
	got, ok := evt.Payload.(Resolved)
	if !ok || got.ID != "+15551234567" || got.Name != "Ada" {
		t.Errorf("payload = %#v", evt.Payload)
	}
	if name, ok := c.Name("+15551234567"); !ok || name != "Ada" {
		t.Errorf("Name() = (%q, %v), want Ada", name, ok)
	}
}

func TestResolveDeduplicates(t *testing.T) {
	lookup := &stubLookup{names: map[string]string{"+1555": "Ada"}, gate: make(chan struct{})}
	c := NewCache(lookup, nil, nil, CacheOptions{MaxConcurrent: 4})
	defer c.Close()

	for range 50 {
		c.Resolve("+1555")
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ResolveNow(context.Background(), "+1555")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(lookup.gate)
	wg.Wait()
	c.Close()

	if n := lookup.calls.Load(); n != 1 {
		t.Errorf("lookups = %d, want 1", n)
	}
	c.Resolve("+1555")
	if n := lookup.calls.Load(); n != 1 {
		t.Errorf("lookups after cache hit = %d, want 1", n)
	}
}

func TestResolveSkipsNonHandles(t *testing.T) {
	lookup := &stubLookup{}
	c := NewCache(lookup, nil, nil, CacheOptions{})
	c.Resolve("chat123456")
	c.Resolve("")
	c.Close()

	if n := lookup.calls.Load(); n != 0 {
		t.Errorf("lookups = %d, want 0", n)
	}
}

func TestMissRetryAfter(t *testing.T) {
	lookup := &stubLookup{names: map[string]string{}}
	c := NewCache(lookup, nil, nil, CacheOptions{RetryAfter: time.Minute})
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, ok := c.ResolveNow(context.Background(), "+1555"); ok {
		t.Fatal("ResolveNow() found a name")
	}

	c.Resolve("+1555")
	c.wg.Wait()
	if n := lookup.calls.Load(); n != 1 {
		t.Errorf("lookups inside retry window = %d, want 1", n)
	}

	now = now.Add(2 * time.Minute)
	lookup.names["+1555"] = "Ada"
	c.Resolve("+1555")
	c.wg.Wait()
	if n := lookup.calls.Load(); n != 2 {
		t.Errorf("lookups after retry window = %d, want 2", n)
	}
	if name, _ := c.Name("+1555"); name != "Ada" {
		t.Errorf("Name() = %q, want Ada", name)
	}
}
