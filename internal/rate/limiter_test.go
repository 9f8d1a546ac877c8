package rate

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := NewMemory()
	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("0xabc", 3, time.Minute)
		if !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	ok, retry := l.Allow("0xabc", 3, time.Minute)
	if ok {
		t.Fatal("fourth attempt should be rejected")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("retry-after out of range: %v", retry)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewMemory()
	if ok, _ := l.Allow("a", 1, time.Minute); !ok {
		t.Fatal("first key should be allowed")
	}
	if ok, _ := l.Allow("a", 1, time.Minute); ok {
		t.Fatal("first key should be exhausted")
	}
	if ok, _ := l.Allow("b", 1, time.Minute); !ok {
		t.Fatal("second key should have its own bucket")
	}
}

func TestWindowExpiryResets(t *testing.T) {
	l := NewMemory()
	l.Allow("k", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if ok, _ := l.Allow("k", 1, time.Millisecond); !ok {
		t.Fatal("expired window should reset the bucket")
	}
}

func TestPruneDropsClosedWindows(t *testing.T) {
	l := NewMemory()
	l.Allow("stale", 1, time.Millisecond)
	l.Allow("fresh", 1, time.Hour)
	time.Sleep(5 * time.Millisecond)
	if removed := l.Prune(); removed != 1 {
		t.Fatalf("expected one pruned bucket, got %d", removed)
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Fatal("live bucket should survive pruning")
	}
}
