package cache

import (
	"testing"
	"time"
)

func TestHotCacheLoadPopulatesFromDisk(t *testing.T) {
	dir := t.TempDir()
	disk, _ := NewMapCache(dir)
	disk.Save("example.com", mkMap("example.com"))

	hot := NewHotCache(disk, 10, time.Minute)

	m, err := hot.Load("example.com")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Domain != "example.com" {
		t.Fatalf("unexpected domain: %s", m.Domain)
	}

	hot.mu.RLock()
	_, cached := hot.store["example.com"]
	hot.mu.RUnlock()
	if !cached {
		t.Fatal("expected domain to be hot-cached after Load")
	}
}

func TestHotCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	disk, _ := NewMapCache(dir)
	disk.Save("example.com", mkMap("example.com"))

	hot := NewHotCache(disk, 10, time.Millisecond)
	if _, err := hot.Load("example.com"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	// Stale hot entry forces a disk re-load rather than erroring.
	m, err := hot.Load("example.com")
	if err != nil {
		t.Fatalf("Load after expiry: %v", err)
	}
	if m.Domain != "example.com" {
		t.Fatalf("unexpected domain: %s", m.Domain)
	}
}

func TestHotCacheInvalidate(t *testing.T) {
	dir := t.TempDir()
	disk, _ := NewMapCache(dir)
	disk.Save("example.com", mkMap("example.com"))

	hot := NewHotCache(disk, 10, time.Minute)
	hot.Load("example.com")
	hot.Invalidate("example.com")

	hot.mu.RLock()
	_, cached := hot.store["example.com"]
	hot.mu.RUnlock()
	if cached {
		t.Fatal("expected hot entry removed after Invalidate")
	}
}

func TestHotCacheEvictsAtCapacity(t *testing.T) {
	dir := t.TempDir()
	disk, _ := NewMapCache(dir)
	disk.Save("a.com", mkMap("a.com"))
	disk.Save("b.com", mkMap("b.com"))
	disk.Save("c.com", mkMap("c.com"))

	hot := NewHotCache(disk, 2, time.Minute)
	hot.Load("a.com")
	hot.Load("b.com")
	hot.Load("c.com")

	hot.mu.RLock()
	count := len(hot.store)
	hot.mu.RUnlock()
	if count > 2 {
		t.Fatalf("expected capacity-bounded store, got %d entries", count)
	}
}
