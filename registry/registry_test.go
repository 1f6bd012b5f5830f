package registry

import (
	"sync"
	"testing"
	"time"
)

func device(id, name string, seen time.Time) DeviceInfo {
	return DeviceInfo{ID: id, Name: name, Address: "192.168.1.10", Port: 8766, LastSeen: seen}
}

func TestUpsertInsertAndRefresh(t *testing.T) {
	r := New(10 * time.Second)

	first := device("a", "alpha", time.Now().Add(-5*time.Second))
	if isNew := r.Upsert(first); !isNew {
		t.Error("first upsert should report a new peer")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 peer, got %d", r.Len())
	}

	refreshed := device("a", "alpha", time.Now())
	if isNew := r.Upsert(refreshed); isNew {
		t.Error("refresh should not report a new peer")
	}
	got, ok := r.Get("a")
	if !ok {
		t.Fatal("peer a missing after refresh")
	}
	if !got.LastSeen.Equal(refreshed.LastSeen) {
		t.Errorf("LastSeen not refreshed: got %v want %v", got.LastSeen, refreshed.LastSeen)
	}
}

func TestUpsertKeepsFresherEntry(t *testing.T) {
	r := New(10 * time.Second)
	now := time.Now()
	r.Upsert(device("a", "alpha", now))
	// A datagram that was delayed in flight must not roll LastSeen back.
	r.Upsert(device("a", "alpha", now.Add(-3*time.Second)))
	got, _ := r.Get("a")
	if !got.LastSeen.Equal(now) {
		t.Errorf("stale upsert overwrote fresher entry: got %v want %v", got.LastSeen, now)
	}
}

func TestUpsertDefaultsLastSeen(t *testing.T) {
	r := New(10 * time.Second)
	r.Upsert(DeviceInfo{ID: "a", Name: "alpha"})
	got, _ := r.Get("a")
	if got.LastSeen.IsZero() {
		t.Error("zero LastSeen should be set to now on upsert")
	}
}

func TestRemove(t *testing.T) {
	r := New(10 * time.Second)
	r.Upsert(device("a", "alpha", time.Now()))
	if !r.Remove("a") {
		t.Error("removing a known peer should return true")
	}
	if r.Remove("a") {
		t.Error("removing an unknown peer should return false")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d peers", r.Len())
	}
}

func TestSweepEvictsOnlyStalePeers(t *testing.T) {
	r := New(10 * time.Second)
	now := time.Now()
	r.Upsert(device("stale", "old", now.Add(-15*time.Second)))
	r.Upsert(device("fresh", "new", now.Add(-2*time.Second)))

	removed := r.Sweep(now)
	if len(removed) != 1 || removed[0] != "stale" {
		t.Fatalf("expected [stale] removed, got %v", removed)
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("fresh peer must survive the sweep")
	}
	if _, ok := r.Get("stale"); ok {
		t.Error("stale peer must be gone after the sweep")
	}
}

func TestFresherAnnouncementBeforeTTLRetainsPeer(t *testing.T) {
	r := New(10 * time.Second)
	now := time.Now()
	r.Upsert(device("a", "alpha", now.Add(-9*time.Second)))
	// Announcement arrives just before the TTL would expire.
	r.Upsert(device("a", "alpha", now))
	if removed := r.Sweep(now.Add(5 * time.Second)); len(removed) != 0 {
		t.Errorf("refreshed peer evicted: %v", removed)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New(10 * time.Second)
	r.Upsert(device("b", "bravo", time.Now()))
	r.Upsert(device("a", "alpha", time.Now()))

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 peers in snapshot, got %d", len(snap))
	}
	if snap[0].Name != "alpha" || snap[1].Name != "bravo" {
		t.Errorf("snapshot not sorted by name: %v", snap)
	}
	snap[0].Name = "mutated"
	got, _ := r.Get("a")
	if got.Name != "alpha" {
		t.Error("mutating a snapshot entry must not affect the registry")
	}
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	r := New(time.Minute)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			r.Upsert(device("a", "alpha", time.Now()))
			r.Upsert(device("b", "bravo", time.Now()))
			r.Remove("b")
			r.Sweep(time.Now())
		}
		close(done)
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, info := range r.Snapshot() {
					if info.ID == "" {
						t.Error("observed half-written entry")
						return
					}
				}
				r.Get("a")
				r.Len()
			}
		}()
	}
	wg.Wait()
}
