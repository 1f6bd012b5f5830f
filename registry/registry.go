// Package registry holds the set of known peers and their liveness.
// It is the only state shared across the discovery, transport and sync
// components: discovery writes, everyone else reads snapshots.
package registry

import (
	"sort"
	"sync"
	"time"
)

// DeviceInfo describes one peer on the network.
type DeviceInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Port     uint16    `json:"port"`
	LastSeen time.Time `json:"last_seen"`
}

// Registry maps device id -> DeviceInfo. Entries are stored by value so a
// reader can never observe a half-written entry: every mutation replaces the
// whole entry under the lock.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]DeviceInfo
	ttl   time.Duration
}

// New creates a Registry with the given staleness threshold.
func New(ttl time.Duration) *Registry {
	return &Registry{
		peers: make(map[string]DeviceInfo),
		ttl:   ttl,
	}
}

// Upsert inserts or refreshes a peer. LastSeen is reset to now when the
// caller left it zero. Returns true when the peer was not known before.
func (r *Registry) Upsert(info DeviceInfo) bool {
	if info.LastSeen.IsZero() {
		info.LastSeen = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, exists := r.peers[info.ID]
	if exists && info.LastSeen.Before(prev.LastSeen) {
		// Late datagram; keep the fresher entry.
		return false
	}
	r.peers[info.ID] = info
	return !exists
}

// Remove deletes a peer. Returns true when it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[id]
	delete(r.peers, id)
	return ok
}

// Get returns a copy of one peer's info.
func (r *Registry) Get(id string) (DeviceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.peers[id]
	return info, ok
}

// Sweep evicts peers whose LastSeen is older than the TTL relative to now
// and returns the removed ids.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, info := range r.peers {
		if now.Sub(info.LastSeen) > r.ttl {
			delete(r.peers, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Snapshot returns a copy of all known peers, sorted by name for stable
// iteration and API output.
func (r *Registry) Snapshot() []DeviceInfo {
	r.mu.RLock()
	peers := make([]DeviceInfo, 0, len(r.peers))
	for _, info := range r.peers {
		peers = append(peers, info)
	}
	r.mu.RUnlock()
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Name != peers[j].Name {
			return peers[i].Name < peers[j].Name
		}
		return peers[i].ID < peers[j].ID
	})
	return peers
}

// Len returns the number of known peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
