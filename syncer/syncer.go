// Package syncer polls the local clipboard, broadcasts detected changes to
// peers and applies inbound updates without echoing them back.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"lanclip/protocol"
)

const (
	appliedRetention  = 2 * time.Minute
	appliedMaxEntries = 1024
	cleanupInterval   = 30 * time.Second
	previewLen        = 50
)

// Clipboard is the local clipboard capability the engine polls and writes.
type Clipboard interface {
	Read() (protocol.Content, error)
	Write(protocol.Content) error
}

// Broadcaster delivers a message to every known peer.
type Broadcaster interface {
	SendToAll(protocol.Message) (int, error)
}

// Notifier shows a fire-and-forget desktop notification.
type Notifier interface {
	Send(title, body string)
}

// Event is one sync action, kept in a short in-memory history for the
// status API.
type Event struct {
	Time      time.Time `json:"time"`
	Direction string    `json:"direction"` // "sent" or "applied"
	Peer      string    `json:"peer,omitempty"`
	Preview   string    `json:"preview"`
}

// Stats counts sync activity since start.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Applied uint64 `json:"applied"`
}

// Engine is the change-propagation loop. It tracks the last known content
// hash per clipboard slot (text, image) and a bounded recently-applied set
// keyed by message id, which together suppress echo loops.
type Engine struct {
	selfID   string
	selfName string
	clip     Clipboard
	out      Broadcaster
	notifier Notifier
	interval time.Duration

	mu       sync.Mutex
	lastHash map[string]string    // content kind -> hash of last known content
	applied  map[string]time.Time // message id -> time applied or sent
	events   []Event
	stats    Stats
}

// New creates an Engine. selfID must be the id announced by discovery so
// echoed-back own messages are recognized.
func New(selfID, selfName string, clip Clipboard, out Broadcaster, notifier Notifier, interval time.Duration) *Engine {
	return &Engine{
		selfID:   selfID,
		selfName: selfName,
		clip:     clip,
		out:      out,
		notifier: notifier,
		interval: interval,
		lastHash: make(map[string]string),
		applied:  make(map[string]time.Time),
	}
}

// Run polls the clipboard until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	poll := time.NewTicker(e.interval)
	defer poll.Stop()
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()
	log.Printf("sync: polling clipboard every %s", e.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sync: stopped")
			return
		case <-poll.C:
			e.pollOnce()
		case <-cleanup.C:
			e.pruneApplied(time.Now())
		}
	}
}

// pollOnce reads the clipboard and broadcasts when the content changed and
// was not just applied from a remote message.
func (e *Engine) pollOnce() {
	content, err := e.clip.Read()
	if err != nil {
		// Clipboard access failure skips this cycle; the next tick retries.
		log.Printf("sync: read clipboard: %v", err)
		return
	}
	e.mu.Lock()
	if content.Kind == protocol.KindEmpty {
		// Cleared clipboard: forget slot state so re-copying the same
		// content counts as a new change.
		if len(e.lastHash) > 0 {
			e.lastHash = make(map[string]string)
		}
		e.mu.Unlock()
		return
	}
	hash := hashContent(content)
	if e.lastHash[content.Kind] == hash {
		e.mu.Unlock()
		return
	}
	e.lastHash[content.Kind] = hash
	msg := protocol.NewMessage(content, e.selfID, e.selfName)
	// Record our own message id so a buggy peer echoing it back is a no-op.
	e.applied[msg.MessageID] = time.Now()
	e.mu.Unlock()

	sent, err := e.out.SendToAll(msg)
	if err != nil {
		log.Printf("sync: broadcast %s: %v", msg.Content.Preview(previewLen), err)
	}
	if sent > 0 {
		log.Printf("sync: broadcast %s to %d peers", msg.Content.Preview(previewLen), sent)
	}
	e.mu.Lock()
	e.stats.Sent++
	e.record(Event{Time: msg.Timestamp, Direction: "sent", Preview: msg.Content.Preview(previewLen)})
	e.mu.Unlock()
}

// Apply handles one inbound message from the transport. Duplicates and own
// messages are discarded; everything else is written to the clipboard with
// the slot hash updated first, so the next poll does not re-broadcast it.
func (e *Engine) Apply(msg protocol.Message) {
	if msg.SenderID == e.selfID {
		return
	}
	e.mu.Lock()
	if _, seen := e.applied[msg.MessageID]; seen {
		e.mu.Unlock()
		return
	}
	if err := e.clip.Write(msg.Content); err != nil {
		e.mu.Unlock()
		log.Printf("sync: write clipboard: %v", err)
		return
	}
	e.lastHash[msg.Content.Kind] = hashContent(msg.Content)
	e.applied[msg.MessageID] = time.Now()
	e.stats.Applied++
	e.record(Event{Time: time.Now(), Direction: "applied", Peer: msg.SenderName, Preview: msg.Content.Preview(previewLen)})
	e.mu.Unlock()

	log.Printf("sync: applied %s from %s", msg.Content.Preview(previewLen), msg.SenderName)
	e.notifier.Send("Clipboard synced from "+msg.SenderName, msg.Content.Preview(previewLen))
}

// pruneApplied expires recently-applied entries past the retention window
// and bounds the set when a burst outruns the window.
func (e *Engine) pruneApplied(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, at := range e.applied {
		if now.Sub(at) > appliedRetention {
			delete(e.applied, id)
		}
	}
	if len(e.applied) <= appliedMaxEntries {
		return
	}
	// Still over the cap: drop the oldest entries.
	type entry struct {
		id string
		at time.Time
	}
	all := make([]entry, 0, len(e.applied))
	for id, at := range e.applied {
		all = append(all, entry{id, at})
	}
	for len(all) > appliedMaxEntries {
		oldest := 0
		for i := range all {
			if all[i].at.Before(all[oldest].at) {
				oldest = i
			}
		}
		delete(e.applied, all[oldest].id)
		all[oldest] = all[len(all)-1]
		all = all[:len(all)-1]
	}
}

// record appends to the bounded event history.
func (e *Engine) record(ev Event) {
	const maxEvents = 50
	e.events = append(e.events, ev)
	if len(e.events) > maxEvents {
		e.events = e.events[len(e.events)-maxEvents:]
	}
}

// Events returns a copy of the recent sync history, newest last.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// CurrentStats returns the activity counters.
func (e *Engine) CurrentStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// hashContent hashes the content of one slot. The kind participates so a
// text and an image never collide.
func hashContent(c protocol.Content) string {
	h := sha256.New()
	h.Write([]byte(c.Kind))
	h.Write([]byte{0})
	switch c.Kind {
	case protocol.KindText:
		h.Write([]byte(c.Text))
	case protocol.KindImage:
		h.Write(c.Data)
	case protocol.KindEmpty:
	}
	return hex.EncodeToString(h.Sum(nil))
}
