// Package notify shows desktop notifications for applied remote updates.
package notify

import (
	"log"

	"github.com/gen2brain/beeep"
)

// Notifier sends fire-and-forget desktop notifications. Failures are logged
// and otherwise ignored; notification is never on the sync path's critical
// path.
type Notifier struct {
	enabled bool
}

// New creates a Notifier. When disabled, Send is a no-op.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// Send shows one notification.
func (n *Notifier) Send(title, body string) {
	if !n.enabled {
		return
	}
	if err := beeep.Notify(title, body, ""); err != nil {
		log.Printf("notify: %v", err)
	}
}
