package discovery

import (
	"encoding/json"
	"fmt"

	"lanclip/registry"
)

// Message types on the discovery wire.
const (
	TypeAnnounce = "announce" // periodic presence broadcast to the group
	TypeResponse = "response" // unicast reply to an announce, never broadcast
	TypeGoodbye  = "goodbye"  // best-effort leave notice, removes the peer immediately
)

// Message is a discovery datagram: a type tag plus the sender's DeviceInfo.
// LastSeen is filled by the receiver, not sent on the wire.
type Message struct {
	Type   string              `json:"type"`
	Device registry.DeviceInfo `json:"device"`
}

// Encode serializes a Message for the wire.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a datagram payload. Unknown types are rejected so the
// listener only ever dispatches on the three known tags.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("discovery: parse datagram: %w", err)
	}
	switch m.Type {
	case TypeAnnounce, TypeResponse, TypeGoodbye:
	default:
		return Message{}, fmt.Errorf("discovery: unknown message type %q", m.Type)
	}
	if m.Device.ID == "" {
		return Message{}, fmt.Errorf("discovery: message without device id")
	}
	return m, nil
}
