// Package protocol defines the clipboard messages exchanged between peers
// and their wire encoding.
package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Content kinds. Content is a closed variant: every switch over Kind must
// handle all three.
const (
	KindText  = "text"
	KindImage = "image"
	KindEmpty = "empty"
)

// Content is one clipboard payload: text, or a PNG-encoded image with its
// pixel dimensions.
type Content struct {
	Kind   string `msgpack:"kind" json:"kind"`
	Text   string `msgpack:"text,omitempty" json:"text,omitempty"`
	Width  uint32 `msgpack:"width,omitempty" json:"width,omitempty"`
	Height uint32 `msgpack:"height,omitempty" json:"height,omitempty"`
	Data   []byte `msgpack:"data,omitempty" json:"-"`
}

// TextContent builds a text Content.
func TextContent(text string) Content {
	return Content{Kind: KindText, Text: text}
}

// ImageContent builds an image Content from PNG bytes.
func ImageContent(width, height uint32, data []byte) Content {
	return Content{Kind: KindImage, Width: width, Height: height, Data: data}
}

// EmptyContent is the zero clipboard.
func EmptyContent() Content {
	return Content{Kind: KindEmpty}
}

// Preview returns a short human-readable form of the content, rune-safe
// truncated for logs and notifications.
func (c Content) Preview(max int) string {
	switch c.Kind {
	case KindText:
		runes := []rune(c.Text)
		if len(runes) > max {
			return string(runes[:max]) + "..."
		}
		return c.Text
	case KindImage:
		return fmt.Sprintf("image %dx%d (%d bytes)", c.Width, c.Height, len(c.Data))
	case KindEmpty:
		return "(empty)"
	default:
		return "(unknown)"
	}
}

// Message is one clipboard update on the wire. MessageID is unique per
// logical change and is the deduplication key on the receiving side.
type Message struct {
	Content    Content   `msgpack:"content" json:"content"`
	Timestamp  time.Time `msgpack:"timestamp" json:"timestamp"`
	SenderID   string    `msgpack:"sender_id" json:"sender_id"`
	SenderName string    `msgpack:"sender_name" json:"sender_name"`
	MessageID  string    `msgpack:"message_id" json:"message_id"`
}

// NewMessage stamps content with a fresh message id and the sender identity.
func NewMessage(content Content, senderID, senderName string) Message {
	return Message{
		Content:    content,
		Timestamp:  time.Now(),
		SenderID:   senderID,
		SenderName: senderName,
		MessageID:  uuid.NewString(),
	}
}

// Encode serializes a Message for framing.
func Encode(m Message) ([]byte, error) {
	return msgpack.Marshal(m)
}

// Decode parses a framed payload.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("protocol: decode message: %w", err)
	}
	if m.MessageID == "" || m.SenderID == "" {
		return Message{}, fmt.Errorf("protocol: message missing ids")
	}
	return m, nil
}
