package protocol

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMessageRoundTrip(t *testing.T) {
	cases := []Content{
		TextContent("hello"),
		TextContent(""),
		ImageContent(800, 600, []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}),
		EmptyContent(),
	}
	for _, content := range cases {
		in := NewMessage(content, "sender-id", "laptop")
		data, err := Encode(in)
		if err != nil {
			t.Fatalf("%s: encode: %v", content.Kind, err)
		}
		out, err := Decode(data)
		if err != nil {
			t.Fatalf("%s: decode: %v", content.Kind, err)
		}
		if out.MessageID != in.MessageID || out.SenderID != in.SenderID || out.SenderName != in.SenderName {
			t.Errorf("%s: identity mismatch: %+v", content.Kind, out)
		}
		if out.Content.Kind != content.Kind || out.Content.Text != content.Text ||
			out.Content.Width != content.Width || out.Content.Height != content.Height ||
			!bytes.Equal(out.Content.Data, content.Data) {
			t.Errorf("%s: content mismatch: got %+v want %+v", content.Kind, out.Content, content)
		}
		if !out.Timestamp.Truncate(time.Millisecond).Equal(in.Timestamp.Truncate(time.Millisecond)) {
			t.Errorf("%s: timestamp drifted: got %v want %v", content.Kind, out.Timestamp, in.Timestamp)
		}
	}
}

func TestNewMessageFreshIDs(t *testing.T) {
	a := NewMessage(TextContent("x"), "s", "n")
	b := NewMessage(TextContent("x"), "s", "n")
	if a.MessageID == b.MessageID {
		t.Error("two logical changes got the same message id")
	}
}

func TestDecodeRejectsMissingIDs(t *testing.T) {
	data, err := Encode(Message{Content: TextContent("x")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data); err == nil {
		t.Error("expected error for message without ids")
	}
	if _, err := Decode([]byte("garbage")); err == nil {
		t.Error("expected error for garbage payload")
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("ab", 40)
	if got := TextContent(long).Preview(10); got != long[:10]+"..." {
		t.Errorf("long text preview: %q", got)
	}
	if got := TextContent("short").Preview(10); got != "short" {
		t.Errorf("short text preview: %q", got)
	}
	// Rune-safe truncation must not split multibyte characters.
	if got := TextContent("日本語のテキストです").Preview(3); got != "日本語..." {
		t.Errorf("multibyte preview: %q", got)
	}
	if got := ImageContent(12, 34, make([]byte, 5)).Preview(10); got != "image 12x34 (5 bytes)" {
		t.Errorf("image preview: %q", got)
	}
	if got := EmptyContent().Preview(10); got != "(empty)" {
		t.Errorf("empty preview: %q", got)
	}
}
