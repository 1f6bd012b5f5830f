// Package clipboard provides access to the OS clipboard as text or
// PNG-encoded image content.
package clipboard

import (
	"bytes"
	"fmt"
	"image/png"

	xclip "golang.design/x/clipboard"

	"lanclip/protocol"
)

// System reads and writes the OS clipboard through
// golang.design/x/clipboard. It satisfies the sync engine's Clipboard
// capability.
type System struct{}

// NewSystem initializes the OS clipboard binding.
func NewSystem() (*System, error) {
	if err := xclip.Init(); err != nil {
		return nil, fmt.Errorf("clipboard: init: %w", err)
	}
	return &System{}, nil
}

// Read probes the image slot first, then text; an empty clipboard yields
// empty content, not an error.
func (s *System) Read() (protocol.Content, error) {
	if data := xclip.Read(xclip.FmtImage); len(data) > 0 {
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return protocol.Content{}, fmt.Errorf("clipboard: probe image: %w", err)
		}
		return protocol.ImageContent(uint32(cfg.Width), uint32(cfg.Height), data), nil
	}
	if data := xclip.Read(xclip.FmtText); len(data) > 0 {
		return protocol.TextContent(string(data)), nil
	}
	return protocol.EmptyContent(), nil
}

// Write places content on the clipboard. Empty content is a no-op so a
// remote empty-clipboard state never clears local content.
func (s *System) Write(content protocol.Content) error {
	switch content.Kind {
	case protocol.KindText:
		xclip.Write(xclip.FmtText, []byte(content.Text))
		return nil
	case protocol.KindImage:
		xclip.Write(xclip.FmtImage, content.Data)
		return nil
	case protocol.KindEmpty:
		return nil
	default:
		return fmt.Errorf("clipboard: unknown content kind %q", content.Kind)
	}
}
