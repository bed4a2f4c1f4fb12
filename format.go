// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framelink

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// PixelFormat is the fixed pixel layout agreed by producer and presenter.
// Both supported layouts are 4 bytes per pixel, 8 bits per channel.
type PixelFormat uint8

const (
	// FormatRGBA8 stores R, G, B, A bytes in memory order.
	FormatRGBA8 PixelFormat = iota + 1

	// FormatBGRA8 stores B, G, R, A bytes in memory order.
	FormatBGRA8
)

// BytesPerPixel is the size of one pixel for every supported format.
const BytesPerPixel = 4

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatBGRA8:
		return "bgra8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// Valid reports whether f is a supported format.
func (f PixelFormat) Valid() bool {
	return f == FormatRGBA8 || f == FormatBGRA8
}

// TextureFormat returns the matching GPU texture format.
func (f PixelFormat) TextureFormat() gputypes.TextureFormat {
	switch f {
	case FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// FormatFromTexture maps a GPU texture format back to a PixelFormat.
func FormatFromTexture(tf gputypes.TextureFormat) (PixelFormat, error) {
	switch tf {
	case gputypes.TextureFormatRGBA8Unorm:
		return FormatRGBA8, nil
	case gputypes.TextureFormatBGRA8Unorm:
		return FormatBGRA8, nil
	default:
		return 0, fmt.Errorf("%w: texture format %v", ErrUnsupportedFormat, tf)
	}
}

// ParsePixelFormat parses "rgba8" or "bgra8" (case-insensitive).
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rgba8", "rgba":
		return FormatRGBA8, nil
	case "bgra8", "bgra":
		return FormatBGRA8, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}
