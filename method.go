// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framelink

import (
	"fmt"
	"strings"
)

// ImportMethod selects how the presenter binds the shared surface as a texture.
type ImportMethod uint8

const (
	// MethodAuto picks the highest-priority method the presenter's
	// graphics context supports.
	MethodAuto ImportMethod = iota

	// MethodLegacyTextureCache wraps the shared surface through the legacy
	// raster API's texture cache. Zero-copy.
	MethodLegacyTextureCache

	// MethodModernDirectTexture constructs a lower-level API texture
	// directly over the shared memory. Zero-copy.
	MethodModernDirectTexture

	// MethodCopyFallback uploads the pixels into an API-native texture.
	// Works everywhere; used when no zero-copy path is available.
	MethodCopyFallback

	// MethodLegacyExtension reads the surface through the legacy external
	// memory extension. Not zero-copy on supported platforms; kept for
	// compatibility testing only.
	MethodLegacyExtension
)

var methodNames = [...]string{
	MethodAuto:                "auto",
	MethodLegacyTextureCache:  "legacy-texture-cache",
	MethodModernDirectTexture: "modern-direct-texture",
	MethodCopyFallback:        "copy-fallback",
	MethodLegacyExtension:     "legacy-extension",
}

// String returns the canonical method name.
func (m ImportMethod) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("ImportMethod(%d)", uint8(m))
}

// ZeroCopy reports whether the method shares the pixel payload without copying.
func (m ImportMethod) ZeroCopy() bool {
	return m == MethodLegacyTextureCache || m == MethodModernDirectTexture
}

// Methods returns every concrete import method (MethodAuto excluded).
func Methods() []ImportMethod {
	return []ImportMethod{
		MethodLegacyTextureCache,
		MethodModernDirectTexture,
		MethodCopyFallback,
		MethodLegacyExtension,
	}
}

// ParseImportMethod parses a method name as returned by String.
func ParseImportMethod(s string) (ImportMethod, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range methodNames {
		if n == name {
			return ImportMethod(m), nil
		}
	}
	return MethodAuto, fmt.Errorf("framelink: unknown import method %q", s)
}
