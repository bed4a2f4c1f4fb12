// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package texture binds shared surface buffers as sampleable textures.
//
// An Importer is one strategy for turning a shm.Buffer into a gfx.Texture on
// a given gfx.Context. Four strategies ship with the package:
//
//   - LegacyTextureCache wraps the buffer through the legacy API's texture
//     cache. No pixel copy.
//   - ModernDirectTexture constructs a modern-API texture directly over the
//     shared memory. No pixel copy.
//   - CopyFallback uploads the pixels into an API-native texture. Works on
//     every context.
//   - LegacyExtension reads the buffer through the legacy external-memory
//     extension. It copies, and is kept for compatibility testing only.
//
// Imports produce a Binding. Bindings register with their buffer, so
// destroying the buffer invalidates every live binding before the memory is
// unmapped; an invalidated binding reports framelink.ErrStaleBinding and
// never hands out its texture.
//
// The Registry orders importers by priority and picks the best one a
// context supports. Cache keeps one binding alive across frames while the
// buffer identity and generation are unchanged.
package texture
