// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shm allocates the shared surface that carries one frame between the
// producer and the presenter.
//
// A Buffer is a single platform shared-memory region sized for one frame of a
// fixed 4-byte pixel format. On Linux it is a memfd mapped with MAP_SHARED, so
// the region also has a file descriptor that other address spaces (or an
// external-memory extension) can map. Other BSD-family systems use an
// anonymous shared mapping; remaining platforms fall back to heap memory.
//
// A Buffer never changes size or format. Replacing it means allocating a new
// Buffer, which gets a new generation number.
//
// Texture bindings that reference the memory register themselves with Track.
// Destroy invalidates every tracked binding before the memory is unmapped, so
// no binding can outlive the region it points at.
package shm
