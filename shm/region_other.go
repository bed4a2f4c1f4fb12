// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package shm

// region falls back to process memory where no shared mapping is wired up.
// Producer and presenter still share it within the process.
type region struct {
	data   []byte
	fd     int
	shared bool
}

func mapRegion(_ string, size int) (*region, error) {
	return &region{data: make([]byte, size), fd: -1}, nil
}

func (r *region) readAt([]byte, int64) (int, error) {
	return 0, ErrNoHandle
}

func (r *region) unmap() error {
	r.data = nil
	return nil
}
