// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// region is an anonymous MAP_SHARED mapping. It has no descriptor.
type region struct {
	data   []byte
	fd     int
	shared bool
}

func mapRegion(_ string, size int) (*region, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap %d: %w", size, err)
	}
	return &region{data: data, fd: -1, shared: true}, nil
}

func (r *region) readAt([]byte, int64) (int, error) {
	return 0, ErrNoHandle
}

func (r *region) unmap() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
