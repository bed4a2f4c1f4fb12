// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// region is a memfd mapped MAP_SHARED.
type region struct {
	data   []byte
	fd     int
	shared bool
}

func mapRegion(name string, size int) (*region, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ftruncate %d: %w", size, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap %d: %w", size, err)
	}
	return &region{data: data, fd: fd, shared: true}, nil
}

func (r *region) readAt(dst []byte, off int64) (int, error) {
	n, err := unix.Pread(r.fd, dst, off)
	if err != nil {
		return n, fmt.Errorf("pread: %w", err)
	}
	return n, nil
}

func (r *region) unmap() error {
	var firstErr error
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			firstErr = fmt.Errorf("munmap: %w", err)
		}
		r.data = nil
	}
	if r.fd >= 0 {
		if err := unix.Close(r.fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close: %w", err)
		}
		r.fd = -1
	}
	return firstErr
}
