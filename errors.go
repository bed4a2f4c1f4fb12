// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framelink

import (
	"errors"
)

// Pipeline error kinds.
var (
	// ErrAllocationFailed is returned when the shared surface cannot be created.
	// Fatal to initialization: the pipeline must not be started.
	ErrAllocationFailed = errors.New("framelink: shared surface allocation failed")

	// ErrInitFailed is returned when a graphics context, device or pipeline
	// state cannot be set up. Fatal to initialization.
	ErrInitFailed = errors.New("framelink: initialization failed")

	// ErrImportFailed is returned when a texture importer cannot bind the
	// shared surface for one frame. Non-fatal: the presenter skips the tick.
	ErrImportFailed = errors.New("framelink: texture import failed")

	// ErrStaleBinding is returned when a texture binding refers to a shared
	// surface that has since been replaced or destroyed.
	ErrStaleBinding = errors.New("framelink: stale texture binding")

	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = errors.New("framelink: invalid dimensions")

	// ErrUnsupportedFormat is returned for pixel formats other than the fixed
	// 4-byte layouts.
	ErrUnsupportedFormat = errors.New("framelink: unsupported pixel format")

	// ErrNotInitialized is returned when an operation requires Initialize first.
	ErrNotInitialized = errors.New("framelink: not initialized")

	// ErrClosed is returned when operations are attempted after Close.
	ErrClosed = errors.New("framelink: closed")
)

// ImportError describes a failed texture import for one method.
// It matches both ErrImportFailed and the underlying cause with errors.Is.
type ImportError struct {
	Method ImportMethod
	Err    error
}

func (e *ImportError) Error() string {
	if e.Err == nil {
		return "framelink: texture import failed (" + e.Method.String() + ")"
	}
	return "framelink: texture import failed (" + e.Method.String() + "): " + e.Err.Error()
}

// Unwrap exposes ErrImportFailed and the cause.
func (e *ImportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrImportFailed}
	}
	return []error{ErrImportFailed, e.Err}
}
