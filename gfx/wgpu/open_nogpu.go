// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/framelink"
)

// Open is unavailable in nogpu builds.
func Open() (*Context, error) {
	return nil, fmt.Errorf("%w: built with nogpu", framelink.ErrInitFailed)
}
