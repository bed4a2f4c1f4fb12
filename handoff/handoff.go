// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package handoff implements the synchronization point between the producer
// and the presenter: a mutex, a "new frame available" flag, a rendering gate
// and the usage state of the shared buffer.
//
// The lock is held only for flag and state updates. No graphics work happens
// inside it.
//
// State transitions of the attached buffer:
//
//	Idle ──BeginWrite──▶ Writing ──CommitWrite──▶ Ready ──Acquire──▶ Importing
//	  ▲                    │                        │                    │
//	  └────AbortWrite──────┘   BeginWrite (overwrite)┘        Release────┘
//
// There is no queue: at most one frame is ever pending. BeginWrite
// overwrites a Ready frame that has not been acquired. TryBeginWrite keeps it
// and fails with ErrPending, so a free-running producer cannot revoke the
// last complete frame before a tick sees it.
package handoff

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/shm"
)

// Handoff errors.
var (
	// ErrNoBuffer is returned when no buffer is attached.
	ErrNoBuffer = errors.New("handoff: no buffer attached")

	// ErrBusy is returned when the buffer is held by the other side.
	ErrBusy = errors.New("handoff: buffer busy")

	// ErrPending is returned by TryBeginWrite while a complete frame waits
	// for the presenter.
	ErrPending = errors.New("handoff: frame pending")

	// ErrNotRendering is returned when a write is attempted or committed
	// while the rendering gate is closed.
	ErrNotRendering = errors.New("handoff: rendering stopped")
)

// State is the usage state of the attached buffer.
type State uint8

const (
	// StateIdle means nobody holds the buffer and it has no pending frame.
	StateIdle State = iota

	// StateWriting means the producer owns the buffer. Contents are unsafe
	// to read.
	StateWriting

	// StateReady means the buffer holds a complete frame not yet acquired.
	StateReady

	// StateImporting means the presenter owns the buffer.
	StateImporting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWriting:
		return "writing"
	case StateReady:
		return "ready"
	case StateImporting:
		return "importing"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Frame identifies one write or one acquisition of the attached buffer.
type Frame struct {
	// Buffer is the shared buffer holding the pixels.
	Buffer *shm.Buffer

	// Generation is the buffer generation at the time of the call.
	Generation uint64

	// Seq is the frame sequence number, starting at 1.
	Seq uint64
}

// Stats are cumulative counters.
type Stats struct {
	// Committed counts frames that reached Ready.
	Committed uint64

	// Overwritten counts Ready frames replaced before any tick acquired them.
	Overwritten uint64

	// Aborted counts writes that ended without reaching Ready.
	Aborted uint64

	// Acquired counts frames handed to the presenter.
	Acquired uint64

	// Busy counts BeginWrite calls refused because the presenter held the buffer.
	Busy uint64

	// Held counts TryBeginWrite calls refused because a frame was pending.
	Held uint64
}

// Handoff is the producer/presenter synchronization object.
// The zero value is not usable; call New.
type Handoff struct {
	mu          sync.Mutex
	buf         *shm.Buffer
	generation  uint64
	state       State
	hasNewFrame bool
	rendering   bool
	nextSeq     uint64
	stats       Stats
}

// New returns a Handoff with no buffer attached and the rendering gate closed.
func New() *Handoff {
	return &Handoff{}
}

// Attach makes buf the exchanged buffer and resets the state to Idle.
// It fails with ErrBusy while either side holds the current buffer.
func (h *Handoff) Attach(buf *shm.Buffer) error {
	if buf == nil || !buf.Alive() {
		return fmt.Errorf("%w: cannot attach a destroyed buffer", framelink.ErrStaleBinding)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateWriting || h.state == StateImporting {
		return fmt.Errorf("%w: %v", ErrBusy, h.state)
	}
	h.buf = buf
	h.generation = buf.Generation()
	h.state = StateIdle
	h.hasNewFrame = false
	return nil
}

// Detach removes the attached buffer and returns it. A pending frame is
// dropped. It fails with ErrBusy while either side holds the buffer.
func (h *Handoff) Detach() (*shm.Buffer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateWriting || h.state == StateImporting {
		return nil, fmt.Errorf("%w: %v", ErrBusy, h.state)
	}
	buf := h.buf
	h.buf = nil
	h.generation = 0
	h.state = StateIdle
	h.hasNewFrame = false
	return buf, nil
}

// SetRendering opens or closes the rendering gate. While closed, BeginWrite
// and CommitWrite fail with ErrNotRendering.
func (h *Handoff) SetRendering(on bool) {
	h.mu.Lock()
	h.rendering = on
	h.mu.Unlock()
}

// Rendering reports whether the rendering gate is open.
func (h *Handoff) Rendering() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rendering
}

// BeginWrite moves the buffer to Writing for the producer.
// A Ready frame that was never acquired is dropped and counted as overwritten.
func (h *Handoff) BeginWrite() (Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.beginWriteLocked()
}

// TryBeginWrite is BeginWrite that never drops a Ready frame: while one is
// pending it fails with ErrPending and counts the attempt as held.
func (h *Handoff) TryBeginWrite() (Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.buf != nil && h.rendering && h.state == StateReady {
		h.stats.Held++
		return Frame{}, ErrPending
	}
	return h.beginWriteLocked()
}

func (h *Handoff) beginWriteLocked() (Frame, error) {
	switch {
	case h.buf == nil:
		return Frame{}, ErrNoBuffer
	case !h.rendering:
		return Frame{}, ErrNotRendering
	case h.state == StateImporting || h.state == StateWriting:
		h.stats.Busy++
		return Frame{}, fmt.Errorf("%w: %v", ErrBusy, h.state)
	}

	if h.state == StateReady {
		h.hasNewFrame = false
		h.stats.Overwritten++
	}
	h.state = StateWriting
	h.nextSeq++
	return Frame{Buffer: h.buf, Generation: h.generation, Seq: h.nextSeq}, nil
}

// CommitWrite marks the frame Ready and raises the new-frame flag.
// Call it only after the producer's GPU work for the frame has completed.
// If the rendering gate closed meanwhile, the frame is abandoned instead.
func (h *Handoff) CommitWrite(f Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateWriting || f.Generation != h.generation || h.buf == nil {
		return fmt.Errorf("%w: commit of generation %d, current %d (%v)",
			framelink.ErrStaleBinding, f.Generation, h.generation, h.state)
	}
	if !h.rendering {
		h.state = StateIdle
		h.stats.Aborted++
		return ErrNotRendering
	}
	h.state = StateReady
	h.hasNewFrame = true
	h.stats.Committed++
	return nil
}

// AbortWrite returns a Writing buffer to Idle without raising the flag.
// The partially written content is never presented.
func (h *Handoff) AbortWrite(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateWriting && f.Generation == h.generation {
		h.state = StateIdle
		h.stats.Aborted++
	}
}

// Acquire hands the pending frame to the presenter. It returns false when
// there is no new frame. On success the flag is cleared and the buffer is
// Importing until Release.
func (h *Handoff) Acquire() (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasNewFrame || h.state != StateReady {
		return Frame{}, false
	}
	h.hasNewFrame = false
	h.state = StateImporting
	h.stats.Acquired++
	return Frame{Buffer: h.buf, Generation: h.generation, Seq: h.nextSeq}, true
}

// Release returns an Importing buffer to Idle once the presenter no longer
// samples it.
func (h *Handoff) Release(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateImporting && f.Generation == h.generation {
		h.state = StateIdle
	}
}

// Pending reports whether a new frame is available.
func (h *Handoff) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasNewFrame
}

// State returns the current usage state.
func (h *Handoff) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Buffer returns the attached buffer and its generation.
func (h *Handoff) Buffer() (*shm.Buffer, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf, h.generation
}

// Validate fails with framelink.ErrStaleBinding when generation is not the
// attached buffer's generation.
func (h *Handoff) Validate(generation uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.buf == nil || generation != h.generation {
		return fmt.Errorf("%w: generation %d, current %d",
			framelink.ErrStaleBinding, generation, h.generation)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (h *Handoff) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
