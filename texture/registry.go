// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"errors"
	"sort"
	"sync"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx"
)

// Standard importer priorities (higher = preferred).
const (
	PriorityLegacyTextureCache  = 100
	PriorityModernDirectTexture = 90
	PriorityCopyFallback        = 10
	PriorityLegacyExtension     = 1
)

// Factory creates an importer instance.
type Factory func() Importer

// RegistryEntry represents a registered import strategy.
type RegistryEntry struct {
	// Method is the unique key for this strategy.
	Method framelink.ImportMethod

	// Priority determines selection order (higher = preferred).
	Priority int

	// Factory creates importer instances.
	Factory Factory
}

// globalRegistry is the default registry.
var globalRegistry = NewDefaultRegistry()

// Registry manages import strategies ordered by priority.
//
// Example usage:
//
//	imp, err := texture.Select(ctx)                           // best supported
//	imp, err := texture.Lookup(framelink.MethodCopyFallback) // specific
type Registry struct {
	mu      sync.RWMutex
	entries map[framelink.ImportMethod]*RegistryEntry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[framelink.ImportMethod]*RegistryEntry),
	}
}

// NewDefaultRegistry creates a registry holding the four built-in
// strategies at their standard priorities.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(framelink.MethodLegacyTextureCache, PriorityLegacyTextureCache,
		func() Importer { return LegacyTextureCache{} })
	r.Register(framelink.MethodModernDirectTexture, PriorityModernDirectTexture,
		func() Importer { return ModernDirectTexture{} })
	r.Register(framelink.MethodCopyFallback, PriorityCopyFallback,
		func() Importer { return CopyFallback{} })
	r.Register(framelink.MethodLegacyExtension, PriorityLegacyExtension,
		func() Importer { return LegacyExtension{} })
	return r
}

// Default returns the global registry.
func Default() *Registry { return globalRegistry }

// Register adds a strategy to the global registry.
func Register(method framelink.ImportMethod, priority int, factory Factory) {
	globalRegistry.Register(method, priority, factory)
}

// Unregister removes a strategy from the global registry.
func Unregister(method framelink.ImportMethod) {
	globalRegistry.Unregister(method)
}

// Select returns the best strategy of the global registry supported by ctx.
func Select(ctx gfx.Context) (Importer, error) {
	return globalRegistry.Select(ctx)
}

// Lookup returns a specific strategy from the global registry.
func Lookup(method framelink.ImportMethod) (Importer, error) {
	return globalRegistry.Importer(method)
}

// Register adds a strategy to this registry. Registering a method that
// already exists replaces the previous entry. MethodAuto cannot be
// registered.
func (r *Registry) Register(method framelink.ImportMethod, priority int, factory Factory) {
	if method == framelink.MethodAuto || factory == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[framelink.ImportMethod]*RegistryEntry)
	}
	r.entries[method] = &RegistryEntry{
		Method:   method,
		Priority: priority,
		Factory:  factory,
	}
}

// Unregister removes a strategy from this registry.
func (r *Registry) Unregister(method framelink.ImportMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, method)
}

// List returns all registered methods sorted by priority (highest first).
func (r *Registry) List() []framelink.ImportMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedMethods(nil)
}

// Available returns the methods ctx supports, sorted by priority.
func (r *Registry) Available(ctx gfx.Context) []framelink.ImportMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedMethods(ctx)
}

// Get returns information about a specific strategy.
func (r *Registry) Get(method framelink.ImportMethod) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[method]
	if !ok {
		return nil, false
	}

	// Return a copy to prevent modification
	entryCopy := *entry
	return &entryCopy, true
}

// Importer returns a new instance of the strategy for method.
func (r *Registry) Importer(method framelink.ImportMethod) (Importer, error) {
	r.mu.RLock()
	entry, ok := r.entries[method]
	r.mu.RUnlock()

	if !ok {
		return nil, &MethodNotFoundError{Method: method}
	}
	return entry.Factory(), nil
}

// Select returns the highest-priority strategy supported by ctx.
func (r *Registry) Select(ctx gfx.Context) (Importer, error) {
	r.mu.RLock()
	available := r.sortedMethods(ctx)
	r.mu.RUnlock()

	if len(available) == 0 {
		return nil, ErrNoImporter
	}
	return r.Importer(available[0])
}

// Resolve returns the importer for method on ctx. MethodAuto selects; an
// explicit method must be registered and supported by ctx.
func (r *Registry) Resolve(method framelink.ImportMethod, ctx gfx.Context) (Importer, error) {
	if method == framelink.MethodAuto {
		return r.Select(ctx)
	}
	imp, err := r.Importer(method)
	if err != nil {
		return nil, err
	}
	if !imp.Supports(ctx) {
		return nil, &MethodUnsupportedError{Method: method, Context: ctx.Name()}
	}
	return imp, nil
}

// sortedMethods returns methods sorted by priority (highest first).
// If ctx is non-nil, filters to strategies ctx supports.
// Must be called with lock held.
func (r *Registry) sortedMethods(ctx gfx.Context) []framelink.ImportMethod {
	if len(r.entries) == 0 {
		return nil
	}

	entries := make([]*RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if ctx != nil && !e.Factory().Supports(ctx) {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].Method < entries[j].Method
	})

	methods := make([]framelink.ImportMethod, len(entries))
	for i, e := range entries {
		methods[i] = e.Method
	}
	return methods
}

// Errors.
var (
	// ErrNoImporter is returned when no registered strategy supports the
	// context.
	ErrNoImporter = errors.New("texture: no importer available")
)

// MethodNotFoundError indicates a method is not registered.
type MethodNotFoundError struct {
	Method framelink.ImportMethod
}

func (e *MethodNotFoundError) Error() string {
	return "texture: importer not registered: " + e.Method.String()
}

// MethodUnsupportedError indicates a registered method the context cannot
// run.
type MethodUnsupportedError struct {
	Method  framelink.ImportMethod
	Context string
}

func (e *MethodUnsupportedError) Error() string {
	return "texture: " + e.Context + " does not support " + e.Method.String()
}
