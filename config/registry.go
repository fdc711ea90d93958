// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Factory returns a fresh config instance pre-filled with the declared
// defaults of its type. Loading overlays the persisted values on top of
// that instance, so omitted fields keep their defaults.
type Factory func() Config

type registryKey struct {
	name string
	typ  Type
}

// Registry maps a (name, category) discriminator pair to the factory of
// the concrete config type to materialize when loading generic data.
//
// A Registry is safe for concurrent use. Registering an already registered
// pair silently overrides the previous entry.
type Registry struct {
	mu        sync.RWMutex
	factories map[registryKey]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[registryKey]Factory)}
}

// Register associates the (name, category) pair with the given factory.
func (r *Registry) Register(name string, t Type, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey{name: name, typ: t}
	if _, ok := r.factories[key]; ok {
		log.Debug().Str("name", name).Str("config_type", string(t)).Msg("overriding registered config type")
	}
	r.factories[key] = f
}

// Resolve returns the factory registered for the (name, category) pair,
// or a NotRegisteredError if there is none.
func (r *Registry) Resolve(name string, t Type) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[registryKey{name: name, typ: t}]
	if !ok {
		return nil, &NotRegisteredError{Name: name, Type: t}
	}
	return f, nil
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by stores that
// are not given their own. It lives for the whole process; the built-in
// config types register into it at package initialization.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register registers the pair into the default registry.
func Register(name string, t Type, f Factory) {
	defaultRegistry.Register(name, t, f)
}
