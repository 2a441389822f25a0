// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package factory holds the name->constructor tables for the three
// long-lived object kinds the Sensor Manager instantiates (adaptors,
// chains, logical sensors) plus the stateless filter kind, and the
// narrow capability interfaces a constructed object of each kind must
// satisfy.
//
// Plugin discovery — how a constructor arrives and gets registered —
// is outside this package's concern; Register only records what has
// already been decided to exist.
package factory

import (
	"github.com/sensord-project/sensord/internal/assert"
	"github.com/sensord-project/sensord/session"
)

// Instance is the capability every constructed object shares: a
// caller-assigned id, and a validity check performed immediately after
// construction (a constructor may return a non-nil object that failed
// to initialize against its underlying hardware or kernel source).
type Instance interface {
	ID() string
	IsValid() bool
}

// AdaptorInstance wraps a hardware or kernel sensor source.
type AdaptorInstance interface {
	Instance
	StartAdaptor() bool
	StopAdaptor()
	SetProperty(name string, value float64)
	SetScreenBlanked(blanked bool)
	Resume()
	Standby()
}

// ChainInstance composes adaptors and filters into a named pipeline.
type ChainInstance interface {
	Instance
	Running() bool
}

// SensorInstance is a client-visible sensor endpoint built atop chains
// and adaptors.
type SensorInstance interface {
	Instance
	Running() bool
	Stop(session session.ID)
	SetStandbyOverride(session session.ID, override bool)
	RemoveIntervalRequest(session session.ID)
	RemoveDataRangeRequest(session session.ID)
}

// FilterInstance is a stateless per-sample transform. It is not
// tracked by any registry once constructed.
type FilterInstance interface {
	ID() string
}

// AdaptorConstructor builds a new adaptor instance for the given id.
type AdaptorConstructor func(id string) (AdaptorInstance, error)

// ChainConstructor builds a new chain instance for the given id.
type ChainConstructor func(id string) (ChainInstance, error)

// SensorConstructor builds a new logical sensor instance. id carries
// the full parameter suffix (e.g. "accel;key=value"); construction is
// the one place that suffix is meaningful.
type SensorConstructor func(id string) (SensorInstance, error)

// FilterConstructor builds a new stateless filter instance.
type FilterConstructor func() (FilterInstance, error)

// Registry holds the four name->constructor tables. A Registry is not
// safe for concurrent registration and construction; callers (the
// Sensor Manager Facade) serialize access to it themselves by only
// touching it from the I/O thread.
type Registry struct {
	adaptors map[string]AdaptorConstructor
	chains   map[string]ChainConstructor
	sensors  map[string]SensorConstructor
	filters  map[string]FilterConstructor
}

// NewRegistry returns an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{
		adaptors: make(map[string]AdaptorConstructor),
		chains:   make(map[string]ChainConstructor),
		sensors:  make(map[string]SensorConstructor),
		filters:  make(map[string]FilterConstructor),
	}
}

// RegisterAdaptor records the constructor for the named adaptor type.
// Aborts the process via internal/assert on a duplicate registration —
// a startup-time plugin bug, not a runtime condition, but still a
// contract violation this process cannot reason past.
func (r *Registry) RegisterAdaptor(typeName string, ctor AdaptorConstructor) {
	_, exists := r.adaptors[typeName]
	assert.That(!exists, "factory: duplicate adaptor registration for %q", typeName)
	r.adaptors[typeName] = ctor
}

// RegisterChain records the constructor for the named chain type.
func (r *Registry) RegisterChain(typeName string, ctor ChainConstructor) {
	_, exists := r.chains[typeName]
	assert.That(!exists, "factory: duplicate chain registration for %q", typeName)
	r.chains[typeName] = ctor
}

// RegisterSensor records the constructor for the named logical sensor
// type.
func (r *Registry) RegisterSensor(typeName string, ctor SensorConstructor) {
	_, exists := r.sensors[typeName]
	assert.That(!exists, "factory: duplicate sensor registration for %q", typeName)
	r.sensors[typeName] = ctor
}

// RegisterFilter records the constructor for the named filter type.
func (r *Registry) RegisterFilter(typeName string, ctor FilterConstructor) {
	_, exists := r.filters[typeName]
	assert.That(!exists, "factory: duplicate filter registration for %q", typeName)
	r.filters[typeName] = ctor
}

// HasAdaptor reports whether an adaptor constructor is registered for
// typeName.
func (r *Registry) HasAdaptor(typeName string) bool {
	_, ok := r.adaptors[typeName]
	return ok
}

// HasChain reports whether a chain constructor is registered for
// typeName.
func (r *Registry) HasChain(typeName string) bool {
	_, ok := r.chains[typeName]
	return ok
}

// HasSensor reports whether a logical sensor constructor is
// registered for typeName.
func (r *Registry) HasSensor(typeName string) bool {
	_, ok := r.sensors[typeName]
	return ok
}

// HasFilter reports whether a filter constructor is registered for
// typeName.
func (r *Registry) HasFilter(typeName string) bool {
	_, ok := r.filters[typeName]
	return ok
}

// ConstructAdaptor invokes the registered constructor for typeName.
// Returns ok=false if no constructor is registered.
func (r *Registry) ConstructAdaptor(typeName, id string) (AdaptorInstance, bool, error) {
	ctor, ok := r.adaptors[typeName]
	if !ok {
		return nil, false, nil
	}
	instance, err := ctor(id)
	return instance, true, err
}

// ConstructChain invokes the registered constructor for typeName.
// Returns ok=false if no constructor is registered.
func (r *Registry) ConstructChain(typeName, id string) (ChainInstance, bool, error) {
	ctor, ok := r.chains[typeName]
	if !ok {
		return nil, false, nil
	}
	instance, err := ctor(id)
	return instance, true, err
}

// ConstructSensor invokes the registered constructor for typeName.
// Returns ok=false if no constructor is registered.
func (r *Registry) ConstructSensor(typeName, id string) (SensorInstance, bool, error) {
	ctor, ok := r.sensors[typeName]
	if !ok {
		return nil, false, nil
	}
	instance, err := ctor(id)
	return instance, true, err
}

// InstantiateFilter constructs a fresh filter instance. Filters are
// stateless and not tracked by any registry; the caller owns the
// returned instance outright. Returns nil, nil if typeName has no
// registered constructor — callers are expected to log a warning, not
// treat this as an error.
func (r *Registry) InstantiateFilter(typeName string) (FilterInstance, error) {
	ctor, ok := r.filters[typeName]
	if !ok {
		return nil, nil
	}
	return ctor()
}
