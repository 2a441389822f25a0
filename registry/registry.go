// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the bookkeeping entries the Sensor Manager
// Facade uses to track adaptor, chain, and logical-sensor instances.
// It is pure bookkeeping: insertion, lookup, and iteration. Lifecycle
// decisions (when to construct, when to tear down) belong to the
// Facade, which is the only component with enough context — the
// session table, the transport gateway, the property arbitrator — to
// make those decisions atomically.
package registry

import (
	"sort"

	"github.com/sensord-project/sensord/factory"
	"github.com/sensord-project/sensord/internal/assert"
	"github.com/sensord-project/sensord/session"
)

// AdaptorEntry is one registered adaptor id's bookkeeping record.
type AdaptorEntry struct {
	Type          string
	Instance      factory.AdaptorInstance
	RefCount      int
	PropertyMap   map[string]float64
}

// ChainEntry is one registered chain id's bookkeeping record.
type ChainEntry struct {
	Type     string
	Instance factory.ChainInstance
	RefCount int
}

// SensorEntry is one registered logical-sensor id's bookkeeping
// record.
type SensorEntry struct {
	Type               string
	Instance           factory.SensorInstance
	ControllingSession session.ID
	ListenSessions     []session.ID
}

// Adaptors is the name->entry table for adaptors.
type Adaptors struct {
	entries map[string]*AdaptorEntry
}

// NewAdaptors returns an empty adaptor table.
func NewAdaptors() *Adaptors { return &Adaptors{entries: make(map[string]*AdaptorEntry)} }

// Insert adds a new entry at plugin-load time. Aborts the process via
// internal/assert if id is already registered.
func (a *Adaptors) Insert(id string, entry *AdaptorEntry) {
	_, exists := a.entries[id]
	assert.That(!exists, "registry: duplicate adaptor id %q", id)
	a.entries[id] = entry
}

// Lookup returns the entry for id, or nil if id is not registered.
func (a *Adaptors) Lookup(id string) *AdaptorEntry { return a.entries[id] }

// IDs returns every registered adaptor id, sorted for deterministic
// iteration (used by the status dump).
func (a *Adaptors) IDs() []string { return sortedKeysAdaptor(a.entries) }

// Chains is the name->entry table for chains.
type Chains struct {
	entries map[string]*ChainEntry
}

// NewChains returns an empty chain table.
func NewChains() *Chains { return &Chains{entries: make(map[string]*ChainEntry)} }

// Insert adds a new entry at plugin-load time. Aborts the process via
// internal/assert if id is already registered.
func (c *Chains) Insert(id string, entry *ChainEntry) {
	_, exists := c.entries[id]
	assert.That(!exists, "registry: duplicate chain id %q", id)
	c.entries[id] = entry
}

// Lookup returns the entry for id, or nil if id is not registered.
func (c *Chains) Lookup(id string) *ChainEntry { return c.entries[id] }

// IDs returns every registered chain id, sorted for deterministic
// iteration.
func (c *Chains) IDs() []string { return sortedKeysChain(c.entries) }

// Sensors is the name->entry table for logical sensors.
type Sensors struct {
	entries map[string]*SensorEntry
}

// NewSensors returns an empty sensor table.
func NewSensors() *Sensors { return &Sensors{entries: make(map[string]*SensorEntry)} }

// Insert adds a new entry at plugin-load time. Aborts the process via
// internal/assert if id is already registered.
func (s *Sensors) Insert(id string, entry *SensorEntry) {
	_, exists := s.entries[id]
	assert.That(!exists, "registry: duplicate sensor id %q", id)
	s.entries[id] = entry
}

// Lookup returns the entry for id, or nil if id is not registered.
func (s *Sensors) Lookup(id string) *SensorEntry { return s.entries[id] }

// IDs returns every registered sensor id, sorted for deterministic
// iteration.
func (s *Sensors) IDs() []string { return sortedKeysSensor(s.entries) }

// All returns every registered sensor entry, in sorted-id order.
func (s *Sensors) All() []*SensorEntry {
	ids := s.IDs()
	out := make([]*SensorEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[id])
	}
	return out
}

func sortedKeysAdaptor(m map[string]*AdaptorEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysChain(m map[string]*ChainEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysSensor(m map[string]*SensorEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
