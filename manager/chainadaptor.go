// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"

	"github.com/sensord-project/sensord/errs"
	"github.com/sensord-project/sensord/factory"
	"github.com/sensord-project/sensord/internal/assert"
	"github.com/sensord-project/sensord/registry"
)

// DeclareChain registers id as a known chain of the named type, with
// no instance constructed and a zero reference count.
func (f *Facade) DeclareChain(id, typeName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chains.Insert(id, &registry.ChainEntry{Type: typeName})
}

// DeclareAdaptor registers id as a known adaptor of the named type,
// with the given default property map applied at first construction.
func (f *Facade) DeclareAdaptor(id, typeName string, propertyMap map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adaptors.Insert(id, &registry.AdaptorEntry{Type: typeName, PropertyMap: propertyMap})
}

// RequestChain returns id's chain instance, constructing it on first
// request, and increments its reference count.
func (f *Facade) RequestChain(id string) (factory.ChainInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	entry := f.chains.Lookup(id)
	if entry == nil {
		return nil, f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("unknown chain id %q", id)))
	}

	if entry.Instance != nil {
		entry.RefCount++
		return entry.Instance, nil
	}

	if !f.factories.HasChain(entry.Type) {
		return nil, f.setError(errs.New(errs.FactoryNotRegistered, fmt.Sprintf("unknown chain type %q", entry.Type)))
	}

	instance, _, err := f.factories.ConstructChain(entry.Type, id)
	if err != nil {
		return nil, f.setError(errs.Wrap(errs.FactoryNotRegistered, fmt.Sprintf("constructing chain %q", id), err))
	}
	assert.That(instance != nil, "manager: chain constructor for type %q returned nil instance with no error", entry.Type)

	entry.Instance = instance
	entry.RefCount++
	return instance, nil
}

// ReleaseChain drops one reference to id's chain instance, tearing it
// down once the count reaches zero.
func (f *Facade) ReleaseChain(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	entry := f.chains.Lookup(id)
	if entry == nil {
		return f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("unknown chain id %q", id)))
	}
	if entry.Instance == nil {
		return f.setError(errs.New(errs.NotInstantiated, fmt.Sprintf("chain %q not instantiated, cannot release", id)))
	}

	entry.RefCount--
	assert.That(entry.RefCount >= 0, "manager: chain %q reference count went negative", id)
	if entry.RefCount == 0 {
		entry.Instance = nil
	}
	return nil
}

// RequestDeviceAdaptor returns id's adaptor instance, constructing
// and starting it on first request, and increments its reference
// count. id must not carry a parameter suffix.
func (f *Facade) RequestDeviceAdaptor(id string) (factory.AdaptorInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	entry := f.adaptors.Lookup(id)
	if entry == nil {
		return nil, f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("unknown adaptor id %q", id)))
	}

	if entry.Instance != nil {
		entry.RefCount++
		return entry.Instance, nil
	}

	if !f.factories.HasAdaptor(entry.Type) {
		return nil, f.setError(errs.New(errs.FactoryNotRegistered, fmt.Sprintf("unknown adaptor type %q", entry.Type)))
	}

	instance, _, err := f.factories.ConstructAdaptor(entry.Type, id)
	if err != nil {
		return nil, f.setError(errs.Wrap(errs.FactoryNotRegistered, fmt.Sprintf("constructing adaptor %q", id), err))
	}
	assert.That(instance != nil, "manager: adaptor constructor for type %q returned nil instance with no error", entry.Type)

	for name, value := range entry.PropertyMap {
		instance.SetProperty(name, value)
	}

	if !instance.StartAdaptor() {
		return nil, f.setError(errs.New(errs.AdaptorNotStarted, fmt.Sprintf("adaptor %q can not be started", id)))
	}

	entry.Instance = instance
	entry.RefCount++
	return instance, nil
}

// ReleaseDeviceAdaptor drops one reference to id's adaptor instance,
// stopping and tearing it down once the count reaches zero.
func (f *Facade) ReleaseDeviceAdaptor(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	entry := f.adaptors.Lookup(id)
	if entry == nil {
		return f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("unknown adaptor id %q", id)))
	}
	if entry.Instance == nil {
		return f.setError(errs.New(errs.NotInstantiated, fmt.Sprintf("adaptor %q not instantiated, cannot release", id)))
	}

	entry.RefCount--
	assert.That(entry.RefCount >= 0, "manager: adaptor %q reference count went negative", id)
	if entry.RefCount == 0 {
		entry.Instance.StopAdaptor()
		entry.Instance = nil
	}
	return nil
}

// InstantiateFilter constructs a fresh, untracked filter instance of
// the named type. Returns nil, nil if no constructor is registered
// for typeName — callers are expected to log, not treat this as a
// hard failure.
func (f *Facade) InstantiateFilter(typeName string) (factory.FilterInstance, error) {
	return f.factories.InstantiateFilter(typeName)
}
