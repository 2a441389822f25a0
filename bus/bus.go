// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus is the Sensor Manager's collaborator for the control
// bus: the external method-call dispatch and object-path registration
// mechanism the daemon's operations (§4.6) are exposed over.
//
// The control bus itself — its wire protocol, its dispatch machinery —
// is out of scope for this core; only the interface the Facade depends
// on is specified here, plus a process-local fake used by tests and by
// any binary that wants to run the core without a real bus attached.
package bus

import "github.com/sensord-project/sensord/errs"

// ControlBus is the Facade's view of the external control bus.
type ControlBus interface {
	// Connected reports whether the bus connection is usable.
	Connected() bool

	// RegisterObject publishes obj at path. Returns an error if the
	// bus rejects the registration.
	RegisterObject(path string, obj any) error

	// UnregisterObject withdraws a previously registered object.
	UnregisterObject(path string)

	// RegisterService claims name as this process's bus service name.
	// Returns an error if the name is already claimed.
	RegisterService(name string) error

	// EmitError signals that the most recent operation failed with
	// kind.
	EmitError(kind errs.Kind)

	// EmitPropertyRequestChanged signals that the arbitrator's winning
	// value for (property, adaptor) changed.
	EmitPropertyRequestChanged(property, adaptor string)
}

// Local is a process-local ControlBus with no real transport: objects
// are tracked in a map, "registering" a service name just records it.
// It exists for tests and for running the daemon core without a real
// bus attached; it is never concurrency-safe beyond what a single
// I/O thread needs, matching every other Facade collaborator.
type Local struct {
	connected         bool
	service           string
	objects           map[string]any
	registerObjectErr error

	errors                 []errs.Kind
	propertyRequestChanges []PropertyAdaptor
}

// PropertyAdaptor names one (property, adaptor) pair that had a
// property_request_changed notification emitted for it.
type PropertyAdaptor struct {
	Property string
	Adaptor  string
}

// NewLocal returns a Local bus that reports itself connected.
func NewLocal() *Local {
	return &Local{connected: true, objects: make(map[string]any)}
}

// SetConnected controls what Connected reports, for exercising the
// NotConnected error path in tests.
func (l *Local) SetConnected(connected bool) { l.connected = connected }

func (l *Local) Connected() bool { return l.connected }

// SetRegisterObjectErr makes every subsequent RegisterObject call fail
// with err, for exercising the CanNotRegisterObject rollback path in
// tests. Pass nil to go back to always succeeding.
func (l *Local) SetRegisterObjectErr(err error) { l.registerObjectErr = err }

func (l *Local) RegisterObject(path string, obj any) error {
	if l.registerObjectErr != nil {
		return l.registerObjectErr
	}
	l.objects[path] = obj
	return nil
}

func (l *Local) UnregisterObject(path string) {
	delete(l.objects, path)
}

func (l *Local) RegisterService(name string) error {
	l.service = name
	return nil
}

func (l *Local) EmitError(kind errs.Kind) {
	l.errors = append(l.errors, kind)
}

func (l *Local) EmitPropertyRequestChanged(property, adaptor string) {
	l.propertyRequestChanges = append(l.propertyRequestChanges, PropertyAdaptor{Property: property, Adaptor: adaptor})
}

// Objects returns the registration paths currently published, for
// test assertions.
func (l *Local) Objects() map[string]any { return l.objects }

// ServiceName returns the name last claimed via RegisterService.
func (l *Local) ServiceName() string { return l.service }

// Errors returns every kind emitted via EmitError, in order.
func (l *Local) Errors() []errs.Kind { return l.errors }

// PropertyRequestChanges returns every (property, adaptor) pair
// emitted via EmitPropertyRequestChanged, in order.
func (l *Local) PropertyRequestChanges() []PropertyAdaptor { return l.propertyRequestChanges }
