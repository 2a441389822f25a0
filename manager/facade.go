// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package manager implements the Sensor Manager Facade: the
// process-wide coordinator that binds sensor identifiers to a
// dependency graph of adaptors, chains, and logical sensors, tracks
// per-client control/listen sessions, and bridges producer-thread
// samples to the I/O thread that owns the transport.
//
// Every public method here is meant to run on a single "I/O thread" —
// whatever goroutine owns the control-bus dispatch loop. A Facade
// still serializes its own state behind a mutex as a second line of
// defense, but correctness depends on callers honoring that
// single-writer contract; see the package-level Non-goals in the
// project's specification for why no fairness or backpressure
// machinery exists here.
package manager

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sensord-project/sensord/arbitrate"
	"github.com/sensord-project/sensord/bus"
	"github.com/sensord-project/sensord/errs"
	"github.com/sensord-project/sensord/factory"
	"github.com/sensord-project/sensord/opstate"
	"github.com/sensord-project/sensord/registry"
	"github.com/sensord-project/sensord/samplepump"
	"github.com/sensord-project/sensord/session"
	"github.com/sensord-project/sensord/transport"
)

// PluginLoader loads a named plugin's factories into a Registry.
// Plugin discovery and dynamic loading mechanics are out of scope;
// this is just the call-and-report-failure contract the Facade needs.
type PluginLoader interface {
	LoadPlugin(name string, factories *factory.Registry) error
}

// Facade is the Sensor Manager: the single process-wide object that
// owns every adaptor, chain, and logical-sensor entry, the session
// table, the property arbitrator, the sample pump, and the
// collaborators (transport gateway, control bus, op-state fan-out).
type Facade struct {
	mu sync.Mutex

	logger *slog.Logger

	factories *factory.Registry
	adaptors  *registry.Adaptors
	chains    *registry.Chains
	sensors   *registry.Sensors

	sessions   *session.Table
	arbitrator *arbitrate.Arbitrator
	pump       *samplepump.Pump

	gateway  transport.Gateway
	bus      bus.ControlBus
	opstate  *opstate.Fanout
	loader   PluginLoader

	objectPathPrefix string

	lastErr *errs.Error
}

// Config wires a Facade's collaborators and fixed parameters.
type Config struct {
	Logger *slog.Logger

	Gateway transport.Gateway
	Bus     bus.ControlBus
	Loader  PluginLoader

	// ObjectPathPrefix is the control-bus base path logical sensors
	// are registered under ("<ObjectPathPrefix>/<id>").
	ObjectPathPrefix string

	// SampleQueueCapacity overrides samplepump.DefaultCapacity. Zero
	// means use the default.
	SampleQueueCapacity int
}

// New constructs a Facade. The op-state fan-out is wired so that its
// "live adaptors" view is this Facade's own adaptor registry, and its
// calibration/display callbacks go to emitBusSignal, which only logs
// them.
func New(cfg Config) *Facade {
	f := &Facade{
		logger:           cfg.Logger,
		factories:        factory.NewRegistry(),
		adaptors:         registry.NewAdaptors(),
		chains:           registry.NewChains(),
		sensors:          registry.NewSensors(),
		sessions:         session.NewTable(),
		arbitrator:       arbitrate.NewArbitrator(),
		pump:             samplepump.New(cfg.SampleQueueCapacity, cfg.Logger),
		gateway:          cfg.Gateway,
		bus:              cfg.Bus,
		loader:           cfg.Loader,
		objectPathPrefix: cfg.ObjectPathPrefix,
	}

	f.opstate = opstate.New(f, opstate.Callbacks{
		ResumeCalibration: func() { f.emitBusSignal("resume_calibration") },
		StopCalibration:   func() { f.emitBusSignal("stop_calibration") },
		DisplayOn:         func() { f.emitBusSignal("display_on") },
	})

	if f.gateway != nil {
		if g, ok := f.gateway.(*transport.UnixGateway); ok {
			g.LostSession = f.LostClient
		}
	}

	return f
}

// emitBusSignal is a placeholder hook for the handful of bare
// notifications (§4.5) that have no payload and so do not fit
// bus.ControlBus's EmitError/EmitPropertyRequestChanged shape. A real
// control-bus binding would register these as D-Bus signals; this
// core only needs the call site to exist so op-state wiring is
// complete.
func (f *Facade) emitBusSignal(name string) {
	if f.logger != nil {
		f.logger.Debug("control bus signal", "signal", name)
	}
}

// Factories exposes the factory registry so plugin init code and
// cmd/sensord can register constructors before the Facade starts
// serving requests.
func (f *Facade) Factories() *factory.Registry { return f.factories }

// Pump exposes the sample pump's producer-facing Write, for adaptor
// and sensor implementations running on their own goroutines.
func (f *Facade) Pump() *samplepump.Pump { return f.pump }

// RunSamplePump drains the sample pump and forwards each record to
// the transport gateway. Call this once, on the I/O thread, alongside
// RunOpState.
func (f *Facade) RunSamplePump(stop <-chan struct{}) {
	f.pump.Run(stop, func(sessionID session.ID, payload []byte) {
		if f.gateway != nil && !f.gateway.Write(sessionID, payload) {
			if f.logger != nil {
				f.logger.Debug("dropped sample, no live connection for session", "session", sessionID)
			}
		}
	})
}

// RunOpState drives source's events into the op-state fan-out. Call
// this once, on the I/O thread, alongside RunSamplePump.
func (f *Facade) RunOpState(source opstate.Source, stop <-chan struct{}) {
	opstate.Drive(source, f.opstate, stop)
}

// LiveAdaptors implements opstate.AdaptorLister.
func (f *Facade) LiveAdaptors() []opstate.AdaptorHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	var live []opstate.AdaptorHandle
	for _, id := range f.adaptors.IDs() {
		entry := f.adaptors.Lookup(id)
		if entry != nil && entry.Instance != nil {
			live = append(live, entry.Instance)
		}
	}
	return live
}

// GetPSMState mirrors the original's getPSMState(): whether the
// device is currently in power-save mode.
func (f *Facade) GetPSMState() bool {
	return f.opstate.PowerSave()
}

// RegisterService connects the Facade to the control bus: checks the
// connection, registers this Facade's own object, then claims the
// service name. Mirrors the three-step sequence and exact error
// taxonomy of the original registerService().
func (f *Facade) RegisterService(objectPath, serviceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	if f.bus == nil || !f.bus.Connected() {
		return f.setError(errs.New(errs.NotConnected, "control bus is not connected"))
	}
	if err := f.bus.RegisterObject(objectPath, f); err != nil {
		return f.setError(errs.Wrap(errs.CanNotRegisterObject, "registering sensor manager object", err))
	}
	if err := f.bus.RegisterService(serviceName); err != nil {
		return f.setError(errs.Wrap(errs.CanNotRegisterService, "registering sensor manager service name", err))
	}
	return nil
}

// LoadPlugin asks the configured PluginLoader to load name's
// factories into this Facade's registry. Plugin discovery mechanics
// live entirely in the loader; the Facade only reports the outcome.
func (f *Facade) LoadPlugin(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	if f.loader == nil {
		return f.setError(errs.New(errs.CanNotRegisterObject, "no plugin loader configured"))
	}
	if err := f.loader.LoadPlugin(name, f.factories); err != nil {
		return f.setError(errs.Wrap(errs.CanNotRegisterObject, fmt.Sprintf("loading plugin %q", name), err))
	}
	return nil
}

// clearError resets the current error state, matching every public
// operation's "clear the current error at entry" contract.
func (f *Facade) clearError() { f.lastErr = nil }

// setError records err as the current error and mirrors it onto the
// control bus's error signal, then returns it so call sites can
// `return f.setError(...)` directly.
func (f *Facade) setError(err *errs.Error) *errs.Error {
	f.lastErr = err
	if f.logger != nil {
		f.logger.Warn("sensor manager error", "kind", err.Kind.String(), "message", err.Message)
	}
	if f.bus != nil {
		f.bus.EmitError(err.Kind)
	}
	return err
}

// LastError returns the error set by the most recently failed public
// operation, or nil if the last operation succeeded. This mirrors the
// original's query-after-failure error access pattern for callers
// that want it in addition to the Go-style returned error.
func (f *Facade) LastError() *errs.Error { return f.lastErr }

// cleanID returns the substring of id before its first ';'. Ids of
// the form "name;key=value;..." carry construction parameters for
// logical sensors only; the parameter suffix must never reach a
// chain or adaptor id.
func cleanID(id string) string {
	if i := strings.IndexByte(id, ';'); i >= 0 {
		return id[:i]
	}
	return id
}
