// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"

	"github.com/sensord-project/sensord/errs"
	"github.com/sensord-project/sensord/factory"
	"github.com/sensord-project/sensord/internal/assert"
	"github.com/sensord-project/sensord/registry"
	"github.com/sensord-project/sensord/session"
)

// DeclareSensor registers id as a known logical sensor of the named
// type, with no instance constructed yet. Call this once per id while
// loading plugins, before any client can request it.
func (f *Facade) DeclareSensor(id, typeName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sensors.Insert(id, &registry.SensorEntry{
		Type:               typeName,
		ControllingSession: session.Invalid,
	})
}

// RequestControlSensor grants the caller control of the logical
// sensor named by id, instantiating it if no session currently holds
// it. Fails with AlreadyUnderControl if another session already
// controls it.
func (f *Facade) RequestControlSensor(id string) (session.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	clean := cleanID(id)
	entry := f.sensors.Lookup(clean)
	if entry == nil {
		f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("requested control sensor id %q not registered", clean)))
		return session.Invalid, f.lastErr
	}

	if entry.ControllingSession.Valid() {
		f.setError(errs.New(errs.AlreadyUnderControl, "requested sensor already under control"))
		return session.Invalid, f.lastErr
	}

	sessionID := f.sessions.Next()
	if len(entry.ListenSessions) > 0 {
		entry.ControllingSession = sessionID
	} else if _, err := f.addSensorLocked(id, clean, entry, sessionID, true); err != nil {
		return session.Invalid, err
	}

	return sessionID, nil
}

// RequestListenSensor grants the caller a listen (non-controlling)
// subscription to the logical sensor named by id, instantiating it if
// no session currently holds it. Unlike control, any number of listen
// sessions can coexist, with or without a controller.
func (f *Facade) RequestListenSensor(id string) (session.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	clean := cleanID(id)
	entry := f.sensors.Lookup(clean)
	if entry == nil {
		f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("requested listen sensor id %q not registered", clean)))
		return session.Invalid, f.lastErr
	}

	sessionID := f.sessions.Next()
	if len(entry.ListenSessions) > 0 || entry.ControllingSession.Valid() {
		entry.ListenSessions = append(entry.ListenSessions, sessionID)
	} else if _, err := f.addSensorLocked(id, clean, entry, sessionID, false); err != nil {
		return session.Invalid, err
	}

	return sessionID, nil
}

// addSensorLocked constructs entry's instance, records sessionID as
// either the controller or the sole listener, then binds the instance
// to the bus, undoing both records if that registration fails. Caller
// holds f.mu and has already validated entry exists.
func (f *Facade) addSensorLocked(id, cleanID string, entry *registry.SensorEntry, sessionID session.ID, controlling bool) (factory.SensorInstance, error) {
	if !f.factories.HasSensor(entry.Type) {
		f.setError(errs.New(errs.FactoryNotRegistered, fmt.Sprintf("factory for sensor type %q not registered", entry.Type)))
		return nil, f.lastErr
	}

	instance, _, err := f.factories.ConstructSensor(entry.Type, id)
	if err != nil {
		f.setError(errs.Wrap(errs.FactoryNotRegistered, fmt.Sprintf("constructing sensor %q", cleanID), err))
		return nil, f.lastErr
	}
	assert.That(instance != nil, "manager: sensor constructor for type %q returned nil instance with no error", entry.Type)

	if !instance.IsValid() {
		f.setError(errs.New(errs.NotInstantiated, fmt.Sprintf("sensor %q failed to initialize", cleanID)))
		return nil, f.lastErr
	}

	assert.That(entry.Instance == nil, "manager: sensor %q already has a live instance", cleanID)
	assert.That(len(entry.ListenSessions) == 0 && !entry.ControllingSession.Valid(),
		"manager: sensor %q has outstanding sessions before first instantiation", cleanID)

	entry.Instance = instance
	if controlling {
		entry.ControllingSession = sessionID
	} else {
		entry.ListenSessions = append(entry.ListenSessions, sessionID)
	}

	if f.bus != nil {
		if err := f.bus.RegisterObject(f.objectPathPrefix+"/"+instance.ID(), instance); err != nil {
			entry.Instance = nil
			if controlling {
				entry.ControllingSession = session.Invalid
			} else {
				entry.ListenSessions = removeSession(entry.ListenSessions, sessionID)
			}
			f.setError(errs.Wrap(errs.CanNotRegisterObject, fmt.Sprintf("registering sensor %q", cleanID), err))
			return nil, f.lastErr
		}
	}

	return instance, nil
}

// removeSensorLocked tears down entry's instance once both the
// controlling session and every listen session have released it.
func (f *Facade) removeSensorLocked(cleanID string, entry *registry.SensorEntry) {
	assert.That(len(entry.ListenSessions) == 0 && !entry.ControllingSession.Valid(),
		"manager: removing sensor %q with outstanding sessions", cleanID)

	if f.bus != nil {
		f.bus.UnregisterObject(f.objectPathPrefix + "/" + cleanID)
	}
	entry.Instance = nil
}

// ReleaseSensor relinquishes sessionID's hold (control or listen) on
// the logical sensor named by id. id must not carry a parameter
// suffix.
//
// Once id resolves to a known sensor entry, sessionID's property,
// standby-override, interval, and data-range requests are cleared
// unconditionally — before this call checks whether sessionID is
// actually the controller or one of the listeners for that entry. A
// caller that releases a session it never held on an otherwise live
// sensor still gets those side effects; only the boolean result and
// error distinguish a release that actually mattered.
func (f *Facade) ReleaseSensor(id string, sessionID session.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	entry := f.sensors.Lookup(id)
	if entry == nil {
		f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("requested sensor id %q not registered", id)))
		return false, f.lastErr
	}

	f.clearRequestsLocked(sessionID)

	if entry.Instance != nil {
		entry.Instance.SetStandbyOverride(sessionID, false)
		entry.Instance.RemoveIntervalRequest(sessionID)
		entry.Instance.RemoveDataRangeRequest(sessionID)
	}

	if !entry.ControllingSession.Valid() && len(entry.ListenSessions) == 0 {
		f.setError(errs.New(errs.NotInstantiated, "sensor has not been instantiated, no session to release"))
		f.removeGatewaySession(sessionID)
		return false, f.lastErr
	}

	var released bool
	switch {
	case entry.ControllingSession.Valid() && entry.ControllingSession == sessionID:
		entry.ControllingSession = session.Invalid
		if len(entry.ListenSessions) == 0 {
			f.removeSensorLocked(id, entry)
		}
		released = true

	case containsSession(entry.ListenSessions, sessionID):
		entry.ListenSessions = removeSession(entry.ListenSessions, sessionID)
		if len(entry.ListenSessions) == 0 && !entry.ControllingSession.Valid() {
			f.removeSensorLocked(id, entry)
		}
		released = true

	default:
		f.setError(errs.New(errs.NotInstantiated, "invalid sessionId, no session to release"))
	}

	f.removeGatewaySession(sessionID)

	if !released {
		return false, f.lastErr
	}
	return true, nil
}

// SetStandbyOverrideRequest tells the instantiated sensor named by id
// whether sessionID wants it to keep sampling through standby
// (override true) or defer to the platform's normal standby behavior
// (override false). Mirrors the original's
// setStandbyOverrideRequest, promoted here to a first-class Facade
// operation rather than something only ever cleared on release.
func (f *Facade) SetStandbyOverrideRequest(id string, sessionID session.ID, override bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	entry := f.sensors.Lookup(cleanID(id))
	if entry == nil {
		f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("requested sensor id %q not registered", id)))
		return f.lastErr
	}
	if entry.Instance == nil {
		f.setError(errs.New(errs.NotInstantiated, fmt.Sprintf("sensor %q has not been instantiated", id)))
		return f.lastErr
	}

	entry.Instance.SetStandbyOverride(sessionID, override)
	return nil
}

// RemoveIntervalRequest drops sessionID's requested sampling interval
// on the instantiated sensor named by id, mirroring the original's
// removeIntervalRequest.
func (f *Facade) RemoveIntervalRequest(id string, sessionID session.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	entry := f.sensors.Lookup(cleanID(id))
	if entry == nil {
		f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("requested sensor id %q not registered", id)))
		return f.lastErr
	}
	if entry.Instance == nil {
		f.setError(errs.New(errs.NotInstantiated, fmt.Sprintf("sensor %q has not been instantiated", id)))
		return f.lastErr
	}

	entry.Instance.RemoveIntervalRequest(sessionID)
	return nil
}

// RemoveDataRangeRequest drops sessionID's requested data range on the
// instantiated sensor named by id, mirroring the original's
// removeDataRangeRequest.
func (f *Facade) RemoveDataRangeRequest(id string, sessionID session.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearError()

	entry := f.sensors.Lookup(cleanID(id))
	if entry == nil {
		f.setError(errs.New(errs.IdNotRegistered, fmt.Sprintf("requested sensor id %q not registered", id)))
		return f.lastErr
	}
	if entry.Instance == nil {
		f.setError(errs.New(errs.NotInstantiated, fmt.Sprintf("sensor %q has not been instantiated", id)))
		return f.lastErr
	}

	entry.Instance.RemoveDataRangeRequest(sessionID)
	return nil
}

// LostClient is the transport gateway's disconnect callback: find the
// sensor entry sessionID is attached to, stop its instance for that
// session, then release it exactly as a well-behaved client would.
func (f *Facade) LostClient(sessionID session.ID) {
	f.mu.Lock()
	var target *registry.SensorEntry
	var targetID string
	for _, id := range f.sensors.IDs() {
		entry := f.sensors.Lookup(id)
		if entry.ControllingSession == sessionID || containsSession(entry.ListenSessions, sessionID) {
			target, targetID = entry, id
			break
		}
	}
	f.mu.Unlock()

	if target == nil {
		return
	}

	if target.Instance != nil {
		target.Instance.Stop(sessionID)
	}
	if f.logger != nil {
		f.logger.Debug("lost client", "session", sessionID, "sensor", targetID)
	}
	f.ReleaseSensor(targetID, sessionID)
}

// clearRequestsLocked drops sessionID's property requests and emits
// property_request_changed for every pair whose winner changed,
// pushing the new winning value to the owning adaptor. Caller holds
// f.mu.
func (f *Facade) clearRequestsLocked(sessionID session.ID) {
	for _, pair := range f.arbitrator.ClearRequests(sessionID) {
		f.applyPropertyLocked(pair.Property, pair.Adaptor)
		if f.bus != nil {
			f.bus.EmitPropertyRequestChanged(pair.Property, pair.Adaptor)
		}
	}
}

// removeGatewaySession drops sessionID's transport connection, if
// any. The original daemon does this unconditionally at the end of
// releaseSensor regardless of whether the release itself succeeded.
func (f *Facade) removeGatewaySession(sessionID session.ID) {
	if f.gateway != nil {
		f.gateway.RemoveSession(sessionID)
	}
}

// SetPropertyRequest records sessionID's requested value for
// (property, adaptor), pushes the resulting winning value to the
// adaptor, and returns that winning value. Every call — not only ones
// that change the winner — reaches the adaptor, matching the
// original's one notification per set_request call.
func (f *Facade) SetPropertyRequest(sessionID session.ID, property, adaptor string, value float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	winning := f.arbitrator.SetRequest(sessionID, property, adaptor, value)
	f.applyPropertyLocked(property, adaptor)
	return winning
}

// applyPropertyLocked pushes the arbitrator's current winning value
// for (property, adaptor) onto the adaptor instance, logging instead
// of failing if the adaptor id is unknown.
func (f *Facade) applyPropertyLocked(property, adaptor string) {
	entry := f.adaptors.Lookup(adaptor)
	if entry == nil || entry.Instance == nil {
		if f.logger != nil {
			f.logger.Warn("setting property for nonexistent adaptor", "property", property, "adaptor", adaptor)
		}
		return
	}
	entry.Instance.SetProperty(property, f.arbitrator.WinningValue(property, adaptor))
}

func containsSession(sessions []session.ID, target session.ID) bool {
	for _, s := range sessions {
		if s == target {
			return true
		}
	}
	return false
}

func removeSession(sessions []session.ID, target session.ID) []session.ID {
	out := sessions[:0]
	for _, s := range sessions {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
