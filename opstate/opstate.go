// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package opstate fans the platform's display and power-save state
// out to every live adaptor and to calibration subscribers.
//
// The original daemon dispatches these transitions through Qt
// signals/slots fired from a single-threaded event loop. This
// reimplements the same "exactly one event processed at a time, no
// reentry" contract with plain callbacks and an explicit reentrancy
// guard, since Go has no single-threaded event loop to lean on for
// free.
package opstate

import "github.com/sensord-project/sensord/internal/assert"

// AdaptorHandle is the subset of factory.AdaptorInstance the fan-out
// needs to notify of a display/power-save transition. Defined locally
// rather than importing factory.AdaptorInstance so this package has
// no dependency on the factory or registry packages — it only needs
// "the live adaptors, whatever they are".
type AdaptorHandle interface {
	SetScreenBlanked(blanked bool)
	Resume()
	Standby()
}

// AdaptorLister supplies the current set of live adaptors. The Sensor
// Manager Facade's adaptor registry implements this.
type AdaptorLister interface {
	LiveAdaptors() []AdaptorHandle
}

// Callbacks are the calibration/display notifications the fan-out
// emits. Any nil callback is simply skipped.
type Callbacks struct {
	ResumeCalibration func()
	StopCalibration   func()
	DisplayOn         func()
}

// Fanout holds the two operational-state booleans and drives the
// transition table of the adaptor and calibration notifications.
//
// display_on starts true; power_save starts false, matching the
// platform's assumed boot state (a display that is off by default
// would otherwise never receive its first "turn on" transition).
type Fanout struct {
	displayOn bool
	powerSave bool

	lister    AdaptorLister
	callbacks Callbacks

	inHandler bool
}

// New returns a Fanout with the documented initial state
// (display_on=true, power_save=false).
func New(lister AdaptorLister, callbacks Callbacks) *Fanout {
	return &Fanout{
		displayOn: true,
		powerSave: false,
		lister:    lister,
		callbacks: callbacks,
	}
}

// DisplayOn reports the current display_on state.
func (f *Fanout) DisplayOn() bool { return f.displayOn }

// PowerSave reports the current power_save state.
func (f *Fanout) PowerSave() bool { return f.powerSave }

// HandleDisplayState processes a display_state_changed event. Must
// only be called from the I/O thread, one event at a time; reentrant
// calls (a callback invoking HandleDisplayState/HandlePSMState again
// before the first call returns) are a contract violation.
func (f *Fanout) HandleDisplayState(on bool) {
	f.enter()
	defer f.leave()

	f.displayOn = on

	if on {
		if !f.powerSave {
			f.emit(f.callbacks.ResumeCalibration)
		}
		f.emit(f.callbacks.DisplayOn)
	} else {
		f.emit(f.callbacks.StopCalibration)
	}

	for _, adaptor := range f.lister.LiveAdaptors() {
		if on {
			adaptor.SetScreenBlanked(false)
			adaptor.Resume()
		} else {
			adaptor.SetScreenBlanked(true)
			adaptor.Standby()
		}
	}
}

// HandlePSMState processes a device_psm_state_changed event. Same
// single-threaded, non-reentrant contract as HandleDisplayState.
func (f *Fanout) HandlePSMState(on bool) {
	f.enter()
	defer f.leave()

	f.powerSave = on

	if on {
		f.emit(f.callbacks.StopCalibration)
	} else if f.displayOn {
		f.emit(f.callbacks.ResumeCalibration)
	}
}

func (f *Fanout) enter() {
	assert.That(!f.inHandler, "opstate: reentered state handler while one was already in progress")
	f.inHandler = true
}

func (f *Fanout) leave() {
	f.inHandler = false
}

func (f *Fanout) emit(callback func()) {
	if callback != nil {
		callback()
	}
}
