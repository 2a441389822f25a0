// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"errors"
	"testing"

	"github.com/sensord-project/sensord/errs"
)

func TestLocalRegisterAndUnregisterObject(t *testing.T) {
	l := NewLocal()
	if err := l.RegisterObject("/sensormanager/accel", "sensor"); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}
	if len(l.Objects()) != 1 {
		t.Fatalf("Objects() = %v, want 1 entry", l.Objects())
	}

	l.UnregisterObject("/sensormanager/accel")
	if len(l.Objects()) != 0 {
		t.Fatalf("Objects() after unregister = %v, want empty", l.Objects())
	}
}

func TestLocalRegisterServiceRecordsName(t *testing.T) {
	l := NewLocal()
	if err := l.RegisterService("local.SensorManager"); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	if l.ServiceName() != "local.SensorManager" {
		t.Fatalf("ServiceName() = %q", l.ServiceName())
	}
}

func TestLocalRegisterObjectErrInjection(t *testing.T) {
	l := NewLocal()
	want := errors.New("bus unavailable")
	l.SetRegisterObjectErr(want)

	if err := l.RegisterObject("/sensormanager/accel", "sensor"); err != want {
		t.Fatalf("RegisterObject = %v, want %v", err, want)
	}
	if len(l.Objects()) != 0 {
		t.Fatalf("Objects() = %v, want empty after a failed registration", l.Objects())
	}

	l.SetRegisterObjectErr(nil)
	if err := l.RegisterObject("/sensormanager/accel", "sensor"); err != nil {
		t.Fatalf("RegisterObject after clearing injected error: %v", err)
	}
}

func TestLocalConnectedToggle(t *testing.T) {
	l := NewLocal()
	if !l.Connected() {
		t.Fatalf("new Local should report connected")
	}
	l.SetConnected(false)
	if l.Connected() {
		t.Fatalf("SetConnected(false) did not take effect")
	}
}

func TestLocalEmitTracking(t *testing.T) {
	l := NewLocal()
	l.EmitError(errs.IdNotRegistered)
	l.EmitError(errs.AlreadyUnderControl)
	l.EmitPropertyRequestChanged("PollInterval", "accel-adaptor")

	gotErrors := l.Errors()
	if len(gotErrors) != 2 || gotErrors[0] != errs.IdNotRegistered || gotErrors[1] != errs.AlreadyUnderControl {
		t.Fatalf("Errors() = %v", gotErrors)
	}

	changes := l.PropertyRequestChanges()
	if len(changes) != 1 || changes[0].Property != "PollInterval" || changes[0].Adaptor != "accel-adaptor" {
		t.Fatalf("PropertyRequestChanges() = %v", changes)
	}
}
