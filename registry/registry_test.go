// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"testing"

	"github.com/sensord-project/sensord/session"
)

func TestSensorsInsertLookup(t *testing.T) {
	s := NewSensors()
	s.Insert("accel", &SensorEntry{Type: "AccelerometerSensor", ControllingSession: session.Invalid})

	entry := s.Lookup("accel")
	if entry == nil {
		t.Fatalf("Lookup(accel) = nil")
	}
	if entry.Type != "AccelerometerSensor" {
		t.Fatalf("entry.Type = %q", entry.Type)
	}
	if s.Lookup("missing") != nil {
		t.Fatalf("Lookup(missing) should be nil")
	}
}

func TestSensorsLookupReturnsInsertedEntry(t *testing.T) {
	s := NewSensors()
	first := &SensorEntry{Type: "AccelerometerSensor"}
	s.Insert("accel", first)

	// A duplicate Insert is a contract violation reported through
	// internal/assert (os.Exit, not panic), so this test documents the
	// precondition rather than exercising the violation itself, which
	// would kill the test binary.
	if s.Lookup("accel") != first {
		t.Fatalf("entry replaced or lost before the duplicate-insert check")
	}
}

func TestSensorsIDsSorted(t *testing.T) {
	s := NewSensors()
	s.Insert("gyro", &SensorEntry{})
	s.Insert("accel", &SensorEntry{})
	s.Insert("compass", &SensorEntry{})

	ids := s.IDs()
	want := []string{"accel", "compass", "gyro"}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
}

func TestAdaptorsAndChainsBasic(t *testing.T) {
	a := NewAdaptors()
	a.Insert("accel-adaptor", &AdaptorEntry{Type: "AccelerometerAdaptor"})
	if a.Lookup("accel-adaptor") == nil {
		t.Fatalf("Lookup failed after Insert")
	}

	c := NewChains()
	c.Insert("accel-chain", &ChainEntry{Type: "AccelerometerChain"})
	if c.Lookup("accel-chain") == nil {
		t.Fatalf("Lookup failed after Insert")
	}
}
