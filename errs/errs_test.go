// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package errs

import (
	"errors"
	"testing"
)

func TestErrorsIsComparesByKindNotMessage(t *testing.T) {
	a := New(IdNotRegistered, "sensor 'accel' not registered")
	b := New(IdNotRegistered, "a completely different message")
	c := New(NotInstantiated, "sensor 'accel' not registered")

	if !errors.Is(a, b) {
		t.Fatalf("errors.Is(a, b) = false, want true (same kind)")
	}
	if errors.Is(a, c) {
		t.Fatalf("errors.Is(a, c) = true, want false (different kind)")
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := errors.New("underlying failure")
	wrapped := Wrap(AdaptorNotStarted, "starting adaptor", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatalf("errors.Is(wrapped, cause) = false, want true")
	}
	if wrapped.Kind != AdaptorNotStarted {
		t.Fatalf("Kind = %v, want AdaptorNotStarted", wrapped.Kind)
	}
}

func TestKindStringIsStable(t *testing.T) {
	cases := map[Kind]string{
		NoError:               "NoError",
		NotConnected:          "NotConnected",
		CanNotRegisterObject:  "CanNotRegisterObject",
		CanNotRegisterService: "CanNotRegisterService",
		IdNotRegistered:       "IdNotRegistered",
		FactoryNotRegistered:  "FactoryNotRegistered",
		NotInstantiated:       "NotInstantiated",
		AlreadyUnderControl:   "AlreadyUnderControl",
		AdaptorNotStarted:     "AdaptorNotStarted",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
