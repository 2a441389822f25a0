// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package arbitrate reduces multi-session requests for the same
// adaptor property to a single effective value: the numeric maximum
// across all outstanding requests, or a registered default when no
// session has an opinion.
package arbitrate

import "github.com/sensord-project/sensord/session"

// key identifies one (property, adaptor) pair being arbitrated.
type key struct {
	property string
	adaptor  string
}

// Arbitrator stores, per (property, adaptor), the set of outstanding
// requests keyed by session, and the default value to use when that
// set is empty.
//
// Arbitrator is not safe for concurrent use; the Facade serializes
// access to it on the I/O thread along with everything else.
type Arbitrator struct {
	requests map[key]map[session.ID]float64
	defaults map[key]float64
}

// NewArbitrator returns an empty arbitrator.
func NewArbitrator() *Arbitrator {
	return &Arbitrator{
		requests: make(map[key]map[session.ID]float64),
		defaults: make(map[key]float64),
	}
}

// RegisterDefault sets the value winning_value returns for (property,
// adaptor) when no session currently has an outstanding request.
// Adaptors that need a nonzero rest value (e.g. an idle poll interval)
// call this once at construction.
func (a *Arbitrator) RegisterDefault(property, adaptor string, value float64) {
	a.defaults[key{property, adaptor}] = value
}

// SetRequest records session's requested value for (property,
// adaptor), replacing any previous request from the same session, and
// returns the new winning value.
func (a *Arbitrator) SetRequest(sessionID session.ID, property, adaptor string, value float64) float64 {
	k := key{property, adaptor}
	set, ok := a.requests[k]
	if !ok {
		set = make(map[session.ID]float64)
		a.requests[k] = set
	}
	set[sessionID] = value
	return a.winningValueLocked(k)
}

// ClearRequests drops every request made by sessionID, across every
// (property, adaptor) pair. It returns the (property, adaptor) pairs
// whose winning value changed as a result, each appearing at most
// once, so the caller can emit one property_request_changed
// notification per pair. Idempotent: calling it again for a session
// with no outstanding requests returns an empty slice.
func (a *Arbitrator) ClearRequests(sessionID session.ID) []PropertyAdaptor {
	var changed []PropertyAdaptor
	for k, set := range a.requests {
		if _, present := set[sessionID]; !present {
			continue
		}
		before := a.winningValueLocked(k)
		delete(set, sessionID)
		if len(set) == 0 {
			delete(a.requests, k)
		}
		after := a.winningValueLocked(k)
		if before != after {
			changed = append(changed, PropertyAdaptor{Property: k.property, Adaptor: k.adaptor})
		}
	}
	return changed
}

// WinningValue returns the current winning value for (property,
// adaptor): the maximum across outstanding requests, or the
// registered default if none exist.
func (a *Arbitrator) WinningValue(property, adaptor string) float64 {
	return a.winningValueLocked(key{property, adaptor})
}

func (a *Arbitrator) winningValueLocked(k key) float64 {
	set, ok := a.requests[k]
	if !ok || len(set) == 0 {
		return a.defaults[k]
	}
	var max float64
	first := true
	for _, v := range set {
		if first || v > max {
			max = v
			first = false
		}
	}
	return max
}

// PropertyAdaptor names one (property, adaptor) pair.
type PropertyAdaptor struct {
	Property string
	Adaptor  string
}
