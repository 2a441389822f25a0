// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"
	"strings"

	"github.com/sensord-project/sensord/session"
)

// StatusDump renders a human-readable snapshot of every adaptor,
// chain, and logical sensor entry: reference counts, running state,
// and the PID of each session's peer process, as reported by the
// transport gateway's kernel-level credential lookup.
func (f *Facade) StatusDump() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var b strings.Builder

	b.WriteString("  Adaptors:\n")
	for _, id := range f.adaptors.IDs() {
		entry := f.adaptors.Lookup(id)
		fmt.Fprintf(&b, "    %s [%d listener(s)]\n", entry.Type, entry.RefCount)
	}

	b.WriteString("  Chains:\n")
	for _, id := range f.chains.IDs() {
		entry := f.chains.Lookup(id)
		fmt.Fprintf(&b, "    %s [%d listener(s)]. %s\n", entry.Type, entry.RefCount, runningState(entry.Instance))
	}

	b.WriteString("  Logical sensors:\n")
	for _, id := range f.sensors.IDs() {
		entry := f.sensors.Lookup(id)

		var line strings.Builder
		fmt.Fprintf(&line, "    %s [", entry.Type)

		if entry.ControllingSession.Valid() {
			fmt.Fprintf(&line, "Control (PID: %s) + ", f.peerPIDString(entry.ControllingSession))
		} else {
			line.WriteString("No control, ")
		}

		if len(entry.ListenSessions) > 0 {
			fmt.Fprintf(&line, "%d listen session(s), PID(s): %s]", len(entry.ListenSessions), f.peerPIDStrings(entry.ListenSessions))
		} else {
			line.WriteString("No listen sessions]")
		}

		fmt.Fprintf(&line, ". %s\n", runningState(entry.Instance))
		b.WriteString(line.String())
	}

	return b.String()
}

// runningState reports an instance's Running() status, or "Stopped"
// for a nil (not currently instantiated) instance.
func runningState(instance interface{ Running() bool }) string {
	if instance == nil || !instance.Running() {
		return "Stopped"
	}
	return "Running"
}

// peerPIDString renders sessionID's peer PID, "n/a" if there is no
// live transport connection for it, or the lookup error's text if the
// kernel query itself failed.
func (f *Facade) peerPIDString(sessionID session.ID) string {
	if f.gateway == nil {
		return "n/a"
	}
	pid, err := f.gateway.PeerPID(sessionID)
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%d", pid)
}

// peerPIDStrings renders the comma-separated peer PIDs for a set of
// sessions, in order.
func (f *Facade) peerPIDStrings(sessions []session.ID) string {
	parts := make([]string, len(sessions))
	for i, s := range sessions {
		parts[i] = f.peerPIDString(s)
	}
	return strings.Join(parts, ", ")
}
