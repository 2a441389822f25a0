// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package session allocates and tracks the integer handles that
// represent one client's grant (control or listen) on one logical
// sensor.
package session

import "sync"

// ID identifies a session. Positive values are real, allocated
// sessions. Zero (None) is reserved for "no session" and is never
// allocated. Any negative value is the Invalid sentinel used by
// operations that fail before a session could be granted.
//
// The original daemon this is modeled on uses a 32-bit counter and
// assumes it never wraps around for the life of the process. This
// widens the counter to 64 bits so that assumption holds without
// qualification for a long-running daemon.
type ID int64

// Invalid is returned by operations that fail to grant a session.
const Invalid ID = -1

// None is the reserved "no session" value. It is distinct from
// Invalid: None means "this slot was never assigned a session",
// Invalid means "this operation could not allocate or honor one".
const None ID = 0

// Valid reports whether id denotes an allocated, live session.
func (id ID) Valid() bool {
	return id > 0
}

// Table allocates session ids from a monotonically increasing
// counter. Ids are never reused within the table's lifetime.
type Table struct {
	mu   sync.Mutex
	next ID
}

// NewTable returns a Table whose first allocation is 1.
func NewTable() *Table {
	return &Table{next: 1}
}

// Next allocates and returns a fresh session id.
func (t *Table) Next() ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	return id
}
