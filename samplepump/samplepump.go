// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package samplepump carries sample records from sensor producer
// threads to the single I/O thread that owns the Transport Gateway.
//
// Producers must never perform socket I/O themselves (that work
// belongs to the I/O thread), and the I/O thread must never block on a
// producer's internal locks. The original daemon this is modeled on
// bridges the two sides with an anonymous pipe so the I/O thread's
// single-threaded event loop, which already polls file descriptors,
// can wake on new samples; a buffered Go channel gives the same FIFO,
// non-blocking-write, wake-the-consumer properties without needing a
// real file descriptor.
package samplepump

import (
	"log/slog"

	"github.com/sensord-project/sensord/session"
)

// DefaultCapacity is the pump's fixed record capacity. A full pump
// drops new writes rather than growing or blocking — back-pressure
// negotiation between producers and the I/O thread is not provided.
const DefaultCapacity = 256

// Record is one sample handed from a producer to the I/O thread. The
// payload is an opaque byte run whose layout is defined by the
// sensor; the pump never interprets it.
type Record struct {
	Session session.ID
	Payload []byte
}

// Pump is a bounded FIFO from any number of producer goroutines to a
// single consumer goroutine running on the I/O thread.
type Pump struct {
	records chan Record
	logger  *slog.Logger
}

// New returns a pump with the given fixed capacity.
func New(capacity int, logger *slog.Logger) *Pump {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pump{
		records: make(chan Record, capacity),
		logger:  logger,
	}
}

// Write copies payload into a fresh buffer and enqueues it for
// sessionID. It never blocks: if the pump is full, the sample is
// dropped and a warning is logged. Returns true iff the record was
// enqueued.
func (p *Pump) Write(sessionID session.ID, payload []byte) bool {
	copied := make([]byte, len(payload))
	copy(copied, payload)

	select {
	case p.records <- Record{Session: sessionID, Payload: copied}:
		return true
	default:
		if p.logger != nil {
			p.logger.Warn("sample pump full, dropping record",
				"session", sessionID,
				"size", len(payload),
			)
		}
		return false
	}
}

// Run dequeues records one at a time and calls forward for each,
// until stop is closed. Run owns the consumer side and must only ever
// be called from the I/O thread. forward's outcome
// (success or failure to deliver to the Transport Gateway) does not
// affect the pump; the record's buffer is released either way simply
// by going out of scope.
func (p *Pump) Run(stop <-chan struct{}, forward func(sessionID session.ID, payload []byte)) {
	for {
		select {
		case record := <-p.records:
			forward(record.Session, record.Payload)
		case <-stop:
			return
		}
	}
}

// TryDequeue pulls at most one pending record without blocking. It
// exists for tests and for callers that drive their own event loop
// instead of calling Run.
func (p *Pump) TryDequeue() (Record, bool) {
	select {
	case record := <-p.records:
		return record, true
	default:
		return Record{}, false
	}
}
