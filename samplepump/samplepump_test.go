// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package samplepump

import (
	"sync"
	"testing"

	"github.com/sensord-project/sensord/session"
)

func TestWriteThenDequeuePreservesPayload(t *testing.T) {
	p := New(4, nil)
	if !p.Write(session.ID(1), []byte("A")) {
		t.Fatalf("Write returned false")
	}

	record, ok := p.TryDequeue()
	if !ok {
		t.Fatalf("TryDequeue found nothing")
	}
	if record.Session != session.ID(1) || string(record.Payload) != "A" {
		t.Fatalf("record = %+v, want session 1 payload A", record)
	}
}

func TestWriteCopiesPayloadNoAliasing(t *testing.T) {
	p := New(4, nil)
	buf := []byte("mutate me")
	p.Write(session.ID(1), buf)
	buf[0] = 'X'

	record, ok := p.TryDequeue()
	if !ok {
		t.Fatalf("TryDequeue found nothing")
	}
	if string(record.Payload) != "mutate me" {
		t.Fatalf("record.Payload = %q, want unaffected copy %q", record.Payload, "mutate me")
	}
}

func TestFIFOOrderingPerProducer(t *testing.T) {
	p := New(8, nil)
	s1 := session.ID(1)
	p.Write(s1, []byte("A"))
	p.Write(s1, []byte("B"))
	p.Write(s1, []byte("C"))

	var got []string
	for i := 0; i < 3; i++ {
		record, ok := p.TryDequeue()
		if !ok {
			t.Fatalf("expected record %d", i)
		}
		got = append(got, string(record.Payload))
	}
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestWriteDropsWhenFullWithoutBlocking(t *testing.T) {
	p := New(1, nil)
	if !p.Write(session.ID(1), []byte("A")) {
		t.Fatalf("first write should succeed")
	}
	if p.Write(session.ID(1), []byte("B")) {
		t.Fatalf("second write into a full pump should report failure")
	}

	record, ok := p.TryDequeue()
	if !ok || string(record.Payload) != "A" {
		t.Fatalf("expected only the first record to survive, got %+v ok=%v", record, ok)
	}
	if _, ok := p.TryDequeue(); ok {
		t.Fatalf("expected pump to be empty after dequeuing the surviving record")
	}
}

func TestRunForwardsUntilStopped(t *testing.T) {
	p := New(8, nil)
	var mu sync.Mutex
	var forwarded []string

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		p.Run(stop, func(sessionID session.ID, payload []byte) {
			mu.Lock()
			forwarded = append(forwarded, string(payload))
			mu.Unlock()
		})
		close(done)
	}()

	p.Write(session.ID(1), []byte("A"))
	p.Write(session.ID(1), []byte("B"))

	// Give Run a chance to drain; then stop it.
	for {
		mu.Lock()
		n := len(forwarded)
		mu.Unlock()
		if n == 2 {
			break
		}
	}
	close(stop)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(forwarded) != 2 || forwarded[0] != "A" || forwarded[1] != "B" {
		t.Fatalf("forwarded = %v, want [A B]", forwarded)
	}
}
