// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport is the Sensor Manager's collaborator for
// delivering samples to clients: a Unix-domain stream socket at a
// fixed path, one accepted connection per session.
//
// This adapts the accept loop, graceful-shutdown waitgroup, and
// stale-socket cleanup of a CBOR-over-Unix-socket request/response
// server to a different shape of protocol: a session here is a
// standing subscription, not a single RPC. A client connects, sends
// one handshake frame naming the session id it was granted over the
// control bus, and then only receives — the daemon pushes samples
// until the session is released or the connection drops.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/sensord-project/sensord/session"
	"github.com/sensord-project/sensord/wire"
)

// Gateway is the Sensor Manager's view of the transport: listen for
// connections, push samples to a session's connection, and learn when
// a session's connection disappears.
type Gateway interface {
	// Listen starts accepting connections on path. Non-blocking: it
	// returns once the listener is up; accepted connections are
	// handled on internal goroutines.
	Listen(path string) error

	// Write pushes payload to sessionID's connection. Returns false if
	// the session has no connection or the write failed.
	Write(sessionID session.ID, payload []byte) bool

	// RemoveSession closes and forgets sessionID's connection, if any.
	RemoveSession(sessionID session.ID)

	// PeerPID returns the PID of the process on the other end of
	// sessionID's connection, as reported by the kernel. Returns an
	// error if the session has no connection or the lookup failed.
	PeerPID(sessionID session.ID) (int, error)

	// Close stops accepting new connections and closes every open
	// session connection.
	Close() error
}

// handshake is the first and only frame a client sends: the session
// id it was granted over the control bus for the sensor it wants to
// control or listen to.
type handshake struct {
	Session int64 `cbor:"session"`
}

// sample is the frame the gateway pushes for each delivered record.
type sample struct {
	Session int64  `cbor:"session"`
	Payload []byte `cbor:"payload"`
}

// UnixGateway is the concrete Gateway backed by a Unix-domain stream
// socket with permissions 0777, matching §6's fixed-path contract.
type UnixGateway struct {
	socketPath string
	logger     *slog.Logger

	// LostSession is called, on an internal goroutine, when a
	// session's connection closes or errors. The Sensor Manager
	// Facade sets this before calling Listen.
	LostSession func(session.ID)

	listener net.Listener
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[session.ID]*net.UnixConn
}

// NewUnixGateway returns a gateway that has not yet started listening.
func NewUnixGateway(logger *slog.Logger) *UnixGateway {
	return &UnixGateway{
		logger: logger,
		conns:  make(map[session.ID]*net.UnixConn),
	}
}

// Listen implements Gateway.
func (g *UnixGateway) Listen(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0777); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions on %s: %w", path, err)
	}

	g.socketPath = path
	g.listener = listener

	g.wg.Add(1)
	go g.acceptLoop()
	return nil
}

func (g *UnixGateway) acceptLoop() {
	defer g.wg.Done()
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			g.logger.Error("accept failed", "error", err)
			continue
		}

		unixConn, ok := conn.(*net.UnixConn)
		if !ok {
			conn.Close()
			continue
		}

		g.wg.Add(1)
		go g.handleConnection(unixConn)
	}
}

func (g *UnixGateway) handleConnection(conn *net.UnixConn) {
	defer g.wg.Done()

	// connID exists purely to let one accepted connection's handshake,
	// disconnect, and any intervening warnings be grepped out of the
	// daemon's log as a single thread of events; it never crosses the
	// wire.
	connID := uuid.New().String()

	var hello handshake
	if err := wire.NewDecoder(conn).Decode(&hello); err != nil {
		g.logger.Warn("session handshake failed", "connection", connID, "error", err)
		conn.Close()
		return
	}
	sessionID := session.ID(hello.Session)
	g.logger.Debug("session handshake complete", "connection", connID, "session", sessionID)

	g.mu.Lock()
	g.conns[sessionID] = conn
	g.mu.Unlock()

	// Block until the client disconnects or sends something (the
	// protocol is push-only from the daemon; any client byte is
	// unexpected, but reading lets us detect EOF/reset without
	// spinning).
	buf := make([]byte, 1)
	conn.Read(buf)

	g.mu.Lock()
	delete(g.conns, sessionID)
	g.mu.Unlock()
	conn.Close()
	g.logger.Debug("session connection closed", "connection", connID, "session", sessionID)

	if g.LostSession != nil {
		g.LostSession(sessionID)
	}
}

// Write implements Gateway.
func (g *UnixGateway) Write(sessionID session.ID, payload []byte) bool {
	g.mu.Lock()
	conn := g.conns[sessionID]
	g.mu.Unlock()
	if conn == nil {
		return false
	}

	if err := wire.NewEncoder(conn).Encode(sample{Session: int64(sessionID), Payload: payload}); err != nil {
		g.logger.Warn("failed to write sample", "session", sessionID, "error", err)
		return false
	}
	return true
}

// RemoveSession implements Gateway.
func (g *UnixGateway) RemoveSession(sessionID session.ID) {
	g.mu.Lock()
	conn := g.conns[sessionID]
	delete(g.conns, sessionID)
	g.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// PeerPID implements Gateway.
func (g *UnixGateway) PeerPID(sessionID session.ID) (int, error) {
	g.mu.Lock()
	conn := g.conns[sessionID]
	g.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("no connection for session %d", sessionID)
	}
	return peerPID(conn)
}

// Close implements Gateway.
func (g *UnixGateway) Close() error {
	var err error
	if g.listener != nil {
		err = g.listener.Close()
	}

	g.mu.Lock()
	conns := make([]*net.UnixConn, 0, len(g.conns))
	for _, conn := range g.conns {
		conns = append(conns, conn)
	}
	g.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}

	g.wg.Wait()
	os.Remove(g.socketPath)
	return err
}
