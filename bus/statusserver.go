// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/sensord-project/sensord/wire"
)

// statusRequest is the single empty frame a status client sends.
type statusRequest struct{}

// statusResponse carries the daemon's rendered status dump.
type statusResponse struct {
	Status string `cbor:"status"`
}

// StatusServer serves the sensor manager's status dump as a one
// request, one response CBOR protocol on its own Unix socket. It
// exists because this core's ControlBus is an abstract collaborator
// with no concrete wire binding (§6); StatusServer is the one bit of
// that surface worth implementing for real, so cmd/sensord-status has
// something to talk to. It adapts the accept-decode-encode-close
// shape of a CBOR-over-Unix-socket request/response server to a
// single fixed action instead of a registered-handler table.
type StatusServer struct {
	logger *slog.Logger
	dump   func() string

	socketPath string
	listener   net.Listener
	wg         sync.WaitGroup
}

// NewStatusServer returns a server that answers every connection with
// dump()'s current return value.
func NewStatusServer(dump func() string, logger *slog.Logger) *StatusServer {
	return &StatusServer{dump: dump, logger: logger}
}

// Listen starts accepting status connections on path. Non-blocking:
// returns once the listener is up.
func (s *StatusServer) Listen(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale status socket %s: %w", path, err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0777); err != nil {
		listener.Close()
		return fmt.Errorf("setting status socket permissions on %s: %w", path, err)
	}

	s.socketPath = path
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *StatusServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("status accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *StatusServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	var req statusRequest
	if err := wire.NewDecoder(conn).Decode(&req); err != nil {
		s.logger.Warn("status request decode failed", "error", err)
		return
	}

	if err := wire.NewEncoder(conn).Encode(statusResponse{Status: s.dump()}); err != nil {
		s.logger.Warn("status response encode failed", "error", err)
	}
}

// Close stops accepting connections and waits for in-flight requests
// to finish.
func (s *StatusServer) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	if s.socketPath != "" {
		os.Remove(s.socketPath)
	}
	return err
}

// QueryStatus dials path, sends the status request frame, and
// returns the daemon's rendered dump.
func QueryStatus(path string) (string, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return "", fmt.Errorf("dialing %s: %w", path, err)
	}
	defer conn.Close()

	if err := wire.NewEncoder(conn).Encode(statusRequest{}); err != nil {
		return "", fmt.Errorf("sending status request: %w", err)
	}

	var resp statusResponse
	if err := wire.NewDecoder(conn).Decode(&resp); err != nil {
		return "", fmt.Errorf("reading status response: %w", err)
	}
	return resp.Status, nil
}
