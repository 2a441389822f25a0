// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerPID asks the kernel for the PID of the process on the other end
// of conn via SO_PEERCRED, the Unix-socket peer-credential mechanism.
// Used by the status dump (§4.8 of the sensor-manager spec) to show
// which process holds a control or listen session.
func peerPID(conn *net.UnixConn) (int, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("accessing raw connection: %w", err)
	}

	var pid int
	var sockErr error
	controlErr := rawConn.Control(func(fd uintptr) {
		cred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			sockErr = err
			return
		}
		pid = int(cred.Pid)
	})
	if controlErr != nil {
		return 0, fmt.Errorf("reading socket fd: %w", controlErr)
	}
	if sockErr != nil {
		return 0, fmt.Errorf("getsockopt(SO_PEERCRED): %w", sockErr)
	}
	return pid, nil
}
