// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Command sensord-status asks a running sensord for its status dump
// and prints it verbatim to stdout.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sensord-project/sensord/bus"
)

func main() {
	statusSocketPath := flag.String("status-socket", "/tmp/sensord-status.sock", "path of sensord's status query socket")
	flag.Parse()

	status, err := bus.QueryStatus(*statusSocketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sensord-status: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(status)
}
