// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Command sensord runs the sensor manager daemon: it listens on a
// Unix domain socket for sample subscribers, registers itself on the
// control bus, and arbitrates client requests for logical sensors,
// chains, and device adaptors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sensord-project/sensord/bus"
	"github.com/sensord-project/sensord/factory"
	"github.com/sensord-project/sensord/internal/assert"
	"github.com/sensord-project/sensord/logging"
	"github.com/sensord-project/sensord/manager"
	"github.com/sensord-project/sensord/opstate"
	"github.com/sensord-project/sensord/transport"
)

const (
	defaultSocketPath       = "/tmp/sensord.sock"
	defaultStatusSocketPath = "/tmp/sensord-status.sock"
	defaultObjectPath       = "/SensorManager"
	defaultServiceName      = "local.SensorManager"
)

func main() {
	socketPath := flag.String("socket", defaultSocketPath, "path of the Unix domain socket clients connect to")
	statusSocketPath := flag.String("status-socket", defaultStatusSocketPath, "path of the Unix domain socket sensord-status queries")
	objectPath := flag.String("object-path", defaultObjectPath, "control bus object path for the sensor manager")
	serviceName := flag.String("service-name", defaultServiceName, "control bus service name to claim")
	pluginManifest := flag.String("plugin-manifest", "", "path to a YAML manifest of expected plugin types, verified after plugin init runs")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := logging.New(level)
	assert.Logger = logger

	if err := run(*socketPath, *statusSocketPath, *objectPath, *serviceName, *pluginManifest, logger); err != nil {
		logger.Error("sensord exiting", "error", err)
		os.Exit(1)
	}
}

func run(socketPath, statusSocketPath, objectPath, serviceName, pluginManifest string, logger *slog.Logger) error {
	gateway := transport.NewUnixGateway(logger)
	controlBus := bus.NewLocal()

	f := manager.New(manager.Config{
		Logger:           logger,
		Gateway:          gateway,
		Bus:              controlBus,
		ObjectPathPrefix: objectPath,
	})

	// Plugin init code (built into this binary or loaded separately)
	// is expected to have called f.Factories().RegisterXxx and
	// f.DeclareXxx before this point in a real deployment; this core
	// only verifies the manifest's expectations against whatever got
	// registered.
	if pluginManifest != "" {
		entries, err := factory.LoadPluginManifest(pluginManifest)
		if err != nil {
			return fmt.Errorf("loading plugin manifest: %w", err)
		}
		if err := factory.VerifyRegistered(f.Factories(), entries); err != nil {
			return fmt.Errorf("verifying plugin manifest: %w", err)
		}
		logger.Info("plugin manifest verified", "path", pluginManifest, "entries", len(entries))
	}

	if err := f.RegisterService(objectPath, serviceName); err != nil {
		return fmt.Errorf("registering control bus service: %w", err)
	}

	if err := gateway.Listen(socketPath); err != nil {
		return fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	defer gateway.Close()

	statusServer := bus.NewStatusServer(f.StatusDump, logger)
	if err := statusServer.Listen(statusSocketPath); err != nil {
		return fmt.Errorf("listening on %s: %w", statusSocketPath, err)
	}
	defer statusServer.Close()

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	stop := make(chan struct{})
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		f.RunSamplePump(stop)
		return nil
	})
	group.Go(func() error {
		f.RunOpState(opstate.NoSource(), stop)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		close(stop)
		return nil
	})

	logger.Info("sensord listening", "socket", socketPath, "object_path", objectPath, "service_name", serviceName)
	return group.Wait()
}
