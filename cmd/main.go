// Copyright 2026 TVFleet Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// fleet-core provisions Android TV devices over the debug bridge and keeps
// monitoring them once admitted to the fleet.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tvfleet/fleet-core/pkg/api"
	"github.com/tvfleet/fleet-core/pkg/config"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/fsm/setup"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/registry"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/bridge"
	"github.com/tvfleet/fleet-core/pkg/service/monitor"
	"github.com/tvfleet/fleet-core/pkg/service/negotiator"
	"github.com/tvfleet/fleet-core/pkg/service/recovery"
)

func main() {
	configPath := flag.String("config", os.Getenv("FLEET_CORE_CONFIG"), "path to the YAML config file")
	flag.Parse()

	logger.Initialize()
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.For("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := adb.NewExecClient(cfg.Bridge.BinaryPath, cfg.Bridge.Port)
	broadcaster := events.NewBroadcaster(cfg.Events.DebounceWindow)
	reg := registry.NewRegistry()

	supervisor := bridge.NewSupervisor(client, cfg.Bridge.BinaryPath,
		bridge.WithSettleInterval(cfg.Bridge.RestartSettleInterval))

	neg := negotiator.New(client, broadcaster,
		negotiator.WithWaitTimeout(cfg.Setup.AuthorizationWaitTimeout),
		negotiator.WithPollInterval(cfg.Setup.AuthorizationPollInterval),
		negotiator.WithProbeTimeout(cfg.Setup.NetworkProbeTimeout),
		negotiator.WithConnectTimeout(cfg.Setup.ConnectTimeout))

	setupMgr := setup.NewSetupManager(client, neg, supervisor, broadcaster, cfg.Helper, cfg.Setup)

	recoveryCtrl := recovery.NewController(reg, client, broadcaster, cfg.Helper, cfg.Monitor)

	mon := monitor.NewMonitor(reg, client, broadcaster, cfg.Monitor, cfg.Helper.Package,
		monitor.WithRecoverer(recoveryCtrl))
	mon.StartStatsPublisher()

	server := api.NewServer(cfg, reg, setupMgr, supervisor, mon, recoveryCtrl, broadcaster, client)

	// Bring the daemon up before serving; a failure here is not fatal, the
	// API exposes restart for the operator.
	if status := supervisor.Status(ctx); !status.Ready {
		log.Warnf("bridge daemon not ready at startup, attempting restart")
		if err := supervisor.Restart(ctx); err != nil {
			log.Warnf("bridge restart failed: %v", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gCtx)
	})

	log.Infof("fleet-core started")

	err = g.Wait()

	setupMgr.Shutdown()
	mon.Shutdown()

	if err != nil {
		log.Fatalf("fleet-core exited: %v", err)
	}
	log.Infof("fleet-core stopped")
}
