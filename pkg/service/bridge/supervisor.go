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

// Package bridge supervises the local debug-bridge daemon: status probing
// and serialized restart. The daemon is a process-wide singleton; every
// setup session checks readiness here before issuing device operations.
package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/constants"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/metrics"
	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
)

// Supervisor owns the daemon lifecycle.
type Supervisor struct {
	log *zap.SugaredLogger

	client adb.Client

	// binaryName is what the daemon shows up as in the process table.
	binaryName string

	// settleInterval is how long a successful restart blocks before
	// returning, so dependents can immediately issue operations.
	settleInterval time.Duration

	// processProbe reports whether the daemon process is alive. Replaced in
	// tests; defaults to a process-table scan.
	processProbe func(ctx context.Context, name string) (bool, error)

	// restartMu serializes restarts. TryLock gives rejection instead of
	// queueing for overlapping requests.
	restartMu sync.Mutex
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSettleInterval overrides the post-restart settle interval.
func WithSettleInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.settleInterval = d }
}

// WithProcessProbe replaces the daemon process probe, for testing.
func WithProcessProbe(probe func(ctx context.Context, name string) (bool, error)) Option {
	return func(s *Supervisor) { s.processProbe = probe }
}

// NewSupervisor creates a supervisor for the daemon started by binaryPath.
func NewSupervisor(client adb.Client, binaryPath string, opts ...Option) *Supervisor {
	s := &Supervisor{
		log:            logger.For(logger.ComponentBridgeSupervisor),
		client:         client,
		binaryName:     filepath.Base(binaryPath),
		settleInterval: constants.BridgeRestartSettleInterval,
	}
	s.processProbe = s.scanProcessTable

	for _, opt := range opts {
		opt(s)
	}

	metrics.InitErrorCounter(metrics.ComponentBridgeSupervisor, s.binaryName)

	return s
}

// Status probes the daemon. Ready is true only when the executable answers,
// the daemon process is alive and the daemon tracks its device list.
func (s *Supervisor) Status(ctx context.Context) models.BridgeStatus {
	var status models.BridgeStatus

	probeCtx, cancel := context.WithTimeout(ctx, constants.BridgeStatusProbeTimeout)
	defer cancel()

	if _, err := s.client.Version(probeCtx); err == nil {
		status.ExecutableWorking = true
	} else {
		s.log.Debugf("executable probe failed: %v", err)
	}

	running, err := s.processProbe(probeCtx, s.binaryName)
	if err != nil {
		s.log.Debugf("process probe failed: %v", err)
	}
	status.ProcessRunning = running

	if _, err := s.client.ListDevices(probeCtx); err == nil {
		status.Initialized = true
	} else {
		s.log.Debugf("device-list probe failed: %v", err)
	}

	status.Ready = status.ExecutableWorking && status.ProcessRunning && status.Initialized

	return status
}

// EnsureReady returns ErrNotReady unless the daemon is fully ready. Callers
// must treat this as a hard precondition failure and not proceed.
func (s *Supervisor) EnsureReady(ctx context.Context) error {
	status := s.Status(ctx)
	if !status.Ready {
		return fmt.Errorf("%w (executable=%t process=%t initialized=%t)",
			ErrNotReady, status.ExecutableWorking, status.ProcessRunning, status.Initialized)
	}

	return nil
}

// Restart stops and restarts the daemon, then blocks for the settle interval
// before verifying readiness. Overlapping restarts are rejected with
// ErrRestartInProgress. A failed restart is reported, never retried here.
func (s *Supervisor) Restart(ctx context.Context) error {
	if !s.restartMu.TryLock() {
		return ErrRestartInProgress
	}
	defer s.restartMu.Unlock()

	s.log.Infof("restarting bridge daemon")

	restartCtx, cancel := context.WithTimeout(ctx, constants.BridgeRestartTimeout)
	defer cancel()

	if err := s.client.KillServer(restartCtx); err != nil {
		// The daemon may simply not be running; starting it decides.
		s.log.Warnf("kill-server failed, continuing with start: %v", err)
	}

	if err := s.client.StartServer(restartCtx); err != nil {
		metrics.IncErrorCount(metrics.ComponentBridgeSupervisor, s.binaryName)
		metrics.ObserveBridgeRestart("failure")
		return fmt.Errorf("%w: %v", ErrRestartFailed, err)
	}

	// Settle so that dependents may immediately issue device operations.
	select {
	case <-time.After(s.settleInterval):
	case <-restartCtx.Done():
		metrics.ObserveBridgeRestart("failure")
		return fmt.Errorf("%w: %v", ErrRestartFailed, restartCtx.Err())
	}

	if status := s.Status(restartCtx); !status.Ready {
		metrics.IncErrorCount(metrics.ComponentBridgeSupervisor, s.binaryName)
		metrics.ObserveBridgeRestart("failure")
		return fmt.Errorf("%w: daemon not ready after settle (executable=%t process=%t initialized=%t)",
			ErrRestartFailed, status.ExecutableWorking, status.ProcessRunning, status.Initialized)
	}

	metrics.ObserveBridgeRestart("success")
	s.log.Infof("bridge daemon restarted")

	return nil
}

// scanProcessTable looks for the daemon in the process table.
func (s *Supervisor) scanProcessTable(ctx context.Context, name string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, err
	}

	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.EqualFold(pname, name) {
			return true, nil
		}
	}

	return false, nil
}
