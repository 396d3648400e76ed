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

// Package monitor runs the per-device health loops: ping, bridge and process
// probes plus heartbeat freshness, folded into one status per device. Status
// transitions are published; steady states are not.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/config"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/registry"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
)

// Recoverer triggers an automatic recovery attempt. Satisfied by the recovery
// controller; nil disables auto recovery regardless of config.
type Recoverer interface {
	TriggerAutoRecovery(ctx context.Context, deviceID string) error
}

type loop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Monitor owns one probe loop per admitted device plus the stats publisher.
type Monitor struct {
	log *zap.SugaredLogger

	registry    *registry.Registry
	client      adb.Client
	broadcaster *events.Broadcaster
	cfg         config.MonitorConfig
	helperPkg   string
	recoverer   Recoverer
	signals     SignalSource

	mu    sync.Mutex
	loops map[string]*loop

	statsCancel context.CancelFunc
	statsDone   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRecoverer wires the automatic recovery trigger.
func WithRecoverer(r Recoverer) Option {
	return func(m *Monitor) { m.recoverer = r }
}

// NewMonitor creates the monitor. Loops start per device via StartDevice.
func NewMonitor(
	reg *registry.Registry,
	client adb.Client,
	broadcaster *events.Broadcaster,
	cfg config.MonitorConfig,
	helperPkg string,
	opts ...Option,
) *Monitor {
	m := &Monitor{
		log:         logger.For(logger.ComponentHealthMonitor),
		registry:    reg,
		client:      client,
		broadcaster: broadcaster,
		cfg:         cfg,
		helperPkg:   helperPkg,
		loops:       make(map[string]*loop),
		signals: SignalSource{
			Client:             client,
			HelperPackage:      helperPkg,
			ProbeTimeout:       cfg.ProcessProbeTimeout,
			HeartbeatFreshness: cfg.HeartbeatFreshnessThreshold,
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// StartDevice launches the probe loop for a device. Starting an already
// monitored device is a no-op.
func (m *Monitor) StartDevice(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.loops[deviceID]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{cancel: cancel, done: make(chan struct{})}
	m.loops[deviceID] = l

	go m.runLoop(ctx, deviceID, l)

	m.log.Infof("monitoring started for device %s", deviceID)
}

// StopDevice stops the probe loop for a device and waits for it to exit.
// Called on device deletion.
func (m *Monitor) StopDevice(deviceID string) {
	m.mu.Lock()
	l, ok := m.loops[deviceID]
	if ok {
		delete(m.loops, deviceID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	l.cancel()
	<-l.done

	m.log.Infof("monitoring stopped for device %s", deviceID)
}

// StartStatsPublisher launches the periodic aggregate stats broadcast.
func (m *Monitor) StartStatsPublisher() {
	ctx, cancel := context.WithCancel(context.Background())
	m.statsCancel = cancel
	m.statsDone = make(chan struct{})

	go func() {
		defer close(m.statsDone)

		ticker := time.NewTicker(m.cfg.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.broadcaster.PublishStats(models.StatsEvent{
					Stats:     m.registry.Stats(),
					Timestamp: time.Now(),
				})
			}
		}
	}()
}

// Shutdown stops every loop and the stats publisher.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	all := make(map[string]*loop, len(m.loops))
	for id, l := range m.loops {
		all[id] = l
	}
	m.loops = make(map[string]*loop)
	m.mu.Unlock()

	for _, l := range all {
		l.cancel()
		<-l.done
	}

	if m.statsCancel != nil {
		m.statsCancel()
		<-m.statsDone
	}
}

// RecordHeartbeat ingests a helper heartbeat. A heartbeat proves the helper
// process is alive, so the process status is refreshed along with the
// timestamp.
func (m *Monitor) RecordHeartbeat(deviceID string) error {
	now := time.Now()

	return m.registry.Update(deviceID, func(d *models.Device) {
		d.LastHeartbeatTime = &now
		d.ProcessStatus = models.ProcessStatusRunning
	})
}

// SetMonitoringEnabled toggles probing for a device. The loop keeps running
// but skips probe cycles while disabled; the last known status stays put.
func (m *Monitor) SetMonitoringEnabled(deviceID string, enabled bool) error {
	return m.registry.Update(deviceID, func(d *models.Device) {
		d.MonitoringEnabled = enabled
	})
}

func (m *Monitor) runLoop(ctx context.Context, deviceID string, l *loop) {
	defer close(l.done)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.ProbeDevice(ctx, deviceID); err != nil {
				if errors.Is(err, registry.ErrDeviceNotFound) {
					return
				}
				m.log.Debugf("probe cycle for %s: %v", deviceID, err)
			}
		}
	}
}

// ProbeDevice runs one probe cycle for the device: gather signals, classify,
// store, and publish if the status changed.
func (m *Monitor) ProbeDevice(ctx context.Context, deviceID string) error {
	device, err := m.registry.Get(deviceID)
	if err != nil {
		return err
	}

	if !device.MonitoringEnabled {
		return nil
	}

	now := time.Now()
	signals, latency := m.signals.Measure(ctx, device, now)
	newStatus := Classify(signals)

	var changed bool
	err = m.registry.Update(deviceID, func(d *models.Device) {
		changed = d.MonitoringStatus != newStatus
		d.MonitoringStatus = newStatus

		// Failed probes never erase evidence of the last success: the
		// process status only moves when the probe actually ran, and the
		// ping record only on a reachable device.
		if signals.ProcessStatus != models.ProcessStatusUnknown {
			d.ProcessStatus = signals.ProcessStatus
		}
		if signals.NetworkReachable {
			t := now
			d.LastPingTime = &t
			d.NetworkLatencyMs = latency
		}
	})
	if err != nil {
		return err
	}

	if changed {
		m.publishTransition(device, newStatus, signals, latency, now)
	}

	switch newStatus {
	case models.MonitoringStatusError, models.MonitoringStatusDisconnected, models.MonitoringStatusOffline:
		if m.recoverer != nil && m.cfg.AutoRecoveryEnabled {
			if err := m.recoverer.TriggerAutoRecovery(ctx, deviceID); err != nil {
				m.log.Debugf("auto recovery for %s not started: %v", deviceID, err)
			}
		}
	}

	return nil
}

func (m *Monitor) publishTransition(device models.Device, status models.MonitoringStatus, signals Signals, latency *float64, now time.Time) {
	networkStatus := "unreachable"
	if signals.NetworkReachable {
		networkStatus = "reachable"
	}
	heartbeatStatus := "stale"
	if signals.HeartbeatFresh {
		heartbeatStatus = "fresh"
	}

	m.broadcaster.PublishStatusUpdate(models.StatusUpdateEvent{
		DeviceID:        device.ID,
		Address:         device.Address,
		Status:          status,
		NetworkStatus:   networkStatus,
		ProcessStatus:   signals.ProcessStatus,
		HeartbeatStatus: heartbeatStatus,
		LatencyMs:       latency,
		Timestamp:       now,
	})

	m.log.Infof("device %s status %s -> %s", device.Address, device.MonitoringStatus, status)
}
