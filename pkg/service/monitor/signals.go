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

package monitor

import (
	"context"
	"time"

	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
)

// SignalSource runs the probes that feed Classify. The monitor owns one per
// fleet; the recovery controller builds its own to re-measure a device after
// an attempt instead of assuming the outcome.
type SignalSource struct {
	Client             adb.Client
	HelperPackage      string
	ProbeTimeout       time.Duration
	HeartbeatFreshness time.Duration
}

// Measure gathers one cycle of evidence for the device. The process probe
// only runs against an authorized bridge connection; without one its result
// stays unknown so previously observed liveness is not contradicted by a
// probe that never ran.
func (s SignalSource) Measure(ctx context.Context, device models.Device, now time.Time) (Signals, *float64) {
	var signals Signals
	var latency *float64

	probeCtx, cancel := context.WithTimeout(ctx, s.ProbeTimeout)
	defer cancel()

	if ms, err := s.Client.Ping(probeCtx, device.Address); err == nil {
		signals.NetworkReachable = true
		latency = &ms
	}

	if state, err := s.Client.AuthState(probeCtx, device.Address); err == nil {
		signals.BridgeAuthorized = state == adb.AuthStateAuthorized
	}

	signals.ProcessStatus = models.ProcessStatusUnknown
	if signals.BridgeAuthorized {
		if running, err := s.Client.IsProcessRunning(probeCtx, device.Address, s.HelperPackage); err == nil {
			if running {
				signals.ProcessStatus = models.ProcessStatusRunning
			} else if device.ProcessStatus == models.ProcessStatusRunning {
				// It was up on the previous cycle and died since.
				signals.ProcessStatus = models.ProcessStatusCrashed
			} else {
				signals.ProcessStatus = models.ProcessStatusStopped
			}
		}
	}

	signals.HeartbeatFresh = device.LastHeartbeatTime != nil &&
		now.Sub(*device.LastHeartbeatTime) <= s.HeartbeatFreshness

	signals.RecoveryInProgress = device.MonitoringStatus == models.MonitoringStatusRecovering

	return signals, latency
}
