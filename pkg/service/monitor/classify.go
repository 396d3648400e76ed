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

import "github.com/tvfleet/fleet-core/pkg/models"

// Signals is the evidence one probe cycle gathered about a device.
type Signals struct {
	// NetworkReachable is false when the device did not answer the ping.
	NetworkReachable bool

	// BridgeAuthorized is true when the daemon lists the device as an
	// authorized connection.
	BridgeAuthorized bool

	// ProcessStatus is the helper process state, or unknown when the probe
	// could not run.
	ProcessStatus models.ProcessStatus

	// HeartbeatFresh is true when the last helper heartbeat is within the
	// freshness threshold. False also covers "never heartbeated".
	HeartbeatFresh bool

	// RecoveryInProgress is true while a recovery attempt runs.
	RecoveryInProgress bool
}

// Classify folds the signals into one status. Precedence, strongest first:
// offline, error, disconnected, recovering, active. Unknown is the fallback
// when the evidence is contradictory or absent.
func Classify(s Signals) models.MonitoringStatus {
	if !s.NetworkReachable {
		return models.MonitoringStatusOffline
	}

	// Reachable but the helper is known dead: worse than a stale connection.
	if s.ProcessStatus == models.ProcessStatusStopped || s.ProcessStatus == models.ProcessStatusCrashed {
		return models.MonitoringStatusError
	}

	if !s.BridgeAuthorized || !s.HeartbeatFresh {
		return models.MonitoringStatusDisconnected
	}

	if s.RecoveryInProgress {
		return models.MonitoringStatusRecovering
	}

	if s.ProcessStatus == models.ProcessStatusRunning {
		return models.MonitoringStatusActive
	}

	return models.MonitoringStatusUnknown
}
