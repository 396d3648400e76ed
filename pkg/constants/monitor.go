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

package constants

import "time"

const (
	// MonitorTickInterval is the cadence of each device's health monitor loop.
	// Ticks for different devices are independent of each other.
	MonitorTickInterval = 30 * time.Second

	// HeartbeatFreshnessThreshold is the maximum age of the last helper
	// heartbeat before a device is considered to have stopped heartbeating.
	HeartbeatFreshnessThreshold = 90 * time.Second

	// ProcessProbeTimeout bounds a single helper-process liveness probe.
	ProcessProbeTimeout = 5 * time.Second

	// MaxAutoRecoveryAttempts caps automatic recovery triggers per device.
	// Manual recovery is always allowed and does not count.
	MaxAutoRecoveryAttempts = 5

	// RecoveryCooldown is the minimum gap between automatic recovery
	// triggers for the same device.
	RecoveryCooldown = 2 * time.Minute
)
