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
	// BridgeRestartSettleInterval is how long a restart blocks after the
	// daemon comes back before reporting success, so that dependents can
	// immediately issue device operations.
	BridgeRestartSettleInterval = 3 * time.Second

	// BridgeRestartTimeout bounds the whole restart operation.
	BridgeRestartTimeout = 30 * time.Second

	// BridgeStatusProbeTimeout bounds a single daemon status probe.
	BridgeStatusProbeTimeout = 5 * time.Second

	// DefaultBridgePort is the debug-bridge port remote devices listen on.
	DefaultBridgePort = 5555
)
