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

package logger

const (
	// ComponentBridgeSupervisor is the name of the debug-bridge daemon supervisor
	ComponentBridgeSupervisor = "bridge-supervisor"

	// ComponentNegotiator is the name of the connection negotiator
	ComponentNegotiator = "negotiator"

	// ComponentSetupManager is the name of the setup session manager
	ComponentSetupManager = "setup-manager"

	// ComponentHealthMonitor is the name of the per-device health monitor
	ComponentHealthMonitor = "health-monitor"

	// ComponentRecovery is the name of the recovery controller
	ComponentRecovery = "recovery"

	// ComponentBroadcaster is the name of the event broadcaster
	ComponentBroadcaster = "broadcaster"

	// ComponentRegistry is the name of the device registry
	ComponentRegistry = "registry"

	// ComponentAdbClient is the name of the debug-bridge client
	ComponentAdbClient = "adb-client"

	// ComponentAPI is the name of the HTTP API
	ComponentAPI = "api"

	// ComponentConfig is the name of the configuration loader
	ComponentConfig = "config"
)
