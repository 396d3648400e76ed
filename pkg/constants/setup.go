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
	// AuthorizationWaitTimeout is the total bounded wait for the remote
	// operator to approve the pairing dialog after a successful connect.
	AuthorizationWaitTimeout = 60 * time.Second

	// AuthorizationPollInterval is the cadence at which the negotiator polls
	// the authorization state during the wait. 60s / 2s = at most 30 polls.
	AuthorizationPollInterval = 2 * time.Second

	// NetworkProbeTimeout bounds a single reachability probe.
	NetworkProbeTimeout = 5 * time.Second

	// ConnectTimeout bounds a single bridge connect attempt.
	ConnectTimeout = 10 * time.Second

	// InstallTimeout bounds the helper application push/install step.
	InstallTimeout = 120 * time.Second

	// SetupStepTimeout bounds any remaining setup step (permission grant,
	// identity configuration, helper launch).
	SetupStepTimeout = 30 * time.Second

	// ExpectedMaxP95ExecutionTimePerEvent is the minimum context lifetime a
	// state transition needs. Transitions interrupted mid-flight leave the
	// machine inconsistent, so we refuse to start without this much headroom.
	ExpectedMaxP95ExecutionTimePerEvent = 100 * time.Millisecond
)
