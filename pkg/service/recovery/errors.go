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

package recovery

import "errors"

var (
	// ErrRecoveryInProgress is returned when a recovery is already running
	// for the device.
	ErrRecoveryInProgress = errors.New("recovery already in progress for device")

	// ErrAttemptsExhausted is returned for automatic triggers once the device
	// has used up its attempt budget. Manual triggers are never budgeted.
	ErrAttemptsExhausted = errors.New("auto recovery attempts exhausted")

	// ErrCooldownActive is returned for automatic triggers that arrive before
	// the cooldown from the previous attempt has elapsed.
	ErrCooldownActive = errors.New("recovery cooldown active")
)
