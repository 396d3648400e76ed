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

package negotiator

import "errors"

var (
	// ErrAuthorizationTimeout is returned when the device stays unauthorized
	// for the whole wait window.
	ErrAuthorizationTimeout = errors.New("authorization wait timed out")

	// ErrAuthorizationDenied is returned when the device explicitly rejects
	// the debug-bridge key.
	ErrAuthorizationDenied = errors.New("authorization denied by device")

	// ErrAuthorizationStopped is returned when the wait is cancelled before
	// it resolves. Distinct from ErrAuthorizationTimeout: the user gave up,
	// the device did not.
	ErrAuthorizationStopped = errors.New("authorization wait stopped by user")
)
