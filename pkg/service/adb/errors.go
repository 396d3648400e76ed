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

package adb

import "errors"

var (
	// ErrUnreachable is returned when the address does not answer network probes.
	ErrUnreachable = errors.New("host unreachable")

	// ErrConnectionRefused is returned when the host answers but refuses the
	// bridge port.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrDeviceNotTracked is returned when the daemon has no entry for the
	// address in its device list.
	ErrDeviceNotTracked = errors.New("device not tracked by bridge daemon")

	// ErrInstallFailed is returned when a package push/install fails.
	ErrInstallFailed = errors.New("package install failed")

	// ErrCommandFailed wraps a non-zero exit of the bridge executable.
	ErrCommandFailed = errors.New("bridge command failed")
)
