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

package bridge

import "errors"

var (
	// ErrNotReady is the hard precondition failure surfaced to setup
	// sessions when the daemon is not ready. It fails fast and is not
	// retried until an explicit restart succeeds.
	ErrNotReady = errors.New("bridge daemon not ready")

	// ErrRestartInProgress is returned when a restart overlaps another.
	// Restarts are serialized; overlapping requests are rejected, never
	// interleaved.
	ErrRestartInProgress = errors.New("bridge restart already in progress")

	// ErrRestartFailed is returned when the daemon did not come back ready
	// after a restart. It is reported, not retried automatically.
	ErrRestartFailed = errors.New("bridge restart failed")
)
