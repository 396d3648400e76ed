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
	// EventDebounceWindow is the window within which an identical
	// (key, message) pair is suppressed to prevent notification storms
	// from rapid re-polling.
	EventDebounceWindow = 10 * time.Second

	// EventDebounceCullInterval is how often expired debounce entries are
	// culled from the TTL map.
	EventDebounceCullInterval = 30 * time.Second

	// SubscriberBufferSize is the channel buffer per event subscriber.
	// Delivery is fire-and-forget: a full buffer drops the event for that
	// subscriber rather than blocking the publisher.
	SubscriberBufferSize = 64
)
