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

package registry

import "errors"

var (
	// ErrDeviceNotFound is returned when no device matches the given ID or address.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrAddressInUse is returned on admission when the network address is
	// already registered to another device.
	ErrAddressInUse = errors.New("address already in use")

	// ErrNameInUse is returned on admission when the display name is already
	// registered to another device.
	ErrNameInUse = errors.New("name already in use")
)
