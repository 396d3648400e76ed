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

// Package events implements the broadcast layer: typed event envelopes
// fanned out to subscriber channels, with per-notification-key debouncing so
// rapid re-polling cannot produce duplicate-notification storms.
//
// Delivery is fire-and-forget and at-least-once per subscriber with a live
// buffer; a subscriber that stops draining its channel loses events rather
// than blocking publishers. Ordering is best-effort per key, with no total
// order across keys.
package events

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/tvfleet/fleet-core/pkg/constants"
	"github.com/tvfleet/fleet-core/pkg/logger"
	"github.com/tvfleet/fleet-core/pkg/metrics"
	"github.com/tvfleet/fleet-core/pkg/models"
)

// Event is the envelope every subscriber receives.
type Event struct {
	Family    models.EventFamily `json:"family"`
	Key       string             `json:"key"`
	Payload   any                `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

// Broadcaster fans events out to all subscribers.
type Broadcaster struct {
	log *zap.SugaredLogger

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event

	// seen holds the debounce window: one entry per recently published
	// (family, key, message-hash) triple. Entries expire on their own; a
	// Load hit means the identical notification went out within the window.
	seen *expiremap.ExpireMap[string, struct{}]
}

// NewBroadcaster creates a broadcaster whose identical notifications are
// suppressed within the given window.
func NewBroadcaster(window time.Duration) *Broadcaster {
	cull := constants.EventDebounceCullInterval
	if cull > window {
		cull = window
	}

	return &Broadcaster{
		log:  logger.For(logger.ComponentBroadcaster),
		subs: make(map[int]chan Event),
		seen: expiremap.NewEx[string, struct{}](cull, window),
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, constants.SubscriberBufferSize)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}

	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// PublishSetupStatus broadcasts setup-session progress. The debounce key
// includes the setup-type tag so concurrent flows for the same address do
// not suppress each other.
func (b *Broadcaster) PublishSetupStatus(ev models.SetupStatusEvent) {
	b.publish(models.EventFamilySetupStatus, ev.Address+"/"+ev.SetupType, ev)
}

// PublishStatusUpdate broadcasts a device status change.
func (b *Broadcaster) PublishStatusUpdate(ev models.StatusUpdateEvent) {
	b.publish(models.EventFamilyStatusUpdate, ev.DeviceID, ev)
}

// PublishRecovery broadcasts a recovery lifecycle event.
func (b *Broadcaster) PublishRecovery(ev models.RecoveryEvent) {
	b.publish(models.EventFamilyRecovery, ev.DeviceID, ev)
}

// PublishStats broadcasts the aggregate monitoring statistics.
func (b *Broadcaster) PublishStats(ev models.StatsEvent) {
	b.publish(models.EventFamilyStats, "stats", ev)
}

func (b *Broadcaster) publish(family models.EventFamily, key string, payload any) {
	dedupKey, ok := b.dedupKey(family, key, payload)
	if ok {
		if _, hit := b.seen.Load(dedupKey); hit {
			metrics.IncEventsDebounced(string(family))
			b.log.Debugf("suppressed duplicate %s event for %s", family, key)
			return
		}
		b.seen.Set(dedupKey, struct{}{})
	}

	event := Event{
		Family:    family,
		Key:       key,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Fire-and-forget: never block a publisher on a slow subscriber.
			b.log.Warnf("dropping %s event for subscriber %d: buffer full", family, id)
		}
	}

	metrics.IncEventsPublished(string(family))
}

// dedupKey builds the debounce key from the family, the notification key and
// a hash of the serialized payload, so only identical (key, message) pairs
// collide.
func (b *Broadcaster) dedupKey(family models.EventFamily, key string, payload any) (string, bool) {
	// Timestamps would make every message unique, defeating the debounce.
	// Hash a copy with the timestamp zeroed where the payload carries one.
	switch p := payload.(type) {
	case models.StatusUpdateEvent:
		p.Timestamp = time.Time{}
		payload = p
	case models.RecoveryEvent:
		p.Timestamp = time.Time{}
		payload = p
	case models.StatsEvent:
		p.Timestamp = time.Time{}
		payload = p
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Warnf("failed to serialize %s event for deduplication: %v", family, err)
		return "", false
	}

	sum := xxhash.Sum64(data)

	return string(family) + "/" + key + "/" + hashString(sum), true
}

const hexdigits = "0123456789abcdef"

func hashString(sum uint64) string {
	var buf [16]byte
	for i := 15; i >= 0; i-- {
		buf[i] = hexdigits[sum&0xf]
		sum >>= 4
	}

	return string(buf[:])
}
