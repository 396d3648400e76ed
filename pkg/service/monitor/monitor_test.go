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

package monitor_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tvfleet/fleet-core/pkg/config"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/registry"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/monitor"
)

const (
	testAddress = "192.168.1.70"
	helperPkg   = "com.tvfleet.helper"
)

// fakeRecoverer records automatic trigger calls.
type fakeRecoverer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRecoverer) TriggerAutoRecovery(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, deviceID)
	return nil
}

func (f *fakeRecoverer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var _ = Describe("Monitor", func() {
	var (
		reg         *registry.Registry
		mockClient  *adb.MockClient
		broadcaster *events.Broadcaster
		recoverer   *fakeRecoverer
		mon         *monitor.Monitor
		device      models.Device
		ctx         context.Context
		cancel      context.CancelFunc
	)

	// makeHealthy configures probes and heartbeat so the device classifies
	// as active.
	makeHealthy := func() {
		mockClient.SetReachable(testAddress, true, 5.0)
		mockClient.SetAuthStates(testAddress, adb.AuthStateAuthorized)
		mockClient.SetProcessRunning(testAddress, true)
		Expect(mon.RecordHeartbeat(device.ID)).To(Succeed())
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		reg = registry.NewRegistry()
		mockClient = adb.NewMockClient()
		broadcaster = events.NewBroadcaster(time.Millisecond)
		recoverer = &fakeRecoverer{}

		cfg := config.Default()
		cfg.Monitor.TickInterval = 20 * time.Millisecond
		cfg.Monitor.HeartbeatFreshnessThreshold = 80 * time.Millisecond

		mon = monitor.NewMonitor(reg, mockClient, broadcaster, cfg.Monitor, helperPkg,
			monitor.WithRecoverer(recoverer))

		var err error
		device, err = reg.Admit("tv-lobby-1", testAddress)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mon.Shutdown()
		cancel()
	})

	Describe("ProbeDevice", func() {
		It("should classify a healthy device as active and record the probe", func() {
			makeHealthy()

			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			updated, _ := reg.Get(device.ID)
			Expect(updated.MonitoringStatus).To(Equal(models.MonitoringStatusActive))
			Expect(updated.ProcessStatus).To(Equal(models.ProcessStatusRunning))
			Expect(updated.LastPingTime).NotTo(BeNil())
			Expect(updated.NetworkLatencyMs).To(HaveValue(Equal(5.0)))
		})

		It("should mark an unreachable device offline without erasing the last good probe", func() {
			makeHealthy()
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			before, _ := reg.Get(device.ID)
			Expect(before.LastPingTime).NotTo(BeNil())

			mockClient.SetReachable(testAddress, false, 0)
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			after, _ := reg.Get(device.ID)
			Expect(after.MonitoringStatus).To(Equal(models.MonitoringStatusOffline))
			Expect(after.LastPingTime).To(Equal(before.LastPingTime))
			Expect(after.NetworkLatencyMs).To(Equal(before.NetworkLatencyMs))
		})

		It("should reclassify to disconnected when the heartbeat goes stale and trigger auto recovery", func() {
			makeHealthy()
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			time.Sleep(100 * time.Millisecond)
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			updated, _ := reg.Get(device.ID)
			Expect(updated.MonitoringStatus).To(Equal(models.MonitoringStatusDisconnected))
			Expect(recoverer.callCount()).To(Equal(1))
		})

		It("should trigger auto recovery when the device goes offline", func() {
			makeHealthy()
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			mockClient.SetReachable(testAddress, false, 0)
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			updated, _ := reg.Get(device.ID)
			Expect(updated.MonitoringStatus).To(Equal(models.MonitoringStatusOffline))
			Expect(recoverer.callCount()).To(Equal(1))
		})

		It("should keep the last observed process status when the probe cannot run", func() {
			makeHealthy()
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			// Authorization lost: the process probe cannot run this cycle.
			mockClient.SetAuthStates(testAddress, adb.AuthStateUnauthorized)
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			updated, _ := reg.Get(device.ID)
			Expect(updated.MonitoringStatus).To(Equal(models.MonitoringStatusDisconnected))
			Expect(updated.ProcessStatus).To(Equal(models.ProcessStatusRunning))

			// Authorization returns and the helper is gone: the preserved
			// evidence still distinguishes a crash from a clean stop.
			mockClient.SetAuthStates(testAddress, adb.AuthStateAuthorized)
			mockClient.SetProcessRunning(testAddress, false)
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			updated, _ = reg.Get(device.ID)
			Expect(updated.MonitoringStatus).To(Equal(models.MonitoringStatusError))
			Expect(updated.ProcessStatus).To(Equal(models.ProcessStatusCrashed))
		})

		It("should mark a crashed helper as error and trigger auto recovery", func() {
			makeHealthy()
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			mockClient.SetProcessRunning(testAddress, false)
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			updated, _ := reg.Get(device.ID)
			Expect(updated.MonitoringStatus).To(Equal(models.MonitoringStatusError))
			Expect(updated.ProcessStatus).To(Equal(models.ProcessStatusCrashed))
			Expect(recoverer.callCount()).To(Equal(1))
		})

		It("should skip probing while monitoring is disabled", func() {
			makeHealthy()
			Expect(mon.SetMonitoringEnabled(device.ID, false)).To(Succeed())

			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			updated, _ := reg.Get(device.ID)
			Expect(updated.MonitoringStatus).To(Equal(models.MonitoringStatusUnknown))
			Expect(mockClient.PingCalls).To(BeZero())
		})

		It("should fail for an unknown device", func() {
			Expect(mon.ProbeDevice(ctx, "no-such-device")).To(MatchError(registry.ErrDeviceNotFound))
		})
	})

	Describe("status transitions", func() {
		It("should publish exactly one event per transition", func() {
			sub, unsubscribe := broadcaster.Subscribe()
			defer unsubscribe()

			makeHealthy()
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())

			var ev events.Event
			Eventually(sub, "1s").Should(Receive(&ev))
			payload, ok := ev.Payload.(models.StatusUpdateEvent)
			Expect(ok).To(BeTrue())
			Expect(payload.Status).To(Equal(models.MonitoringStatusActive))

			// Same signals again: no transition, no event.
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())
			Expect(mon.ProbeDevice(ctx, device.ID)).To(Succeed())
			Consistently(sub, "100ms").ShouldNot(Receive())
		})
	})

	Describe("RecordHeartbeat", func() {
		It("should refresh the heartbeat timestamp and process status", func() {
			Expect(mon.RecordHeartbeat(device.ID)).To(Succeed())

			updated, _ := reg.Get(device.ID)
			Expect(updated.LastHeartbeatTime).NotTo(BeNil())
			Expect(updated.ProcessStatus).To(Equal(models.ProcessStatusRunning))
		})

		It("should fail for an unknown device", func() {
			Expect(mon.RecordHeartbeat("no-such-device")).To(MatchError(registry.ErrDeviceNotFound))
		})
	})

	Describe("device loops", func() {
		It("should probe on the tick interval once started", func() {
			makeHealthy()

			mon.StartDevice(device.ID)
			defer mon.StopDevice(device.ID)

			Eventually(func() models.MonitoringStatus {
				updated, _ := reg.Get(device.ID)
				return updated.MonitoringStatus
			}, "1s", "10ms").Should(Equal(models.MonitoringStatusActive))
		})

		It("should stop cleanly", func() {
			makeHealthy()

			mon.StartDevice(device.ID)
			mon.StopDevice(device.ID)

			// No more probes after stop.
			updated, _ := reg.Get(device.ID)
			statusAfterStop := updated.MonitoringStatus
			time.Sleep(60 * time.Millisecond)

			updated, _ = reg.Get(device.ID)
			Expect(updated.MonitoringStatus).To(Equal(statusAfterStop))
		})
	})

	Describe("stats publisher", func() {
		It("should broadcast aggregate stats", func() {
			sub, unsubscribe := broadcaster.Subscribe()
			defer unsubscribe()

			mon.StartStatsPublisher()

			var ev events.Event
			Eventually(sub, "1s").Should(Receive(&ev))
			Expect(ev.Family).To(Equal(models.EventFamilyStats))

			payload, ok := ev.Payload.(models.StatsEvent)
			Expect(ok).To(BeTrue())
			Expect(payload.Stats.Total).To(Equal(1))
		})
	})
})
