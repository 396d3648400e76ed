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

package registry_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/registry"
)

var _ = Describe("Registry", func() {
	var reg *registry.Registry

	BeforeEach(func() {
		reg = registry.NewRegistry()
	})

	It("should admit a device with unknown status and monitoring enabled", func() {
		device, err := reg.Admit("Lobby TV", "192.168.1.50")
		Expect(err).NotTo(HaveOccurred())
		Expect(device.ID).NotTo(BeEmpty())
		Expect(device.MonitoringStatus).To(Equal(models.MonitoringStatusUnknown))
		Expect(device.MonitoringEnabled).To(BeTrue())
		Expect(device.AutoRecoveryAttempts).To(BeZero())
	})

	It("should reject a duplicate address", func() {
		_, err := reg.Admit("Lobby TV", "192.168.1.50")
		Expect(err).NotTo(HaveOccurred())

		_, err = reg.Admit("Other TV", "192.168.1.50")
		Expect(err).To(MatchError(registry.ErrAddressInUse))
	})

	It("should reject a duplicate name", func() {
		_, err := reg.Admit("Lobby TV", "192.168.1.50")
		Expect(err).NotTo(HaveOccurred())

		_, err = reg.Admit("Lobby TV", "192.168.1.51")
		Expect(err).To(MatchError(registry.ErrNameInUse))
	})

	It("should find devices by ID and by address", func() {
		admitted, err := reg.Admit("Lobby TV", "192.168.1.50")
		Expect(err).NotTo(HaveOccurred())

		byID, err := reg.Get(admitted.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Address).To(Equal("192.168.1.50"))

		byAddr, err := reg.GetByAddress("192.168.1.50")
		Expect(err).NotTo(HaveOccurred())
		Expect(byAddr.ID).To(Equal(admitted.ID))

		_, err = reg.Get("nope")
		Expect(err).To(MatchError(registry.ErrDeviceNotFound))
	})

	It("should apply updates atomically and return copies on read", func() {
		admitted, err := reg.Admit("Lobby TV", "192.168.1.50")
		Expect(err).NotTo(HaveOccurred())

		now := time.Now()
		latency := 12.5
		err = reg.Update(admitted.ID, func(d *models.Device) {
			d.MonitoringStatus = models.MonitoringStatusActive
			d.LastPingTime = &now
			d.NetworkLatencyMs = &latency
		})
		Expect(err).NotTo(HaveOccurred())

		got, err := reg.Get(admitted.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MonitoringStatus).To(Equal(models.MonitoringStatusActive))
		Expect(*got.NetworkLatencyMs).To(Equal(12.5))

		// Mutating the returned copy must not leak into the registry.
		*got.NetworkLatencyMs = 999
		again, err := reg.Get(admitted.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*again.NetworkLatencyMs).To(Equal(12.5))
	})

	It("should free address and name on delete", func() {
		admitted, err := reg.Admit("Lobby TV", "192.168.1.50")
		Expect(err).NotTo(HaveOccurred())

		Expect(reg.Delete(admitted.ID)).To(Succeed())
		Expect(reg.Delete(admitted.ID)).To(MatchError(registry.ErrDeviceNotFound))

		_, err = reg.Admit("Lobby TV", "192.168.1.50")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should aggregate stats per status with average latency", func() {
		a, _ := reg.Admit("TV A", "10.0.0.1")
		b, _ := reg.Admit("TV B", "10.0.0.2")
		c, _ := reg.Admit("TV C", "10.0.0.3")

		l1, l2 := 10.0, 30.0
		Expect(reg.Update(a.ID, func(d *models.Device) {
			d.MonitoringStatus = models.MonitoringStatusActive
			d.NetworkLatencyMs = &l1
		})).To(Succeed())
		Expect(reg.Update(b.ID, func(d *models.Device) {
			d.MonitoringStatus = models.MonitoringStatusOffline
		})).To(Succeed())
		Expect(reg.Update(c.ID, func(d *models.Device) {
			d.MonitoringStatus = models.MonitoringStatusActive
			d.NetworkLatencyMs = &l2
		})).To(Succeed())

		stats := reg.Stats()
		Expect(stats.Total).To(Equal(3))
		Expect(stats.Active).To(Equal(2))
		Expect(stats.Offline).To(Equal(1))
		Expect(stats.AverageLatency).To(Equal(20.0))
	})
})
