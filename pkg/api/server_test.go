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

package api_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tvfleet/fleet-core/pkg/api"
	"github.com/tvfleet/fleet-core/pkg/config"
	"github.com/tvfleet/fleet-core/pkg/events"
	"github.com/tvfleet/fleet-core/pkg/fsm/setup"
	"github.com/tvfleet/fleet-core/pkg/models"
	"github.com/tvfleet/fleet-core/pkg/registry"
	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/bridge"
	"github.com/tvfleet/fleet-core/pkg/service/monitor"
	"github.com/tvfleet/fleet-core/pkg/service/negotiator"
	"github.com/tvfleet/fleet-core/pkg/service/recovery"
)

const testAddress = "192.168.1.80"

var _ = Describe("Server", func() {
	var (
		mockClient  *adb.MockClient
		reg         *registry.Registry
		broadcaster *events.Broadcaster
		setupMgr    *setup.SetupManager
		mon         *monitor.Monitor
		router      *gin.Engine

		daemonAlive bool
	)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var reader *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		} else {
			reader = bytes.NewReader(nil)
		}

		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, into any) {
		Expect(json.Unmarshal(rec.Body.Bytes(), into)).To(Succeed())
	}

	makeReady := func(address string) {
		mockClient.SetReachable(address, true, 8.0)
		mockClient.SetConnectOutcome(address, adb.ConnectOutcomeConnected, nil)
		mockClient.SetAuthStates(address, adb.AuthStateAuthorized)
		mockClient.SetProcessRunning(address, true)
	}

	// provision runs a full setup session for the address and waits for it.
	provision := func(address, tvID string) {
		rec := do(http.MethodPost, "/api/v1/setup",
			gin.H{"address": address, "tvId": tvID})
		Expect(rec.Code).To(Equal(http.StatusAccepted))

		Eventually(func() string {
			var snap setup.Snapshot
			statusRec := do(http.MethodGet, "/api/v1/setup/"+address+"/status", nil)
			if statusRec.Code != http.StatusOK {
				return ""
			}
			decode(statusRec, &snap)
			return snap.State
		}, "3s", "10ms").Should(Equal(setup.OperationalStateComplete))
	}

	// admit provisions and registers a device, returning its ID.
	admit := func(name, address string) string {
		makeReady(address)
		provision(address, name)

		rec := do(http.MethodPost, "/api/v1/devices", gin.H{"name": name, "address": address})
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var device models.Device
		decode(rec, &device)
		return device.ID
	}

	BeforeEach(func() {
		mockClient = adb.NewMockClient()
		reg = registry.NewRegistry()
		broadcaster = events.NewBroadcaster(time.Millisecond)
		daemonAlive = true

		cfg := config.Default()
		cfg.Monitor.TickInterval = 20 * time.Millisecond
		// Background loops would otherwise fire recoveries for devices that
		// never heartbeat, racing the assertions below.
		cfg.Monitor.AutoRecoveryEnabled = false

		supervisor := bridge.NewSupervisor(mockClient, "/usr/bin/adb",
			bridge.WithSettleInterval(time.Millisecond),
			bridge.WithProcessProbe(func(ctx context.Context, name string) (bool, error) {
				return daemonAlive, nil
			}),
		)
		neg := negotiator.New(mockClient, broadcaster,
			negotiator.WithWaitTimeout(300*time.Millisecond),
			negotiator.WithPollInterval(20*time.Millisecond),
		)
		setupMgr = setup.NewSetupManager(mockClient, neg, supervisor, broadcaster, cfg.Helper, cfg.Setup)
		rec := recovery.NewController(reg, mockClient, broadcaster, cfg.Helper, cfg.Monitor)
		mon = monitor.NewMonitor(reg, mockClient, broadcaster, cfg.Monitor, cfg.Helper.Package,
			monitor.WithRecoverer(rec))

		server := api.NewServer(cfg, reg, setupMgr, supervisor, mon, rec, broadcaster, mockClient)
		router = server.Router()
	})

	AfterEach(func() {
		mon.Shutdown()
		setupMgr.Shutdown()
	})

	Describe("POST /api/v1/setup", func() {
		It("should start a session and report its progress", func() {
			makeReady(testAddress)
			provision(testAddress, "tv-lobby-1")
		})

		It("should reject a request without an address", func() {
			rec := do(http.MethodPost, "/api/v1/setup", gin.H{"tvId": "tv-1"})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 503 while the bridge daemon is down", func() {
			daemonAlive = false

			rec := do(http.MethodPost, "/api/v1/setup",
				gin.H{"address": testAddress, "tvId": "tv-1"})

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(rec.Body.String()).To(ContainSubstring("bridge_not_ready"))

			var body struct {
				Error struct {
					Code         string   `json:"code"`
					Instructions []string `json:"instructions"`
				} `json:"error"`
			}
			decode(rec, &body)
			Expect(body.Error.Instructions).NotTo(BeEmpty())
		})

		It("should return 409 for a second session on the same address", func() {
			mockClient.SetReachable(testAddress, true, 8.0)
			mockClient.SetConnectOutcome(testAddress, adb.ConnectOutcomeConnecting, nil)
			mockClient.SetAuthStates(testAddress, adb.AuthStateUnauthorized)

			first := do(http.MethodPost, "/api/v1/setup",
				gin.H{"address": testAddress, "tvId": "tv-1"})
			Expect(first.Code).To(Equal(http.StatusAccepted))

			// Immediately, before the first session has made any progress.
			second := do(http.MethodPost, "/api/v1/setup",
				gin.H{"address": testAddress, "tvId": "tv-1"})
			Expect(second.Code).To(Equal(http.StatusConflict))
		})

		It("should return 404 for the status of an unknown session", func() {
			rec := do(http.MethodGet, "/api/v1/setup/10.0.0.9/status", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /api/v1/devices", func() {
		It("should gate admission on a completed setup session", func() {
			rec := do(http.MethodPost, "/api/v1/devices",
				gin.H{"name": "tv-lobby-1", "address": testAddress})

			Expect(rec.Code).To(Equal(http.StatusPreconditionFailed))
			Expect(rec.Body.String()).To(ContainSubstring("setup_required"))
		})

		It("should admit a provisioned device and start monitoring it", func() {
			id := admit("tv-lobby-1", testAddress)

			Eventually(func() models.MonitoringStatus {
				device, err := reg.Get(id)
				if err != nil {
					return ""
				}
				return device.MonitoringStatus
			}, "2s", "20ms").ShouldNot(Equal(models.MonitoringStatusUnknown))
		})

		It("should consume eligibility on admission", func() {
			admit("tv-lobby-1", testAddress)

			rec := do(http.MethodPost, "/api/v1/devices",
				gin.H{"name": "tv-lobby-2", "address": testAddress})
			Expect(rec.Code).To(Equal(http.StatusPreconditionFailed))
		})

		It("should reject a duplicate address", func() {
			admit("tv-lobby-1", testAddress)

			// A fresh session makes the address eligible again, but the
			// registry still holds the original device.
			provision(testAddress, "tv-lobby-2")
			rec := do(http.MethodPost, "/api/v1/devices",
				gin.H{"name": "tv-lobby-2", "address": testAddress})

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring("address_in_use"))
		})

		It("should reject a duplicate name", func() {
			admit("tv-lobby-1", testAddress)

			other := "192.168.1.81"
			makeReady(other)
			provision(other, "tv-lobby-1")
			rec := do(http.MethodPost, "/api/v1/devices",
				gin.H{"name": "tv-lobby-1", "address": other})

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring("name_in_use"))
		})
	})

	Describe("device endpoints", func() {
		It("should list and fetch devices", func() {
			id := admit("tv-lobby-1", testAddress)

			listRec := do(http.MethodGet, "/api/v1/devices", nil)
			Expect(listRec.Code).To(Equal(http.StatusOK))
			Expect(listRec.Body.String()).To(ContainSubstring(id))

			getRec := do(http.MethodGet, "/api/v1/devices/"+id, nil)
			Expect(getRec.Code).To(Equal(http.StatusOK))

			var device models.Device
			decode(getRec, &device)
			Expect(device.Name).To(Equal("tv-lobby-1"))
			Expect(device.Address).To(Equal(testAddress))
		})

		It("should delete a device and free its address", func() {
			id := admit("tv-lobby-1", testAddress)

			Expect(do(http.MethodDelete, "/api/v1/devices/"+id, nil).Code).
				To(Equal(http.StatusOK))
			Expect(do(http.MethodGet, "/api/v1/devices/"+id, nil).Code).
				To(Equal(http.StatusNotFound))
		})

		It("should toggle monitoring", func() {
			id := admit("tv-lobby-1", testAddress)

			rec := do(http.MethodPost, fmt.Sprintf("/api/v1/devices/%s/monitoring", id),
				gin.H{"enabled": false})
			Expect(rec.Code).To(Equal(http.StatusOK))

			device, err := reg.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(device.MonitoringEnabled).To(BeFalse())
		})

		It("should trigger manual recovery", func() {
			id := admit("tv-lobby-1", testAddress)

			rec := do(http.MethodPost, fmt.Sprintf("/api/v1/devices/%s/recovery", id), nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			device, _ := reg.Get(id)
			Expect(device.AutoRecoveryAttempts).To(BeZero())
		})

		It("should reset the recovery budget", func() {
			id := admit("tv-lobby-1", testAddress)
			Expect(reg.Update(id, func(d *models.Device) { d.AutoRecoveryAttempts = 3 })).To(Succeed())

			rec := do(http.MethodPost, fmt.Sprintf("/api/v1/devices/%s/recovery/reset", id), nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			device, _ := reg.Get(id)
			Expect(device.AutoRecoveryAttempts).To(BeZero())
		})

		It("should report detailed checks for a healthy device", func() {
			id := admit("tv-lobby-1", testAddress)
			Expect(mon.RecordHeartbeat(id)).To(Succeed())

			rec := do(http.MethodGet, fmt.Sprintf("/api/v1/devices/%s/checks", id), nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var report models.DetailedStatus
			decode(rec, &report)
			Expect(report.Summary).To(Equal(string(models.CheckOK)))
			Expect(report.Checks).To(HaveLen(4))
			Expect(report.Checks[0].Name).To(Equal("network_ping"))
			Expect(report.Checks[0].Details).To(HaveKeyWithValue("latencyMs", 8.0))
		})
	})

	Describe("infrastructure endpoints", func() {
		It("should report bridge status", func() {
			rec := do(http.MethodGet, "/api/v1/bridge/status", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var status models.BridgeStatus
			decode(rec, &status)
			Expect(status.Ready).To(BeTrue())
		})

		It("should restart the bridge", func() {
			rec := do(http.MethodPost, "/api/v1/bridge/restart", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(mockClient.StartCalls).To(Equal(1))
		})

		It("should report the debug-bridge state of an address", func() {
			mockClient.SetAuthStates(testAddress, adb.AuthStateAuthorized)

			rec := do(http.MethodGet, "/api/v1/adb/status?address="+testAddress, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var status models.AdbStatus
			decode(rec, &status)
			Expect(status.Authorized).To(BeTrue())
		})

		It("should require the address query parameter", func() {
			rec := do(http.MethodGet, "/api/v1/adb/status", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should accept heartbeats", func() {
			id := admit("tv-lobby-1", testAddress)

			rec := do(http.MethodPost, "/api/v1/heartbeat", gin.H{"deviceId": id})
			Expect(rec.Code).To(Equal(http.StatusNoContent))

			device, _ := reg.Get(id)
			Expect(device.LastHeartbeatTime).NotTo(BeNil())
		})

		It("should reject heartbeats for unknown devices", func() {
			rec := do(http.MethodPost, "/api/v1/heartbeat", gin.H{"deviceId": "no-such-device"})
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should serve aggregate stats", func() {
			admit("tv-lobby-1", testAddress)

			rec := do(http.MethodGet, "/api/v1/stats", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var stats models.MonitoringStats
			decode(rec, &stats)
			Expect(stats.Total).To(Equal(1))
		})

		It("should expose prometheus metrics", func() {
			rec := do(http.MethodGet, "/metrics", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("tvfleet_core"))
		})
	})

	Describe("GET /api/v1/events", func() {
		It("should stream published events as SSE", func() {
			streamCtx, stop := context.WithCancel(context.Background())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(streamCtx)
			rec := httptest.NewRecorder()

			done := make(chan struct{})
			go func() {
				defer close(done)
				router.ServeHTTP(rec, req)
			}()

			// Give the handler time to subscribe before publishing, then
			// time to write before closing the stream. The recorder is only
			// read after the handler has returned.
			time.Sleep(50 * time.Millisecond)
			broadcaster.PublishSetupStatus(models.SetupStatusEvent{
				Address:   testAddress,
				SetupType: "provision",
				Type:      models.SetupStatusConnecting,
				Message:   "Connecting",
			})
			time.Sleep(100 * time.Millisecond)

			stop()
			Eventually(done, "1s").Should(BeClosed())

			body := rec.Body.String()
			Expect(body).To(ContainSubstring("event: setup-status"))
			Expect(strings.Contains(body, "data: ")).To(BeTrue())
			Expect(body).To(ContainSubstring(`"address":"` + testAddress + `"`))
		})
	})
})
