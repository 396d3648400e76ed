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

package bridge_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tvfleet/fleet-core/pkg/service/adb"
	"github.com/tvfleet/fleet-core/pkg/service/bridge"
)

var _ = Describe("Supervisor", func() {
	var (
		mockClient *adb.MockClient
		supervisor *bridge.Supervisor
		ctx        context.Context
		cancel     context.CancelFunc

		daemonAlive bool
	)

	aliveProbe := func(ctx context.Context, name string) (bool, error) {
		return daemonAlive, nil
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		mockClient = adb.NewMockClient()
		daemonAlive = true
		supervisor = bridge.NewSupervisor(mockClient, "/usr/bin/adb",
			bridge.WithSettleInterval(time.Millisecond),
			bridge.WithProcessProbe(aliveProbe),
		)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Status", func() {
		It("should report ready when all probes pass", func() {
			status := supervisor.Status(ctx)

			Expect(status.ExecutableWorking).To(BeTrue())
			Expect(status.ProcessRunning).To(BeTrue())
			Expect(status.Initialized).To(BeTrue())
			Expect(status.Ready).To(BeTrue())
		})

		It("should not report ready when the executable probe fails", func() {
			mockClient.SetVersion("", errors.New("exec format error"))

			status := supervisor.Status(ctx)

			Expect(status.ExecutableWorking).To(BeFalse())
			Expect(status.Ready).To(BeFalse())
		})

		It("should not report ready when the daemon process is gone", func() {
			daemonAlive = false

			status := supervisor.Status(ctx)

			Expect(status.ProcessRunning).To(BeFalse())
			Expect(status.Ready).To(BeFalse())
		})
	})

	Describe("EnsureReady", func() {
		It("should succeed when the daemon is ready", func() {
			Expect(supervisor.EnsureReady(ctx)).To(Succeed())
		})

		It("should return ErrNotReady when a probe fails", func() {
			daemonAlive = false

			err := supervisor.EnsureReady(ctx)

			Expect(err).To(MatchError(bridge.ErrNotReady))
		})
	})

	Describe("Restart", func() {
		It("should kill and restart the daemon, then verify readiness", func() {
			Expect(supervisor.Restart(ctx)).To(Succeed())

			Expect(mockClient.KillCalls).To(Equal(1))
			Expect(mockClient.StartCalls).To(Equal(1))
		})

		It("should fail when the daemon does not come back ready", func() {
			mockClient.SetVersion("", errors.New("exec format error"))

			err := supervisor.Restart(ctx)

			Expect(err).To(MatchError(bridge.ErrRestartFailed))
		})

		It("should fail when start-server fails", func() {
			mockClient.SetServerError(errors.New("cannot bind tcp:5037"))

			err := supervisor.Restart(ctx)

			Expect(err).To(MatchError(bridge.ErrRestartFailed))
		})

		It("should reject an overlapping restart", func() {
			// Stretch the settle interval so the first restart is still
			// in flight when the second one arrives.
			slow := bridge.NewSupervisor(mockClient, "/usr/bin/adb",
				bridge.WithSettleInterval(200*time.Millisecond),
				bridge.WithProcessProbe(aliveProbe),
			)

			var wg sync.WaitGroup
			wg.Add(1)
			firstErr := make(chan error, 1)
			go func() {
				defer wg.Done()
				firstErr <- slow.Restart(ctx)
			}()

			// Wait until the first restart holds the lock before overlapping.
			Eventually(func() int { return mockClient.StartCalls }, "100ms", "5ms").Should(Equal(1))

			Expect(slow.Restart(ctx)).To(MatchError(bridge.ErrRestartInProgress))

			wg.Wait()
			Expect(<-firstErr).To(Succeed())

			// The rejected restart must not have touched the daemon again.
			Expect(mockClient.StartCalls).To(Equal(1))
		})
	})
})
