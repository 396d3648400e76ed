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

package fsm_test

import (
	"context"
	"errors"
	"time"

	looplabfsm "github.com/looplab/fsm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	internalfsm "github.com/tvfleet/fleet-core/internal/fsm"
	"github.com/tvfleet/fleet-core/pkg/backoff"
)

var _ = Describe("BaseFSMInstance", func() {
	var (
		instance *internalfsm.BaseFSMInstance
		ctx      context.Context
		cancel   context.CancelFunc

		errFlaky = errors.New("flaky dependency")
		errFatal = errors.New("fatal dependency")
	)

	newInstance := func(cfg internalfsm.BaseFSMInstanceConfig) *internalfsm.BaseFSMInstance {
		return internalfsm.NewBaseFSMInstance(cfg, zap.NewNop().Sugar())
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

		instance = newInstance(internalfsm.BaseFSMInstanceConfig{
			ID:           "test-instance",
			InitialState: "idle",
			Transitions: []looplabfsm.EventDesc{
				{Name: "begin", Src: []string{"idle"}, Dst: "working"},
				{Name: "finish", Src: []string{"working"}, Dst: "done"},
			},
		})
	})

	AfterEach(func() {
		cancel()
	})

	Describe("SendEvent", func() {
		It("should walk the configured transitions", func() {
			Expect(instance.GetCurrentFSMState()).To(Equal("idle"))

			Expect(instance.SendEvent(ctx, "begin")).To(Succeed())
			Expect(instance.GetCurrentFSMState()).To(Equal("working"))

			Expect(instance.SendEvent(ctx, "finish")).To(Succeed())
			Expect(instance.Is("done")).To(BeTrue())
		})

		It("should reject an event that is invalid in the current state", func() {
			Expect(instance.SendEvent(ctx, "finish")).NotTo(Succeed())
			Expect(instance.GetCurrentFSMState()).To(Equal("idle"))
		})

		It("should refuse to start a transition with a cancelled context", func() {
			cancelledCtx, cancelNow := context.WithCancel(ctx)
			cancelNow()

			Expect(instance.SendEvent(cancelledCtx, "begin")).NotTo(Succeed())
			Expect(instance.GetCurrentFSMState()).To(Equal("idle"))
		})

		It("should refuse to start a transition when the deadline is too close", func() {
			tightCtx, tightCancel := context.WithTimeout(ctx, time.Nanosecond)
			defer tightCancel()

			Expect(instance.SendEvent(tightCtx, "begin")).NotTo(Succeed())
			Expect(instance.GetCurrentFSMState()).To(Equal("idle"))
		})

		It("should invoke the registered enter-state callback", func() {
			entered := ""
			instance.AddCallback("enter_working", func(ctx context.Context, e *looplabfsm.Event) {
				entered = e.Dst
			})

			Expect(instance.SendEvent(ctx, "begin")).To(Succeed())
			Expect(entered).To(Equal("working"))
		})
	})

	Describe("SetError", func() {
		It("should not escalate a first transient error", func() {
			Expect(instance.SetError(errFlaky, 1)).To(BeFalse())
			Expect(instance.GetLastError()).To(MatchError(errFlaky))
			Expect(instance.IsPermanentlyFailed()).To(BeFalse())
		})

		It("should suspend operations while backing off", func() {
			instance.SetError(errFlaky, 1)

			Expect(instance.ShouldSkipOperationBecauseOfError(1)).To(BeTrue())
		})

		It("should escalate an error marked permanent for the current state", func() {
			withPermanent := newInstance(internalfsm.BaseFSMInstanceConfig{
				ID:           "perm-instance",
				InitialState: "idle",
				Transitions: []looplabfsm.EventDesc{
					{Name: "begin", Src: []string{"idle"}, Dst: "working"},
				},
				PermanentErrorsInStates: map[string][]error{
					"idle": {errFatal},
				},
			})

			Expect(withPermanent.SetError(errFatal, 1)).To(BeTrue())
			Expect(withPermanent.IsPermanentlyFailed()).To(BeTrue())
		})

		It("should swallow errors listed as ignored for the current state", func() {
			withIgnored := newInstance(internalfsm.BaseFSMInstanceConfig{
				ID:           "ignore-instance",
				InitialState: "idle",
				Transitions: []looplabfsm.EventDesc{
					{Name: "begin", Src: []string{"idle"}, Dst: "working"},
				},
				IgnoreErrorsInStates: map[string][]error{
					"idle": {errFlaky},
				},
			})

			Expect(withIgnored.SetError(errFlaky, 1)).To(BeFalse())
			Expect(withIgnored.ShouldSkipOperationBecauseOfError(2)).To(BeFalse())
		})

		It("should clear the error state on ClearError", func() {
			instance.SetError(errFlaky, 1)
			instance.ClearError()

			Expect(instance.GetLastError()).NotTo(HaveOccurred())
			Expect(instance.ShouldSkipOperationBecauseOfError(2)).To(BeFalse())
		})

		It("should expose a structured backoff error while suspended", func() {
			instance.SetError(errFlaky, 1)

			backoffErr := instance.GetBackoffError(1)
			Expect(backoff.IsTemporaryBackoffError(backoffErr)).To(BeTrue())
		})
	})
})
