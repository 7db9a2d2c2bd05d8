package vm

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FaultChannel", func() {
	var (
		c   *FaultChannel
		ctx context.Context
	)

	BeforeEach(func() {
		c = NewFaultChannel()
		ctx = context.Background()
	})

	It("should deliver a page fault request", func() {
		completion, err := c.PostFault(7)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.HasOutstandingFault()).To(BeTrue())

		var req Request
		Eventually(c.Requests()).Should(Receive(&req))
		Expect(req.Kind).To(Equal(PageFaultReq))
		Expect(req.Page).To(Equal(7))
		Expect(req.ID).NotTo(BeEmpty())
		Expect(completion.Request()).To(Equal(req))
	})

	It("should unblock the waiter on release", func() {
		completion, _ := c.PostFault(1)

		go func() {
			defer GinkgoRecover()
			<-c.Requests()
			Expect(c.Release(nil)).To(Succeed())
		}()

		Expect(completion.Wait(ctx)).To(Succeed())
		Expect(c.HasOutstandingFault()).To(BeFalse())
	})

	It("should hand the release error to the waiter", func() {
		completion, _ := c.PostFault(1)
		failure := errors.New("disk on fire")

		Expect(c.Release(failure)).To(Succeed())

		Expect(completion.Wait(ctx)).To(MatchError(failure))
	})

	It("should reject a second outstanding fault", func() {
		_, _ = c.PostFault(1)

		_, err := c.PostFault(2)

		Expect(err).To(MatchError(ErrFaultOutstanding))
	})

	It("should accept a new fault after the release", func() {
		_, _ = c.PostFault(1)
		<-c.Requests()
		Expect(c.Release(nil)).To(Succeed())

		_, err := c.PostFault(2)

		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject a release without a waiter", func() {
		Expect(c.Release(nil)).To(MatchError(ErrNoWaiter))
	})

	It("should let waiters observe termination", func() {
		completion, _ := c.PostFault(1)

		c.Terminate()

		Expect(completion.Wait(ctx)).To(MatchError(ErrTerminated))
		Expect(c.IsTerminated()).To(BeTrue())
	})

	It("should prefer a release that happened before termination", func() {
		completion, _ := c.PostFault(1)
		Expect(c.Release(nil)).To(Succeed())

		c.Terminate()

		Expect(completion.Wait(ctx)).To(Succeed())
	})

	It("should refuse requests after termination", func() {
		c.Terminate()
		c.Terminate()

		_, err := c.PostFault(1)
		Expect(err).To(MatchError(ErrTerminated))
		Expect(c.PostDump()).To(MatchError(ErrTerminated))
		Expect(c.PostTerminate()).To(MatchError(ErrTerminated))
	})

	It("should stop waiting when the context expires", func() {
		completion, _ := c.PostFault(1)
		ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		err := completion.Wait(ctx)

		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(c.HasOutstandingFault()).To(BeTrue())
	})

	It("should deliver dump and terminate requests", func() {
		Expect(c.PostDump()).To(Succeed())
		Expect(c.PostTerminate()).To(Succeed())

		Expect((<-c.Requests()).Kind).To(Equal(DumpPageTableReq))
		Expect((<-c.Requests()).Kind).To(Equal(TerminateReq))
	})
})
