package producer_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/apierrors"
	"github.com/carv-ics-forth/cloudscheduler/pkg/config"
	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
	"github.com/carv-ics-forth/cloudscheduler/pkg/lifecycle"
	"github.com/carv-ics-forth/cloudscheduler/pkg/producer"
	"github.com/carv-ics-forth/cloudscheduler/pkg/ready"
	"github.com/carv-ics-forth/cloudscheduler/pkg/running"
	"github.com/carv-ics-forth/cloudscheduler/pkg/transient"
)

var _ = Describe("Producer Manager", func() {
	var (
		cfg      *config.InMemory
		rdy      ready.Service
		run      running.Service
		fakeDrv  *driver.FakeDriver
		ts       *transient.Scheduler
		mgr      *producer.Manager
	)

	BeforeEach(func() {
		cfg = config.NewInMemory()
		rdy = ready.NewInMemory()
		run = running.NewInMemory()
		fakeDrv = driver.NewFakeDriver()
		ts = transient.New(rdy, nil)
		lc := lifecycle.New(run, fakeDrv, nil)
		mgr = producer.New(cfg, rdy, run, lc, ts, nil)
	})

	Describe("Startup", func() {
		It("registers transient jobs and enqueues daemon jobs exactly once", func() {
			_ = cfg.Add(v1.JobConfig{
				JobName: "transient_test_job", ExecutionType: v1.Transient,
				Cron: "*/5 * * * *", ShardingTotalCount: 2,
			})
			_ = cfg.Add(v1.JobConfig{
				JobName: "daemon_test_job", ExecutionType: v1.Daemon,
				ShardingTotalCount: 2,
			})

			mgr.Startup()
			mgr.Startup() // idempotent: repeated startups must not double-register

			Expect(rdy.Peek()).To(ConsistOf("daemon_test_job"))
		})
	})

	Describe("Register", func() {
		It("fails with AlreadyExists when the job is already present", func() {
			existing := v1.JobConfig{JobName: "transient_test_job", ExecutionType: v1.Transient, Cron: "@hourly"}
			Expect(cfg.Add(existing)).To(Succeed())

			err := mgr.Register(existing)

			Expect(err).To(MatchError(apierrors.NewAlreadyExists("transient_test_job")))
			Expect(cfg.List()).To(HaveLen(1))
		})
	})

	Describe("Update", func() {
		It("tears down all in-flight work for the job", func() {
			original := v1.JobConfig{JobName: "transient_test_job", ExecutionType: v1.Transient, Cron: "@hourly", ShardingTotalCount: 2}
			Expect(mgr.Register(original)).To(Succeed())

			run.Add(v1.TaskMetaInfo{JobName: "transient_test_job", ShardingItem: 0})
			run.Add(v1.TaskMetaInfo{JobName: "transient_test_job", ShardingItem: 1})
			rdy.Add("transient_test_job")

			updated := original
			updated.ShardingTotalCount = 3

			Expect(mgr.Update(updated)).To(Succeed())

			Expect(run.ForJob("transient_test_job")).To(BeEmpty())
			Expect(rdy.Contains("transient_test_job")).To(BeFalse())
			Expect(fakeDrv.Killed).To(HaveLen(2))

			got, ok := cfg.Load("transient_test_job")
			Expect(ok).To(BeTrue())
			Expect(got.ShardingTotalCount).To(Equal(3))
		})

		It("fails with NotFound when the job is absent", func() {
			err := mgr.Update(v1.JobConfig{JobName: "ghost"})
			Expect(err).To(MatchError(apierrors.NewNotFound("ghost")))
		})
	})

	Describe("Deregister", func() {
		It("is a no-op when the job is absent", func() {
			Expect(mgr.Deregister("never-registered")).To(Succeed())
			Expect(fakeDrv.Killed).To(BeEmpty())
			Expect(cfg.List()).To(BeEmpty())
		})

		It("kills, clears queues, then removes the config entry last", func() {
			Expect(mgr.Register(v1.JobConfig{JobName: "daemon_test_job", ExecutionType: v1.Daemon, ShardingTotalCount: 1})).To(Succeed())

			run.Add(v1.TaskMetaInfo{JobName: "daemon_test_job", ShardingItem: 0})

			Expect(mgr.Deregister("daemon_test_job")).To(Succeed())

			Expect(fakeDrv.Killed).To(HaveLen(1))
			Expect(run.ForJob("daemon_test_job")).To(BeEmpty())
			Expect(rdy.Contains("daemon_test_job")).To(BeFalse())

			_, ok := cfg.Load("daemon_test_job")
			Expect(ok).To(BeFalse())
		})
	})
})
