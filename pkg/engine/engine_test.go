package engine_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/assign"
	"github.com/carv-ics-forth/cloudscheduler/pkg/config"
	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
	"github.com/carv-ics-forth/cloudscheduler/pkg/engine"
	"github.com/carv-ics-forth/cloudscheduler/pkg/facade"
	"github.com/carv-ics-forth/cloudscheduler/pkg/failover"
	"github.com/carv-ics-forth/cloudscheduler/pkg/ready"
	"github.com/carv-ics-forth/cloudscheduler/pkg/running"
)

func newEngine(cfg *config.InMemory, rdy ready.Service, run running.Service, fo failover.Service, d driver.ResourceDriver) *engine.Engine {
	f := facade.New(cfg, rdy, run, fo, nil, nil)

	return engine.New(f, assign.NewGreedyPacker(), d, nil, nil)
}

var _ = Describe("Scheduler Engine", func() {
	var (
		cfg     *config.InMemory
		rdy     ready.Service
		run     running.Service
		fo      failover.Service
		fakeDrv *driver.FakeDriver
		eng     *engine.Engine
	)

	BeforeEach(func() {
		cfg = config.NewInMemory()
		rdy = ready.NewInMemory()
		run = running.NewInMemory()
		fo = failover.NewInMemory()
		fakeDrv = driver.NewFakeDriver()
		eng = newEngine(cfg, rdy, run, fo, fakeDrv)
	})

	ampleLease := func(slaveID string) driver.Lease {
		return driver.Lease{
			OfferID: "offer-" + slaveID, Hostname: "host-" + slaveID, SlaveID: slaveID,
			Resources: driver.Resource{CPUs: 100, MemMB: 100000},
		}
	}

	It("refuses a partial launch (sharding integrity)", func() {
		_ = cfg.Add(v1.JobConfig{
			JobName: "partial_job", ExecutionType: v1.Daemon, ShardingTotalCount: 3,
			CPUCount: 1, MemoryMB: 100, BootstrapScript: "run.sh",
		})
		rdy.Add("partial_job")

		tightLease := driver.Lease{
			OfferID: "offer-1", Hostname: "host-1", SlaveID: "slave-1",
			Resources: driver.Resource{CPUs: 2, MemMB: 100000}, // fits only 2 of 3 shards
		}

		eng.ResourceOffers([]driver.Lease{tightLease})

		Expect(fakeDrv.Launched).To(BeEmpty())
		Expect(run.RunningCount("partial_job")).To(Equal(0))
	})

	It("launches a full batch when the lease has room for every shard", func() {
		_ = cfg.Add(v1.JobConfig{
			JobName: "full_job", ExecutionType: v1.Daemon, ShardingTotalCount: 2,
			CPUCount: 1, MemoryMB: 100, AppURL: "http://example.com/app.jar", BootstrapScript: "run.sh",
		})
		rdy.Add("full_job")

		eng.ResourceOffers([]driver.Lease{ampleLease("slave-1")})

		Expect(fakeDrv.Launched).To(HaveLen(2))
		Expect(run.RunningCount("full_job")).To(Equal(2))
		Expect(rdy.Contains("full_job")).To(BeFalse())
	})

	It("never re-launches a shard already in the running set", func() {
		_ = cfg.Add(v1.JobConfig{
			JobName: "running_job", ExecutionType: v1.Daemon, ShardingTotalCount: 1,
			CPUCount: 1, MemoryMB: 100, BootstrapScript: "run.sh",
		})

		run.Add(v1.TaskMetaInfo{JobName: "running_job", ShardingItem: 0})
		rdy.Add("running_job") // simulate a race: job re-enters ready while still running

		eng.ResourceOffers([]driver.Lease{ampleLease("slave-1")})

		Expect(fakeDrv.Launched).To(BeEmpty())
		Expect(run.RunningCount("running_job")).To(Equal(1))
	})

	It("launches failover shards without requiring the full shard count", func() {
		_ = cfg.Add(v1.JobConfig{
			JobName: "fo_job", ExecutionType: v1.Daemon, ShardingTotalCount: 3,
			CPUCount: 1, MemoryMB: 100, BootstrapScript: "run.sh",
		})
		fo.Record(v1.TaskMetaInfo{JobName: "fo_job", ShardingItem: 1})

		eng.ResourceOffers([]driver.Lease{ampleLease("slave-1")})

		Expect(fakeDrv.Launched).To(HaveLen(1))
		Expect(run.RunningCount("fo_job")).To(Equal(1))
		Expect(fo.ForJob("fo_job")).To(BeEmpty())
	})

	It("skips a queued job whose config was removed before the offer cycle", func() {
		_ = cfg.Add(v1.JobConfig{
			JobName: "vanishing_job", ExecutionType: v1.Daemon, ShardingTotalCount: 1,
			CPUCount: 1, MemoryMB: 100, BootstrapScript: "run.sh",
		})
		rdy.Add("vanishing_job")
		cfg.Remove("vanishing_job") // race with a concurrent deregister

		eng.ResourceOffers([]driver.Lease{ampleLease("slave-1")})

		Expect(fakeDrv.Launched).To(BeEmpty())
	})

	Describe("StatusUpdate", func() {
		It("records a failover entry on TASK_FAILED and keeps the shard out of the running set", func() {
			_ = cfg.Add(v1.JobConfig{JobName: "fail_job", ExecutionType: v1.Daemon, ShardingTotalCount: 1})
			run.Add(v1.TaskMetaInfo{JobName: "fail_job", ShardingItem: 1})

			taskID := "fail_job@-@1@-@READY@-@slave-1@-@abc123"
			eng.StatusUpdate(taskID, driver.TaskFailed, "")

			Expect(run.IsRunning(v1.TaskMetaInfo{JobName: "fail_job", ShardingItem: 1})).To(BeFalse())
			Expect(fo.ForJob("fail_job")).To(ConsistOf(v1.TaskMetaInfo{JobName: "fail_job", ShardingItem: 1}))
			Expect(rdy.Contains("fail_job")).To(BeTrue())
		})

		It("re-queues a DAEMON job on TASK_KILLED", func() {
			_ = cfg.Add(v1.JobConfig{JobName: "daemon_job", ExecutionType: v1.Daemon, ShardingTotalCount: 1})
			run.Add(v1.TaskMetaInfo{JobName: "daemon_job", ShardingItem: 0})

			taskID := "daemon_job@-@0@-@DAEMON@-@slave-1@-@def456"
			eng.StatusUpdate(taskID, driver.TaskKilled, "")

			Expect(run.IsRunning(v1.TaskMetaInfo{JobName: "daemon_job", ShardingItem: 0})).To(BeFalse())
			Expect(rdy.Contains("daemon_job")).To(BeTrue())
		})

		It("does not re-queue a TRANSIENT job on TASK_KILLED", func() {
			_ = cfg.Add(v1.JobConfig{JobName: "transient_job", ExecutionType: v1.Transient, Cron: "@hourly", ShardingTotalCount: 1})
			run.Add(v1.TaskMetaInfo{JobName: "transient_job", ShardingItem: 0})

			taskID := "transient_job@-@0@-@READY@-@slave-1@-@fff000"
			eng.StatusUpdate(taskID, driver.TaskKilled, "")

			Expect(run.IsRunning(v1.TaskMetaInfo{JobName: "transient_job", ShardingItem: 0})).To(BeFalse())
			Expect(rdy.Contains("transient_job")).To(BeFalse())
		})

		It("removes a finished shard from the running set with no recovery", func() {
			_ = cfg.Add(v1.JobConfig{JobName: "finished_job", ExecutionType: v1.Daemon, ShardingTotalCount: 1})
			run.Add(v1.TaskMetaInfo{JobName: "finished_job", ShardingItem: 0})

			taskID := "finished_job@-@0@-@DAEMON@-@slave-1@-@999999"
			eng.StatusUpdate(taskID, driver.TaskFinished, "")

			Expect(run.IsRunning(v1.TaskMetaInfo{JobName: "finished_job", ShardingItem: 0})).To(BeFalse())
			Expect(rdy.Contains("finished_job")).To(BeFalse())
			Expect(fo.ForJob("finished_job")).To(BeEmpty())
		})
	})
})
