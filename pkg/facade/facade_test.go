package facade_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/config"
	"github.com/carv-ics-forth/cloudscheduler/pkg/facade"
	"github.com/carv-ics-forth/cloudscheduler/pkg/failover"
	"github.com/carv-ics-forth/cloudscheduler/pkg/ready"
	"github.com/carv-ics-forth/cloudscheduler/pkg/running"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

var _ = Describe("Facade", func() {
	var (
		cfg *config.InMemory
		rdy ready.Service
		run running.Service
		fo  failover.Service
		f   *facade.Facade
	)

	BeforeEach(func() {
		cfg = config.NewInMemory()
		rdy = ready.NewInMemory()
		run = running.NewInMemory()
		fo = failover.NewInMemory()
		f = facade.New(cfg, rdy, run, fo, nil, nil)
	})

	Describe("GetEligibleJobContext", func() {
		It("prefers FAILOVER over READY for a job present in both queues", func() {
			_ = cfg.Add(v1.JobConfig{JobName: "both_job", ExecutionType: v1.Daemon, ShardingTotalCount: 3})
			rdy.Add("both_job")
			fo.Record(v1.TaskMetaInfo{JobName: "both_job", ShardingItem: 2})

			contexts := f.GetEligibleJobContext()

			Expect(contexts).To(HaveLen(1))
			Expect(contexts[0].ExecutionType).To(Equal(v1.Failover))
			Expect(contexts[0].AssignedShardItems).To(Equal([]int{2}))
		})

		It("expands a READY job into every shard index", func() {
			_ = cfg.Add(v1.JobConfig{JobName: "ready_job", ExecutionType: v1.Daemon, ShardingTotalCount: 3})
			rdy.Add("ready_job")

			contexts := f.GetEligibleJobContext()

			Expect(contexts).To(HaveLen(1))
			Expect(contexts[0].ExecutionType).To(Equal(v1.Ready))
			Expect(contexts[0].AssignedShardItems).To(Equal([]int{0, 1, 2}))
		})

		It("skips a queued job whose config is absent", func() {
			rdy.Add("ghost_job")

			Expect(f.GetEligibleJobContext()).To(BeEmpty())
		})
	})

	Describe("RemoveLaunchTasksFromQueue", func() {
		It("removes FAILOVER entries from the failover queue and READY/DAEMON entries from ready", func() {
			fo.Record(v1.TaskMetaInfo{JobName: "fo_job", ShardingItem: 0})
			rdy.Add("ready_job")

			f.RemoveLaunchTasksFromQueue([]taskcontext.TaskContext{
				taskcontext.New("fo_job", 0, v1.Failover, "slave-1"),
				taskcontext.New("ready_job", 0, v1.Ready, "slave-1"),
			})

			Expect(fo.ForJob("fo_job")).To(BeEmpty())
			Expect(rdy.Contains("ready_job")).To(BeFalse())
		})
	})

	Describe("AddDaemonJobToReadyQueue", func() {
		It("enqueues a DAEMON job that still exists", func() {
			_ = cfg.Add(v1.JobConfig{JobName: "daemon_job", ExecutionType: v1.Daemon, ShardingTotalCount: 1})

			f.AddDaemonJobToReadyQueue("daemon_job")

			Expect(rdy.Contains("daemon_job")).To(BeTrue())
		})

		It("is a no-op for a job that no longer exists", func() {
			f.AddDaemonJobToReadyQueue("ghost_job")

			Expect(rdy.Contains("ghost_job")).To(BeFalse())
		})

		It("is a no-op for a TRANSIENT job", func() {
			_ = cfg.Add(v1.JobConfig{JobName: "transient_job", ExecutionType: v1.Transient, Cron: "@hourly"})

			f.AddDaemonJobToReadyQueue("transient_job")

			Expect(rdy.Contains("transient_job")).To(BeFalse())
		})
	})
})
