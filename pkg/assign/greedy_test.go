package assign_test

import (
	"testing"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/assign"
	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

func request(jobName string, shard int, cpus, memMB float64, constraint string) assign.TaskRequest {
	return assign.TaskRequest{
		Context:    taskcontext.New(jobName, shard, v1.Ready, taskcontext.FakeSlave),
		CPUs:       cpus,
		MemMB:      memMB,
		JobName:    jobName,
		Constraint: constraint,
	}
}

func TestGreedyPackerAdmitsWithinCapacity(t *testing.T) {
	g := assign.NewGreedyPacker()

	lease := driver.Lease{OfferID: "o1", Hostname: "h1", SlaveID: "s1", Resources: driver.Resource{CPUs: 2, MemMB: 2048}}

	requests := []assign.TaskRequest{
		request("job", 0, 1, 1024, ""),
		request("job", 1, 1, 1024, ""),
	}

	results := g.Assign(requests, []driver.Lease{lease})

	if len(results) != 1 {
		t.Fatalf("expected 1 VM result, got %d", len(results))
	}

	if len(results[0].Assignments) != 2 {
		t.Fatalf("expected both shards admitted, got %d", len(results[0].Assignments))
	}
}

func TestGreedyPackerStopsAtCapacity(t *testing.T) {
	g := assign.NewGreedyPacker()

	lease := driver.Lease{OfferID: "o1", Hostname: "h1", SlaveID: "s1", Resources: driver.Resource{CPUs: 1, MemMB: 2048}}

	requests := []assign.TaskRequest{
		request("job", 0, 1, 1024, ""),
		request("job", 1, 1, 1024, ""),
	}

	results := g.Assign(requests, []driver.Lease{lease})

	if len(results) != 1 || len(results[0].Assignments) != 1 {
		t.Fatalf("expected exactly 1 shard admitted, got %+v", results)
	}

	if results[0].Assignments[0].Context.ShardingItem != 0 {
		t.Fatalf("expected the first submitted shard to win, got shard %d", results[0].Assignments[0].Context.ShardingItem)
	}
}

func TestGreedyPackerRegisterAssignmentConsumesCapacityAcrossCycles(t *testing.T) {
	g := assign.NewGreedyPacker()

	lease := driver.Lease{OfferID: "o1", Hostname: "h1", SlaveID: "s1", Resources: driver.Resource{CPUs: 2, MemMB: 2048}}

	first := g.Assign([]assign.TaskRequest{request("job", 0, 2, 2048, "")}, []driver.Lease{lease})
	if len(first) != 1 || len(first[0].Assignments) != 1 {
		t.Fatalf("expected the first shard to be admitted, got %+v", first)
	}

	g.RegisterAssignment("s1", first[0].Assignments[0])

	second := g.Assign([]assign.TaskRequest{request("job", 1, 1, 100, "")}, nil)
	if len(second) != 0 {
		t.Fatalf("expected no capacity left on s1 after registering the first shard, got %+v", second)
	}
}

func TestGreedyPackerExcludesOnUnsatisfiedConstraint(t *testing.T) {
	g := assign.NewGreedyPacker()

	lease := driver.Lease{
		OfferID: "o1", Hostname: "h1", SlaveID: "s1",
		Resources:  driver.Resource{CPUs: 4, MemMB: 4096},
		Attributes: map[string]string{"region": "eu-west"},
	}

	requests := []assign.TaskRequest{
		request("job", 0, 1, 100, `region == "eu-west"`),
		request("job", 1, 1, 100, `region == "us-east"`),
	}

	results := g.Assign(requests, []driver.Lease{lease})

	if len(results) != 1 || len(results[0].Assignments) != 1 {
		t.Fatalf("expected only the matching constraint to be admitted, got %+v", results)
	}

	if results[0].Assignments[0].Context.ShardingItem != 0 {
		t.Fatalf("expected shard 0 (matching constraint) to be admitted, got shard %d", results[0].Assignments[0].Context.ShardingItem)
	}
}

func TestGreedyPackerExpireLeaseRemovesOffer(t *testing.T) {
	g := assign.NewGreedyPacker()

	lease := driver.Lease{OfferID: "o1", Hostname: "h1", SlaveID: "s1", Resources: driver.Resource{CPUs: 4, MemMB: 4096}}
	g.Assign(nil, []driver.Lease{lease})

	g.ExpireLease("o1")

	results := g.Assign([]assign.TaskRequest{request("job", 0, 1, 100, "")}, nil)
	if len(results) != 0 {
		t.Fatalf("expected no VM results after expiring the only lease, got %+v", results)
	}
}

func TestGreedyPackerInvalidateAllClearsPlacedAndLeases(t *testing.T) {
	g := assign.NewGreedyPacker()

	lease := driver.Lease{OfferID: "o1", Hostname: "h1", SlaveID: "s1", Resources: driver.Resource{CPUs: 1, MemMB: 1024}}
	first := g.Assign([]assign.TaskRequest{request("job", 0, 1, 1024, "")}, []driver.Lease{lease})
	g.RegisterAssignment("s1", first[0].Assignments[0])

	g.InvalidateAll()

	results := g.Assign([]assign.TaskRequest{request("job", 0, 1, 1024, "")}, []driver.Lease{lease})
	if len(results) != 1 || len(results[0].Assignments) != 1 {
		t.Fatalf("expected a clean slate after InvalidateAll, got %+v", results)
	}
}
