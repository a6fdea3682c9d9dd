/*
Copyright 2021 ICS-FORTH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package assign is the pluggable constraint-aware assignment
// algorithm the Scheduler Engine calls once per resourceOffers batch.
// Assigner is the extension point; GreedyPacker is the bundled default.
package assign

import (
	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

// TaskRequest is one shard's resource demand, carrying a placeholder
// TaskContext whose SlaveID is taskcontext.FakeSlave until assignment.
type TaskRequest struct {
	Context  taskcontext.TaskContext
	CPUs     float64
	MemMB    float64
	JobName  string
	Constraint string
}

// VMAssignmentResult binds a subset of leases on one VM to a subset of
// the submitted TaskRequests.
type VMAssignmentResult struct {
	Hostname    string
	SlaveID     string
	LeaseIDs    []string
	Assignments []TaskRequest
}

// Assigner is the pluggable assignment algorithm. Implementations own
// their lease cache and assigned-task registry, mutated only by the
// goroutine that called Assign for a given batch.
type Assigner interface {
	// Assign matches requests against leases and returns one
	// VMAssignmentResult per VM that received at least one task.
	Assign(requests []TaskRequest, leases []driver.Lease) []VMAssignmentResult

	// RegisterAssignment tells the algorithm that a task was actually
	// launched, so subsequent cycles see it as placed (consuming
	// capacity on that VM until the lease expires).
	RegisterAssignment(slaveID string, req TaskRequest)

	// ExpireLease invalidates a single rescinded/cached lease.
	ExpireLease(offerID string)

	// ExpireSlave invalidates every lease bound to a lost slave.
	ExpireSlave(slaveID string)

	// InvalidateAll drops every cached lease, used on (re)registration.
	InvalidateAll()
}
