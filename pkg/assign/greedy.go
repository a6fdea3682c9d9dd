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

package assign

import (
	"sort"
	"sync"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"

	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
)

// GreedyPacker is the bundled default Assigner. For every lease, sorted
// by hostname for determinism, it greedily admits TaskRequests (in
// submission order) whose job constraint expression evaluates true
// against the lease's attributes and whose cumulative cpu/mem fits the
// lease's remaining scalars. Resource bookkeeping uses
// shopspring/decimal so repeated summing across many small requests
// does not drift the way plain float64 accumulation can.
type GreedyPacker struct {
	mu sync.Mutex

	// leases is the algorithm's own cache of offers currently usable,
	// keyed by offer id, mutated only by the calling goroutine.
	leases map[string]driver.Lease

	// placed tracks cpu/mem already consumed per slave by tasks that
	// were actually launched in a prior cycle (RegisterAssignment),
	// so this cycle's packing respects capacity still in use.
	placed map[string]Resource
}

// Resource mirrors driver.Resource as decimals for internal bookkeeping.
type Resource struct {
	CPUs  decimal.Decimal
	MemMB decimal.Decimal
}

// NewGreedyPacker returns an Assigner with an empty lease cache.
func NewGreedyPacker() *GreedyPacker {
	return &GreedyPacker{
		leases: make(map[string]driver.Lease),
		placed: make(map[string]Resource),
	}
}

func (g *GreedyPacker) Assign(requests []TaskRequest, leases []driver.Lease) []VMAssignmentResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, l := range leases {
		g.leases[l.OfferID] = l
	}

	bySlave := make(map[string][]driver.Lease)

	for _, l := range g.leases {
		bySlave[l.SlaveID] = append(bySlave[l.SlaveID], l)
	}

	slaveIDs := make([]string, 0, len(bySlave))
	for slaveID := range bySlave {
		slaveIDs = append(slaveIDs, slaveID)
	}

	sort.Slice(slaveIDs, func(i, j int) bool {
		return hostnameOf(bySlave[slaveIDs[i]]) < hostnameOf(bySlave[slaveIDs[j]])
	})

	remaining := make([]bool, len(requests))
	for i := range remaining {
		remaining[i] = true
	}

	var results []VMAssignmentResult

	for _, slaveID := range slaveIDs {
		slaveLeases := bySlave[slaveID]

		avail := g.availableOn(slaveID, slaveLeases)

		var assigned []TaskRequest

		for i, req := range requests {
			if !remaining[i] {
				continue
			}

			if !constraintAllows(req.Constraint, slaveLeases[0].Attributes) {
				continue
			}

			cost := Resource{CPUs: decimal.NewFromFloat(req.CPUs), MemMB: decimal.NewFromFloat(req.MemMB)}
			if cost.CPUs.GreaterThan(avail.CPUs) || cost.MemMB.GreaterThan(avail.MemMB) {
				continue
			}

			avail.CPUs = avail.CPUs.Sub(cost.CPUs)
			avail.MemMB = avail.MemMB.Sub(cost.MemMB)

			assigned = append(assigned, req)
			remaining[i] = false
		}

		if len(assigned) == 0 {
			continue
		}

		offerIDs := make([]string, len(slaveLeases))
		for i, l := range slaveLeases {
			offerIDs[i] = l.OfferID
		}

		results = append(results, VMAssignmentResult{
			Hostname:    slaveLeases[0].Hostname,
			SlaveID:     slaveID,
			LeaseIDs:    offerIDs,
			Assignments: assigned,
		})
	}

	return results
}

func hostnameOf(leases []driver.Lease) string {
	if len(leases) == 0 {
		return ""
	}

	return leases[0].Hostname
}

// availableOn sums the slave's offered scalars and subtracts whatever
// was already placed there in a prior cycle.
func (g *GreedyPacker) availableOn(slaveID string, leases []driver.Lease) Resource {
	total := Resource{}

	for _, l := range leases {
		total.CPUs = total.CPUs.Add(decimal.NewFromFloat(l.Resources.CPUs))
		total.MemMB = total.MemMB.Add(decimal.NewFromFloat(l.Resources.MemMB))
	}

	if used, ok := g.placed[slaveID]; ok {
		total.CPUs = total.CPUs.Sub(used.CPUs)
		total.MemMB = total.MemMB.Sub(used.MemMB)
	}

	return total
}

func constraintAllows(expr string, attrs map[string]string) bool {
	if expr == "" {
		return true
	}

	evaluable, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		// an unparsable constraint excludes the job from every lease
		// rather than panicking the offer-processing hot path.
		return false
	}

	params := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		params[k] = v
	}

	result, err := evaluable.Evaluate(params)
	if err != nil {
		return false
	}

	ok, _ := result.(bool)

	return ok
}

func (g *GreedyPacker) RegisterAssignment(slaveID string, req TaskRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()

	used := g.placed[slaveID]
	used.CPUs = used.CPUs.Add(decimal.NewFromFloat(req.CPUs))
	used.MemMB = used.MemMB.Add(decimal.NewFromFloat(req.MemMB))
	g.placed[slaveID] = used
}

func (g *GreedyPacker) ExpireLease(offerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.leases, offerID)
}

func (g *GreedyPacker) ExpireSlave(slaveID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for offerID, l := range g.leases {
		if l.SlaveID == slaveID {
			delete(g.leases, offerID)
		}
	}

	delete(g.placed, slaveID)
}

func (g *GreedyPacker) InvalidateAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.leases = make(map[string]driver.Lease)
	g.placed = make(map[string]Resource)
}
