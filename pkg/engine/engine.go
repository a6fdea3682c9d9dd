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

// Package engine is the Scheduler Engine (C10): the offer-matching and
// task-launching loop. It implements driver.FrameworkScheduler so any
// resource-manager SDK client library can hand it offers and status
// updates without that library being part of this module.
package engine

import (
	"sync"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/apierrors"
	"github.com/carv-ics-forth/cloudscheduler/pkg/assign"
	"github.com/carv-ics-forth/cloudscheduler/pkg/bootstrap"
	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
	"github.com/carv-ics-forth/cloudscheduler/pkg/facade"
	"github.com/carv-ics-forth/cloudscheduler/pkg/logging"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

var _ driver.FrameworkScheduler = (*Engine)(nil)

// Engine is the Scheduler Engine.
type Engine struct {
	facade   *facade.Facade
	assigner assign.Assigner
	driver   driver.ResourceDriver
	log      logging.Logger

	transcript *bootstrap.Transcript

	// resourceOffers does not run concurrently with itself, even
	// though statusUpdate runs independently on the resource manager's
	// own per-task serialization.
	offerMu sync.Mutex
}

// New builds a Scheduler Engine over its collaborators. transcript may
// be nil, in which case rendered commands are not recorded.
func New(f *facade.Facade, assigner assign.Assigner, d driver.ResourceDriver, transcript *bootstrap.Transcript, log logging.Logger) *Engine {
	return &Engine{facade: f, assigner: assigner, driver: d, transcript: transcript, log: log}
}

// Registered activates the Facade's state watches and invalidates any
// leases cached by the assignment algorithm from a prior connection.
func (e *Engine) Registered() {
	e.facade.Start()
	e.assigner.InvalidateAll()
}

// Reregistered behaves exactly like Registered: a fresh connection
// means cached leases can no longer be trusted.
func (e *Engine) Reregistered() {
	e.Registered()
}

// Disconnected stops the Facade; leases are left alone, they will be
// refreshed on reconnect.
func (e *Engine) Disconnected() {
	e.facade.Stop()
}

func (e *Engine) OfferRescinded(offerID string) {
	e.assigner.ExpireLease(offerID)
}

func (e *Engine) SlaveLost(slaveID string) {
	e.assigner.ExpireSlave(slaveID)
}

// ResourceOffers is the heart of the engine: it gathers eligible job
// contexts, builds TaskRequests, runs the assignment algorithm, enforces
// the sharding-integrity rule, and launches the surviving assignments.
func (e *Engine) ResourceOffers(offers []driver.Lease) {
	e.offerMu.Lock()
	defer e.offerMu.Unlock()

	contexts := e.facade.GetEligibleJobContext()
	if len(contexts) == 0 {
		return
	}

	requests, totalShards := e.buildRequests(contexts)

	results := e.assigner.Assign(requests, offers)

	assignedCount := make(map[string]int)

	for _, res := range results {
		for _, a := range res.Assignments {
			assignedCount[a.JobName]++
		}
	}

	violators := make(map[string]bool)

	for jobName, total := range totalShards {
		if assignedCount[jobName] < total {
			violators[jobName] = true

			if e.log != nil {
				skip := &apierrors.AssignmentSkip{Reason: apierrors.IntegrityViolation, JobName: jobName}
				e.log.Warn(skip.Error(), "assigned", assignedCount[jobName], "required", total)
			}
		}
	}

	for _, res := range results {
		e.launchOnVM(res, violators)
	}

	e.logInsufficientResources(contexts, results)
}

// buildRequests constructs one TaskRequest per assigned shard, and a
// map jobName -> shardingTotalCount covering only non-FAILOVER
// contexts (failover is partial by definition and never subject to the
// integrity check).
func (e *Engine) buildRequests(contexts []v1.JobContext) ([]assign.TaskRequest, map[string]int) {
	var requests []assign.TaskRequest

	totalShards := make(map[string]int)

	for _, jc := range contexts {
		cfg := jc.JobConfig

		execType := v1.Ready
		if jc.ExecutionType == v1.Failover {
			execType = v1.Failover
		}

		if jc.ExecutionType != v1.Failover {
			totalShards[cfg.JobName] = cfg.ShardingTotalCount
		}

		for _, shard := range jc.AssignedShardItems {
			ctx := taskcontext.New(cfg.JobName, shard, execType, taskcontext.FakeSlave)

			requests = append(requests, assign.TaskRequest{
				Context:    ctx,
				CPUs:       cfg.CPUCount,
				MemMB:      cfg.MemoryMB,
				JobName:    cfg.JobName,
				Constraint: cfg.Constraint,
			})
		}
	}

	return requests, totalShards
}

// launchOnVM processes one VM's assignment result: tasks belonging to
// an integrity-violating job, or already running, are skipped; the
// rest are batched into one driver launch call, in the order the
// assignment algorithm emitted them.
func (e *Engine) launchOnVM(res assign.VMAssignmentResult, violators map[string]bool) {
	var toLaunch []driver.TaskInfo

	var launchedCtxs []taskcontext.TaskContext

	for _, req := range res.Assignments {
		if violators[req.JobName] {
			continue
		}

		if e.facade.IsRunning(req.Context.TaskMetaInfo) {
			if e.log != nil {
				skip := &apierrors.AssignmentSkip{Reason: apierrors.AlreadyRunning, JobName: req.JobName, Shard: req.Context.ShardingItem}
				e.log.Info(skip.Error())
			}

			continue
		}

		info, ok := e.getTaskInfo(req, res.SlaveID)
		if !ok {
			continue
		}

		e.assigner.RegisterAssignment(res.SlaveID, req)

		toLaunch = append(toLaunch, info)
		launchedCtxs = append(launchedCtxs, req.Context)
	}

	if len(toLaunch) == 0 {
		return
	}

	if err := e.driver.LaunchTasks(res.LeaseIDs, toLaunch); err != nil {
		if e.log != nil {
			e.log.Error(&apierrors.ResourceManagerError{Op: "LaunchTasks", Err: err}, "launch failed", "slave", res.SlaveID)
		}

		return
	}

	e.facade.RemoveLaunchTasksFromQueue(launchedCtxs)

	for _, ctx := range launchedCtxs {
		e.facade.AddRunning(ctx)
	}
}

// getTaskInfo builds the TaskInfo for one assigned shard. A config
// that has disappeared between eligibility and launch (a race with
// deregister) yields "no info" and the task is silently skipped.
func (e *Engine) getTaskInfo(req assign.TaskRequest, slaveID string) (driver.TaskInfo, bool) {
	cfg, ok := e.facade.Config.Load(req.JobName)
	if !ok {
		if e.log != nil {
			skip := &apierrors.AssignmentSkip{Reason: apierrors.ConfigMissing, JobName: req.JobName, Shard: req.Context.ShardingItem}
			e.log.Info(skip.Error())
		}

		return driver.TaskInfo{}, false
	}

	ctx := req.Context
	ctx.SlaveID = slaveID

	itemParam := cfg.ShardingItemParameters[ctx.ShardingItem]

	command, err := bootstrap.Render(cfg.BootstrapScript, bootstrap.Params{
		JobName:       cfg.JobName,
		ShardingItem:  ctx.ShardingItem,
		JobParameter:  cfg.JobParameter,
		ItemParameter: itemParam,
		AppURL:        cfg.AppURL,
	})
	if err != nil {
		if e.log != nil {
			e.log.Error(err, "cannot render bootstrap command", "job", req.JobName)
		}

		return driver.TaskInfo{}, false
	}

	if e.transcript != nil {
		e.transcript.Record(cfg.JobName, ctx.ShardingItem, command)
	}

	return driver.TaskInfo{
		TaskID:  taskcontext.Encode(ctx),
		Name:    taskcontext.Name(ctx.TaskMetaInfo),
		SlaveID: slaveID,
		Resources: driver.Resource{
			CPUs:  cfg.CPUCount,
			MemMB: cfg.MemoryMB,
		},
		Executor: driver.Executor{
			ExecutorID: taskcontext.ExecutorID(cfg.JobName, cfg.AppURL),
			Command:    command,
			AppURL:     cfg.AppURL,
			Extract:    true,
			Cache:      false,
		},
		Data: driver.ShardingContext{
			JobName:            cfg.JobName,
			ShardingTotalCount: cfg.ShardingTotalCount,
			JobParameter:       cfg.JobParameter,
			ShardingItem:       ctx.ShardingItem,
			ItemParameter:      itemParam,
		},
	}, true
}

// logInsufficientResources logs, but does not fail, jobs that were
// eligible yet received zero assignments and are not currently running.
func (e *Engine) logInsufficientResources(contexts []v1.JobContext, results []assign.VMAssignmentResult) {
	assigned := make(map[string]bool)

	for _, res := range results {
		for _, a := range res.Assignments {
			assigned[a.JobName] = true
		}
	}

	for _, jc := range contexts {
		if assigned[jc.JobConfig.JobName] {
			continue
		}

		if e.facade.Running.RunningCount(jc.JobConfig.JobName) > 0 {
			continue
		}

		if e.log != nil {
			e.log.Info("resources insufficient", "job", jc.JobConfig.JobName)
		}
	}
}
