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

// Package facade is the Facade Service (C6): a plain struct composing
// the Config/Ready/Running/Failover services into the composite view
// the Scheduler Engine depends on. No inheritance, no mixins — just
// composition over the four sub-services, the way a Reconciler composes
// a client, a cache and an event recorder.
package facade

import (
	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/apierrors"
	"github.com/carv-ics-forth/cloudscheduler/pkg/config"
	"github.com/carv-ics-forth/cloudscheduler/pkg/failover"
	"github.com/carv-ics-forth/cloudscheduler/pkg/logging"
	"github.com/carv-ics-forth/cloudscheduler/pkg/ready"
	"github.com/carv-ics-forth/cloudscheduler/pkg/running"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

// DaemonStatusTracker is opaque to the engine; it tracks DAEMON shard
// liveness (idle/busy) for whoever operates the fleet. It is kept as a
// narrow interface so the facade does not have to know how liveness is
// surfaced (metrics, a dashboard, a coordination-store watch).
type DaemonStatusTracker interface {
	SetIdle(ctx taskcontext.TaskContext, idle bool)
}

// noopDaemonStatus is the default tracker: it does nothing. Daemon
// liveness is opaque to the engine by design — it never decides
// anything based on idle/busy state.
type noopDaemonStatus struct{}

func (noopDaemonStatus) SetIdle(taskcontext.TaskContext, bool) {}

// Facade composes C2-C5 into the single view the engine operates against.
type Facade struct {
	Config   config.Service
	Ready    ready.Service
	Running  running.Service
	Failover failover.Service
	Daemon   DaemonStatusTracker

	log     logging.Logger
	started bool
}

// New builds a Facade over the given sub-services. daemonTracker may be
// nil, in which case daemon status updates are silently dropped.
func New(cfg config.Service, rdy ready.Service, run running.Service, fo failover.Service, daemonTracker DaemonStatusTracker, log logging.Logger) *Facade {
	if daemonTracker == nil {
		daemonTracker = noopDaemonStatus{}
	}

	return &Facade{Config: cfg, Ready: rdy, Running: run, Failover: fo, Daemon: daemonTracker, log: log}
}

// Start activates the facade's state watches on the coordination
// store. In this in-memory implementation there is nothing to watch;
// Start/Stop exist so a coordination-store-backed Facade has the same
// lifecycle hook the engine calls on registered/disconnected.
func (f *Facade) Start() {
	f.started = true
	if f.log != nil {
		f.log.Info("facade started")
	}
}

func (f *Facade) Stop() {
	f.started = false
	if f.log != nil {
		f.log.Info("facade stopped")
	}
}

// GetEligibleJobContext merges the failover queue and the ready queue,
// per-job, preferring FAILOVER when a job has both: a job with
// failover entries is eligible with type FAILOVER for exactly those
// shards; otherwise, if its name is in the ready queue, it is eligible
// with type READY for shards 0..N-1 (this also covers DAEMON jobs,
// which reach the ready queue through the same mechanism).
func (f *Facade) GetEligibleJobContext() []v1.JobContext {
	var out []v1.JobContext

	seen := make(map[string]bool)

	for _, jobName := range f.Failover.JobNames() {
		cfg, ok := f.Config.Load(jobName)
		if !ok {
			continue
		}

		shards := f.Failover.ForJob(jobName)
		items := make([]int, len(shards))

		for i, m := range shards {
			items[i] = m.ShardingItem
		}

		out = append(out, v1.JobContext{JobConfig: cfg, AssignedShardItems: items, ExecutionType: v1.Failover})
		seen[jobName] = true
	}

	for _, jobName := range f.Ready.Peek() {
		if seen[jobName] {
			if f.log != nil {
				skip := &apierrors.AssignmentSkip{Reason: apierrors.Redundant, JobName: jobName}
				f.log.Info(skip.Error())
			}

			continue
		}

		cfg, ok := f.Config.Load(jobName)
		if !ok {
			continue
		}

		items := make([]int, cfg.ShardingTotalCount)
		for i := range items {
			items[i] = i
		}

		out = append(out, v1.JobContext{JobConfig: cfg, AssignedShardItems: items, ExecutionType: v1.Ready})
		seen[jobName] = true
	}

	return out
}

// RemoveLaunchTasksFromQueue removes the corresponding entries from the
// failover or ready queue, based on each task's execution type.
func (f *Facade) RemoveLaunchTasksFromQueue(ctxs []taskcontext.TaskContext) {
	byFailoverJob := make(map[string][]v1.TaskMetaInfo)
	readyJobs := make(map[string]bool)

	for _, ctx := range ctxs {
		switch ctx.ExecutionType {
		case v1.Failover:
			byFailoverJob[ctx.JobName] = append(byFailoverJob[ctx.JobName], ctx.TaskMetaInfo)
		default: // READY and DAEMON both arrive via the ready queue
			readyJobs[ctx.JobName] = true
		}
	}

	for jobName, shards := range byFailoverJob {
		f.Failover.Remove(jobName, shards)
	}

	if len(readyJobs) > 0 {
		names := make([]string, 0, len(readyJobs))
		for n := range readyJobs {
			names = append(names, n)
		}

		f.Ready.Remove(names)
	}
}

func (f *Facade) AddRunning(ctx taskcontext.TaskContext) {
	f.Running.Add(ctx.TaskMetaInfo)
}

func (f *Facade) RemoveRunning(m v1.TaskMetaInfo) {
	f.Running.Remove(m)
}

func (f *Facade) IsRunning(m v1.TaskMetaInfo) bool {
	return f.Running.IsRunning(m)
}

// UpdateDaemonStatus is opaque to the engine: it simply forwards to
// whatever DaemonStatusTracker was configured.
func (f *Facade) UpdateDaemonStatus(ctx taskcontext.TaskContext, idle bool) {
	f.Daemon.SetIdle(ctx, idle)
}

func (f *Facade) RecordFailoverTask(ctx taskcontext.TaskContext) {
	f.Failover.Record(ctx.TaskMetaInfo)
}

// AddDaemonJobToReadyQueue idempotently re-enqueues a DAEMON job name.
// It is a no-op if the job no longer exists or is not DAEMON: checking
// config presence before touching the ready queue closes the race
// where a job is deregistered while one of its tasks is still in
// flight.
func (f *Facade) AddDaemonJobToReadyQueue(jobName string) {
	cfg, ok := f.Config.Load(jobName)
	if !ok || !cfg.IsDaemon() {
		return
	}

	f.Ready.AddDaemon(jobName)
}
