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

package engine

import (
	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

// StatusUpdate dispatches a resource-manager task status to the
// appropriate recovery action. FAILED/LOST/ERROR are recoverable:
// shards are reinserted via the failover path. KILLED is typically
// operator-initiated; TRANSIENT jobs rely on the next cron trigger,
// DAEMON jobs are re-queued explicitly. FINISHED is terminal for a
// shard's invocation. Any error here is absorbed and logged: no
// exception may propagate back into the resource-manager SDK.
func (e *Engine) StatusUpdate(taskID string, state driver.TaskState, message string) {
	ctx, err := taskcontext.Parse(taskID)
	if err != nil {
		if e.log != nil {
			e.log.Error(err, "cannot parse task id on status update", "taskId", taskID)
		}

		return
	}

	switch state {
	case driver.TaskRunning:
		switch message {
		case "BEGIN":
			e.facade.UpdateDaemonStatus(ctx, false)
		case "COMPLETE":
			e.facade.UpdateDaemonStatus(ctx, true)
		}

	case driver.TaskFinished:
		e.facade.RemoveRunning(ctx.TaskMetaInfo)

	case driver.TaskKilled:
		e.facade.RemoveRunning(ctx.TaskMetaInfo)
		// Unconditional re-queue; the race with a concurrent deregister
		// is mitigated inside AddDaemonJobToReadyQueue, which checks
		// config presence first.
		e.facade.AddDaemonJobToReadyQueue(ctx.JobName)

	case driver.TaskLost, driver.TaskFailed, driver.TaskError:
		e.facade.RemoveRunning(ctx.TaskMetaInfo)
		e.facade.RecordFailoverTask(ctx)
		e.facade.AddDaemonJobToReadyQueue(ctx.JobName)

	default:
		// no-op
	}
}
