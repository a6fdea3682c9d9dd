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

// Package driver defines the boundary between the core and the
// underlying resource-manager SDK. The SDK itself (its wire protocol,
// its callback threading model) is an external collaborator out of
// scope for this module; only the interfaces the core consumes
// (ResourceDriver) and exposes (FrameworkScheduler) are specified here,
// per the "interface-based callback layer" design note.
package driver

// Resource is a scalar resource demand or offer (cpu count, memory in MB).
type Resource struct {
	CPUs float64
	MemMB float64
}

// Lease is one resource manager offer, wrapped for the assignment
// algorithm: a host's advertised scalar resources for a bounded time.
type Lease struct {
	OfferID    string
	Hostname   string
	SlaveID    string
	Resources  Resource
	Attributes map[string]string
}

// Executor describes how to launch the job's code on a chosen slave.
// Extract/Cache govern how the resource manager's fetcher handles AppURL:
// Extract unpacks an archive after download, Cache controls whether the
// fetched artifact is reused across tasks sharing the same executor.
type Executor struct {
	ExecutorID string
	Command    string
	AppURL     string
	Extract    bool
	Cache      bool
}

// ShardingContext is the serialized payload handed to the executor so
// it knows which shard it is and what the job-wide parameters are.
type ShardingContext struct {
	JobName            string
	ShardingTotalCount int
	JobParameter       string
	ShardingItem        int
	ItemParameter      string
}

// TaskInfo is what gets launched on the resource manager for one shard.
type TaskInfo struct {
	TaskID    string
	Name      string
	SlaveID   string
	Resources Resource
	Executor  Executor
	Data      ShardingContext
}

// ResourceDriver is the capability the core consumes from the resource
// manager SDK: launching a batch of tasks against a set of offers, and
// killing one task by id.
type ResourceDriver interface {
	LaunchTasks(offerIDs []string, tasks []TaskInfo) error
	KillTask(taskID string) error
}

// FrameworkScheduler is the capability set the core exposes to the
// resource manager SDK, replacing inheritance-from-SDK with an
// interface the SDK's client library calls into.
type FrameworkScheduler interface {
	Registered()
	Reregistered()
	Disconnected()
	OfferRescinded(offerID string)
	SlaveLost(slaveID string)
	ResourceOffers(offers []Lease)
	StatusUpdate(taskID string, state TaskState, message string)
}

// TaskState enumerates the resource manager's terminal/non-terminal
// task states the core reacts to.
type TaskState string

const (
	TaskRunning  TaskState = "RUNNING"
	TaskFinished TaskState = "FINISHED"
	TaskKilled   TaskState = "KILLED"
	TaskLost     TaskState = "LOST"
	TaskFailed   TaskState = "FAILED"
	TaskError    TaskState = "ERROR"
)
