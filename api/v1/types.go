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

// Package v1 holds the data types shared by every component of the
// scheduler: job definitions, task identities and the per-cycle job
// context the engine builds from them.
package v1

// ExecutionKind distinguishes how a JobConfig is triggered.
type ExecutionKind string

const (
	// Transient jobs are triggered on a recurring cron schedule; each
	// trigger enqueues one full set of shards.
	Transient ExecutionKind = "TRANSIENT"
	// Daemon jobs are always eligible; a killed, lost, failed or errored
	// shard re-enqueues the job name, a finished shard does not.
	Daemon ExecutionKind = "DAEMON"
)

// ExecutionType tags a TaskContext with why it is being scheduled.
type ExecutionType string

const (
	Ready      ExecutionType = "READY"
	Failover   ExecutionType = "FAILOVER"
	DaemonExec ExecutionType = "DAEMON"
)

// JobConfig is immutable once registered; it is mutated only through an
// explicit Update call on the Producer Manager.
type JobConfig struct {
	JobName                string            `yaml:"jobName" mapstructure:"jobName"`
	ExecutionType          ExecutionKind     `yaml:"executionType" mapstructure:"executionType"`
	Cron                   string            `yaml:"cron,omitempty" mapstructure:"cron"`
	ShardingTotalCount     int               `yaml:"shardingTotalCount" mapstructure:"shardingTotalCount"`
	ShardingItemParameters map[int]string    `yaml:"shardingItemParameters,omitempty" mapstructure:"shardingItemParameters"`
	JobParameter           string            `yaml:"jobParameter,omitempty" mapstructure:"jobParameter"`
	CPUCount               float64           `yaml:"cpuCount" mapstructure:"cpuCount"`
	MemoryMB               float64           `yaml:"memoryMB" mapstructure:"memoryMB"`
	AppURL                 string            `yaml:"appURL" mapstructure:"appURL"`
	BootstrapScript        string            `yaml:"bootstrapScript" mapstructure:"bootstrapScript"`

	// Constraint is an optional govaluate expression evaluated against a
	// lease's host attributes during assignment, e.g. `region == "eu-west"`.
	Constraint string `yaml:"constraint,omitempty" mapstructure:"constraint"`
}

// IsTransient reports whether the job is cron-triggered.
func (c JobConfig) IsTransient() bool { return c.ExecutionType == Transient }

// IsDaemon reports whether the job is always eligible.
func (c JobConfig) IsDaemon() bool { return c.ExecutionType == Daemon }

// TaskMetaInfo identifies a shard within a job; it is stable across retries.
type TaskMetaInfo struct {
	JobName      string
	ShardingItem int
}

// JobContext is what the Facade produces for the engine on each offer
// cycle: a job config plus the shards it is eligible to launch this
// cycle, and why.
type JobContext struct {
	JobConfig          JobConfig
	AssignedShardItems []int
	ExecutionType      ExecutionType
}
