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

// Package taskcontext encodes and decodes the wire identity of a task:
// which job, which shard, why it is being scheduled, on which slave,
// under which retry attempt. The string form is what travels as the
// resource manager's taskId.
package taskcontext

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
)

// Delimiter separates fields in the TaskContext wire format.
const Delimiter = "@-@"

// FakeSlave is the sentinel slave id used for pre-assignment
// TaskRequests, before the true slave is known. It must never collide
// with a real slave id; callers that mint slave ids from a resource
// manager should treat this string as reserved.
const FakeSlave = "fake-slave"

// TaskContext is a TaskMetaInfo plus everything needed to address and
// launch the task: why it is eligible, which slave it landed on, and an
// opaque retry-identifying uuid.
type TaskContext struct {
	v1.TaskMetaInfo
	ExecutionType v1.ExecutionType
	SlaveID       string
	UUID          string
}

// New builds a TaskContext for a fresh launch attempt, minting a new uuid.
func New(jobName string, shardingItem int, execType v1.ExecutionType, slaveID string) TaskContext {
	return TaskContext{
		TaskMetaInfo:  v1.TaskMetaInfo{JobName: jobName, ShardingItem: shardingItem},
		ExecutionType: execType,
		SlaveID:       slaveID,
		UUID:          strings.ReplaceAll(uuid.New().String(), "-", ""),
	}
}

// Encode renders the TaskContext in its `jobName@-@shard@-@type@-@slave@-@uuid` form.
func Encode(ctx TaskContext) string {
	return strings.Join([]string{
		ctx.JobName,
		strconv.Itoa(ctx.ShardingItem),
		string(ctx.ExecutionType),
		ctx.SlaveID,
		ctx.UUID,
	}, Delimiter)
}

// Parse accepts the four-or-five-field variants of the wire format.
// Four fields (no uuid) are accepted with an empty uuid, matching
// callers that only care about identity, not retry provenance.
func Parse(s string) (TaskContext, error) {
	fields := strings.Split(s, Delimiter)
	if len(fields) != 4 && len(fields) != 5 {
		return TaskContext{}, errors.Errorf("malformed task context %q: want 4 or 5 fields, got %d", s, len(fields))
	}

	shard, err := strconv.Atoi(fields[1])
	if err != nil {
		return TaskContext{}, errors.Wrapf(err, "malformed sharding item in %q", s)
	}

	ctx := TaskContext{
		TaskMetaInfo:  v1.TaskMetaInfo{JobName: fields[0], ShardingItem: shard},
		ExecutionType: v1.ExecutionType(fields[2]),
		SlaveID:       fields[3],
	}

	if len(fields) == 5 {
		ctx.UUID = fields[4]
	}

	return ctx, nil
}

// MetaInfoFrom parses just the first two `@-@`-joined fields, ignoring
// execution type, slave and uuid. It accepts any of the wire-format
// variants as well as a bare `jobName@-@shard` pair.
func MetaInfoFrom(s string) (v1.TaskMetaInfo, error) {
	fields := strings.SplitN(s, Delimiter, 3)
	if len(fields) < 2 {
		return v1.TaskMetaInfo{}, errors.Errorf("malformed meta info %q", s)
	}

	shard, err := strconv.Atoi(fields[1])
	if err != nil {
		return v1.TaskMetaInfo{}, errors.Wrapf(err, "malformed sharding item in %q", s)
	}

	return v1.TaskMetaInfo{JobName: fields[0], ShardingItem: shard}, nil
}

// EncodeMetaInfo renders just the `jobName@-@shard` pair.
func EncodeMetaInfo(m v1.TaskMetaInfo) string {
	return strings.Join([]string{m.JobName, strconv.Itoa(m.ShardingItem)}, Delimiter)
}

// Name renders the human-readable `jobName@-@shardingItem` label used
// for TaskInfo.Name.
func Name(m v1.TaskMetaInfo) string {
	return EncodeMetaInfo(m)
}

// ExecutorID builds `jobName@-@hash(appURL)` so that tasks of the same
// job build share one executor across launches.
func ExecutorID(jobName, appURL string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(appURL))

	return jobName + Delimiter + strconv.FormatUint(uint64(h.Sum32()), 16)
}
