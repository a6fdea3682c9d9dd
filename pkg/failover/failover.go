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

// Package failover is the Failover Service (C5): a per-job ordered
// collection of TaskMetaInfo whose last run ended abnormally and which
// bypass the full-shard-count integrity rule on their next launch.
package failover

import (
	"sync"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

// Service is the Failover Service contract.
type Service interface {
	// Record appends m to jobName's failover queue, deduplicating by meta.
	Record(m v1.TaskMetaInfo)
	HasAny(jobName string) bool
	ForJob(jobName string) []v1.TaskMetaInfo
	// Remove drops the named shards of jobName from the failover queue.
	Remove(jobName string, shards []v1.TaskMetaInfo)
	// JobNames lists the distinct job names currently holding failover entries.
	JobNames() []string
}

type inMemory struct {
	mu    sync.Mutex
	byJob map[string][]v1.TaskMetaInfo
	seen  map[string]map[string]bool
}

// NewInMemory returns an empty Failover Service.
func NewInMemory() Service {
	return &inMemory{
		byJob: make(map[string][]v1.TaskMetaInfo),
		seen:  make(map[string]map[string]bool),
	}
}

func (s *inMemory) Record(m v1.TaskMetaInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskcontext.EncodeMetaInfo(m)

	if s.seen[m.JobName] == nil {
		s.seen[m.JobName] = make(map[string]bool)
	}

	if s.seen[m.JobName][key] {
		return
	}

	s.seen[m.JobName][key] = true
	s.byJob[m.JobName] = append(s.byJob[m.JobName], m)
}

func (s *inMemory) HasAny(jobName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.byJob[jobName]) > 0
}

func (s *inMemory) ForJob(jobName string) []v1.TaskMetaInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]v1.TaskMetaInfo, len(s.byJob[jobName]))
	copy(out, s.byJob[jobName])

	return out
}

func (s *inMemory) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.byJob))
	for jobName := range s.byJob {
		out = append(out, jobName)
	}

	return out
}

func (s *inMemory) Remove(jobName string, shards []v1.TaskMetaInfo) {
	if len(shards) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]bool, len(shards))
	for _, m := range shards {
		doomed[taskcontext.EncodeMetaInfo(m)] = true
	}

	kept := s.byJob[jobName][:0]

	for _, m := range s.byJob[jobName] {
		key := taskcontext.EncodeMetaInfo(m)
		if doomed[key] {
			delete(s.seen[jobName], key)
			continue
		}

		kept = append(kept, m)
	}

	if len(kept) == 0 {
		delete(s.byJob, jobName)
	} else {
		s.byJob[jobName] = kept
	}
}
