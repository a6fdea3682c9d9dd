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

// Package running is the Running Service (C4): the logical map
// jobName -> set<TaskMetaInfo> of currently running shards.
package running

import (
	cmap "github.com/orcaman/concurrent-map"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

// Service is the Running Service contract. A TaskMetaInfo appears at
// most once across the whole service; Add is idempotent.
type Service interface {
	Add(m v1.TaskMetaInfo)
	Remove(m v1.TaskMetaInfo)
	IsRunning(m v1.TaskMetaInfo) bool
	// RunningCount reports how many of jobName's shards are currently running.
	RunningCount(jobName string) int
	// ForJob returns the running shards of jobName.
	ForJob(jobName string) []v1.TaskMetaInfo
	// RemoveAllForJob clears every running shard of jobName, returning them.
	RemoveAllForJob(jobName string) []v1.TaskMetaInfo
}

// inMemory nests one concurrent set per job inside a concurrent map of
// job names; each set maps the encoded meta info to its TaskMetaInfo.
type inMemory struct {
	byJob cmap.ConcurrentMap // jobName -> *cmap.ConcurrentMap (meta key -> v1.TaskMetaInfo)
}

// NewInMemory returns an empty Running Service.
func NewInMemory() Service {
	return &inMemory{byJob: cmap.New()}
}

func (s *inMemory) jobSet(jobName string) cmap.ConcurrentMap {
	if v, ok := s.byJob.Get(jobName); ok {
		return v.(cmap.ConcurrentMap)
	}

	set := cmap.New()
	s.byJob.SetIfAbsent(jobName, set)

	v, _ := s.byJob.Get(jobName)

	return v.(cmap.ConcurrentMap)
}

func (s *inMemory) Add(m v1.TaskMetaInfo) {
	s.jobSet(m.JobName).Set(taskcontext.EncodeMetaInfo(m), m)
}

func (s *inMemory) Remove(m v1.TaskMetaInfo) {
	set := s.jobSet(m.JobName)
	set.Remove(taskcontext.EncodeMetaInfo(m))

	if set.Count() == 0 {
		s.byJob.Remove(m.JobName)
	}
}

func (s *inMemory) IsRunning(m v1.TaskMetaInfo) bool {
	v, ok := s.byJob.Get(m.JobName)
	if !ok {
		return false
	}

	return v.(cmap.ConcurrentMap).Has(taskcontext.EncodeMetaInfo(m))
}

func (s *inMemory) RunningCount(jobName string) int {
	v, ok := s.byJob.Get(jobName)
	if !ok {
		return 0
	}

	return v.(cmap.ConcurrentMap).Count()
}

func (s *inMemory) ForJob(jobName string) []v1.TaskMetaInfo {
	v, ok := s.byJob.Get(jobName)
	if !ok {
		return nil
	}

	set := v.(cmap.ConcurrentMap)
	out := make([]v1.TaskMetaInfo, 0, set.Count())

	for entry := range set.IterBuffered() {
		out = append(out, entry.Val.(v1.TaskMetaInfo))
	}

	return out
}

func (s *inMemory) RemoveAllForJob(jobName string) []v1.TaskMetaInfo {
	out := s.ForJob(jobName)
	s.byJob.Remove(jobName)

	return out
}
