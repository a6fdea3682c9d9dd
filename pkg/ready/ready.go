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

// Package ready is the Ready Service (C3): a FIFO of job names awaiting
// the next offer cycle. A DAEMON job name is idempotent in the queue;
// a TRANSIENT job is enqueued once per cron trigger, so duplicates are
// allowed for it.
package ready

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map"
)

// Service is the Ready Service contract.
type Service interface {
	// Add enqueues jobName unconditionally (used by the cron trigger
	// for TRANSIENT jobs; duplicates are legitimate, one per trigger).
	Add(jobName string)
	// AddDaemon enqueues jobName only if it is not already present.
	AddDaemon(jobName string)
	Contains(jobName string) bool
	// Remove drops every occurrence of each named job from the queue.
	Remove(jobNames []string)
	// Peek returns a non-destructive snapshot of the queue in FIFO
	// order; entries are removed only by an explicit Remove once their
	// tasks have actually launched.
	Peek() []string
}

// inMemory is a Service backed by an ordered slice guarded by a mutex
// plus a concurrent-map membership index for O(1) Contains/AddDaemon
// checks, pairing a concurrent-map with ordered bookkeeping when both
// membership tests and iteration order matter.
type inMemory struct {
	mu      sync.Mutex
	order   []string
	members cmap.ConcurrentMap
}

// NewInMemory returns an empty Ready Service.
func NewInMemory() Service {
	return &inMemory{members: cmap.New()}
}

func (s *inMemory) Add(jobName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = append(s.order, jobName)
	s.bump(jobName)
}

func (s *inMemory) AddDaemon(jobName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members.Has(jobName) {
		return
	}

	s.order = append(s.order, jobName)
	s.bump(jobName)
}

// bump must be called with mu held.
func (s *inMemory) bump(jobName string) {
	if n, ok := s.members.Get(jobName); ok {
		s.members.Set(jobName, n.(int)+1)
	} else {
		s.members.Set(jobName, 1)
	}
}

func (s *inMemory) Contains(jobName string) bool {
	return s.members.Has(jobName)
}

func (s *inMemory) Remove(jobNames []string) {
	if len(jobNames) == 0 {
		return
	}

	doomed := make(map[string]bool, len(jobNames))
	for _, n := range jobNames {
		doomed[n] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]

	for _, n := range s.order {
		if doomed[n] {
			continue
		}

		kept = append(kept, n)
	}

	s.order = kept

	for n := range doomed {
		s.members.Remove(n)
	}
}

func (s *inMemory) Peek() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.order))
	copy(out, s.order)

	return out
}
