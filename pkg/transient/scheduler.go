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

// Package transient is the Transient Producer Scheduler (C7): a
// cron-driven trigger that enqueues a TRANSIENT job's name into the
// Ready Service on every tick. It holds no reference to the Producer
// Manager: the manager calls Register/Unregister, and the scheduler
// only writes to the Ready Service, so there is no cyclic reference.
package transient

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/carv-ics-forth/cloudscheduler/pkg/logging"
	"github.com/carv-ics-forth/cloudscheduler/pkg/ready"
)

// Scheduler registers TRANSIENT jobs with an underlying cron runner and
// enqueues their name into the Ready Service on every trigger.
type Scheduler struct {
	ready ready.Service
	log   logging.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	entries  map[string]cron.EntryID
	running  bool
}

// New builds a Scheduler over the given Ready Service.
func New(rdy ready.Service, log logging.Logger) *Scheduler {
	return &Scheduler{
		ready:   rdy,
		log:     log,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Register schedules jobName to be enqueued into Ready on every tick of
// spec. Re-registering the same job name replaces its prior schedule,
// so startup() can call Register idempotently without double-firing.
func (s *Scheduler) Register(jobName, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[jobName]; ok {
		s.cron.Remove(id)
		delete(s.entries, jobName)
	}

	id, err := s.cron.AddFunc(spec, func() {
		s.ready.Add(jobName)

		if s.log != nil {
			s.log.Info("transient job triggered", "job", jobName)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "cannot register cron schedule %q for job %q", spec, jobName)
	}

	s.entries[jobName] = id

	return nil
}

// Unregister removes jobName's schedule, if any.
func (s *Scheduler) Unregister(jobName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[jobName]; ok {
		s.cron.Remove(id)
		delete(s.entries, jobName)
	}
}

// Start begins firing registered schedules. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.cron.Start()
	s.running = true
}

// Shutdown stops the underlying cron runner, blocking until any
// in-flight trigger finishes. It must not touch running tasks.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	ctx := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	<-ctx.Done()
}
