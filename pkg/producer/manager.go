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

// Package producer is the Producer Manager (C9): job
// registration/update/deregistration and startup/shutdown. All
// mutating operations are serialized per job name so a racing
// register/deregister pair is totally ordered.
package producer

import (
	"sync"

	"github.com/r3labs/diff/v3"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/apierrors"
	"github.com/carv-ics-forth/cloudscheduler/pkg/config"
	"github.com/carv-ics-forth/cloudscheduler/pkg/lifecycle"
	"github.com/carv-ics-forth/cloudscheduler/pkg/logging"
	"github.com/carv-ics-forth/cloudscheduler/pkg/ready"
	"github.com/carv-ics-forth/cloudscheduler/pkg/running"
	"github.com/carv-ics-forth/cloudscheduler/pkg/transient"
)

// Manager is the Producer Manager: the job lifecycle controller.
type Manager struct {
	config    config.Service
	ready     ready.Service
	running   running.Service
	lifecycle *lifecycle.Service
	transient *transient.Scheduler
	log       logging.Logger

	// jobLocks serializes mutating operations by job name so a racing
	// register(j)/deregister(j) pair is totally ordered and the loser
	// observes the post-state.
	jobLocks sync.Map // jobName -> *sync.Mutex

	startOnce sync.Once
}

// New builds a Producer Manager over its collaborators.
func New(cfg config.Service, rdy ready.Service, run running.Service, lc *lifecycle.Service, ts *transient.Scheduler, log logging.Logger) *Manager {
	return &Manager{config: cfg, ready: rdy, running: run, lifecycle: lc, transient: ts, log: log}
}

func (m *Manager) lockFor(jobName string) *sync.Mutex {
	actual, _ := m.jobLocks.LoadOrStore(jobName, &sync.Mutex{})

	return actual.(*sync.Mutex)
}

// Startup loads every job from the Config Service. TRANSIENT jobs are
// registered with the cron trigger; DAEMON jobs are added to the ready
// queue once. Idempotent: only the first call has any effect, so
// repeated calls do not double-register.
func (m *Manager) Startup() {
	m.startOnce.Do(func() {
		for _, cfg := range m.config.List() {
			m.activate(cfg)
		}

		if m.transient != nil {
			m.transient.Start()
		}
	})
}

func (m *Manager) activate(cfg v1.JobConfig) {
	switch {
	case cfg.IsTransient():
		if m.transient != nil {
			if err := m.transient.Register(cfg.JobName, cfg.Cron); err != nil && m.log != nil {
				m.log.Error(err, "cannot register transient job", "job", cfg.JobName)
			}
		}
	case cfg.IsDaemon():
		m.ready.AddDaemon(cfg.JobName)
	}
}

// Register adds a new JobConfig. It fails with
// JobConfigurationError{AlreadyExists} if the job is already present.
func (m *Manager) Register(cfg v1.JobConfig) error {
	lock := m.lockFor(cfg.JobName)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := m.config.Load(cfg.JobName); ok {
		return apierrors.NewAlreadyExists(cfg.JobName)
	}

	if err := m.config.Add(cfg); err != nil {
		return err
	}

	m.activate(cfg)

	return nil
}

// Update replaces an existing JobConfig and tears down every in-flight
// instance of it: kill running tasks, remove them from the running
// set, and clear the job from the ready queue, so the next offer cycle
// re-schedules from a clean state reflecting the new configuration.
func (m *Manager) Update(cfg v1.JobConfig) error {
	lock := m.lockFor(cfg.JobName)
	lock.Lock()
	defer lock.Unlock()

	old, ok := m.config.Load(cfg.JobName)
	if !ok {
		return apierrors.NewNotFound(cfg.JobName)
	}

	if m.log != nil {
		if changelog, err := diff.Diff(old, cfg); err == nil && len(changelog) > 0 {
			m.log.Info("reconciling job configuration change", "job", cfg.JobName, "changes", len(changelog))
		}
	}

	if err := m.config.Update(cfg); err != nil {
		return err
	}

	if m.lifecycle != nil {
		if err := m.lifecycle.KillJob(cfg.JobName); err != nil && m.log != nil {
			m.log.Error(err, "killJob during update reported failures", "job", cfg.JobName)
		}
	}

	m.running.RemoveAllForJob(cfg.JobName)

	m.ready.Remove([]string{cfg.JobName})

	// Unconditional teardown also means any stale cron registration
	// must be replaced with the new schedule (or removed, if the job
	// is no longer TRANSIENT), and a DAEMON job gets a fresh ready entry.
	if m.transient != nil && !cfg.IsTransient() {
		m.transient.Unregister(cfg.JobName)
	}

	m.activate(cfg)

	return nil
}

// Deregister removes jobName. It is a no-op if jobName is absent (no
// call to configService.Remove). If present: kill all running tasks,
// remove them from the running set, remove the job from the ready
// queue, and only then remove the config entry — so observers racing
// on status updates still see a valid config while kills propagate.
func (m *Manager) Deregister(jobName string) error {
	lock := m.lockFor(jobName)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := m.config.Load(jobName); !ok {
		return nil
	}

	if m.lifecycle != nil {
		if err := m.lifecycle.KillJob(jobName); err != nil && m.log != nil {
			m.log.Error(err, "killJob during deregister reported failures", "job", jobName)
		}
	}

	m.running.RemoveAllForJob(jobName)

	m.ready.Remove([]string{jobName})

	if m.transient != nil {
		m.transient.Unregister(jobName)
	}

	m.config.Remove(jobName)

	return nil
}

// Shutdown stops the cron trigger. It must not touch running tasks;
// graceful drain is a separate concern.
func (m *Manager) Shutdown() {
	if m.transient != nil {
		m.transient.Shutdown()
	}
}
