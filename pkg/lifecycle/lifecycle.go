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

// Package lifecycle is the Lifecycle Service (C8): it kills every
// running task of a job via the driver. Graceful drain is a separate
// concern left to the driver/resource manager: this service only
// translates and triggers termination, it never waits for it.
package lifecycle

import (
	"github.com/hashicorp/go-multierror"

	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
	"github.com/carv-ics-forth/cloudscheduler/pkg/logging"
	"github.com/carv-ics-forth/cloudscheduler/pkg/running"
	"github.com/carv-ics-forth/cloudscheduler/pkg/taskcontext"
)

// Service kills all running tasks of a job.
type Service struct {
	running running.Service
	driver  driver.ResourceDriver
	log     logging.Logger
}

// New builds a Lifecycle Service over the given Running Service and driver.
func New(run running.Service, d driver.ResourceDriver, log logging.Logger) *Service {
	return &Service{running: run, driver: d, log: log}
}

// KillJob issues a kill to the driver for every shard of jobName
// currently in the running-set. Individual kill failures are
// aggregated and returned, not fatal to sibling kills: a stuck shard
// must never block its siblings from being torn down.
func (s *Service) KillJob(jobName string) error {
	shards := s.running.ForJob(jobName)

	var result *multierror.Error

	for _, m := range shards {
		taskID := taskcontext.EncodeMetaInfo(m)

		if err := s.driver.KillTask(taskID); err != nil {
			result = multierror.Append(result, err)

			if s.log != nil {
				s.log.Error(err, "kill task failed", "job", jobName, "shard", m.ShardingItem)
			}
		}
	}

	if result != nil {
		return result.ErrorOrNil()
	}

	return nil
}
