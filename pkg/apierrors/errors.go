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

// Package apierrors defines the typed error kinds the core reports to
// its callers. Admin operations surface these; the offer/status
// callback path never does (see pkg/engine for the absorb-and-log
// policy).
package apierrors

import "fmt"

// JobConfigReason distinguishes why an admin operation on a JobConfig failed.
type JobConfigReason string

const (
	AlreadyExists JobConfigReason = "AlreadyExists"
	NotFound      JobConfigReason = "NotFound"
	Invalid       JobConfigReason = "Invalid"
)

// JobConfigurationError is returned by Producer Manager admin operations.
type JobConfigurationError struct {
	Reason  JobConfigReason
	JobName string
	Detail  string
}

func (e *JobConfigurationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("job %q: %s", e.JobName, e.Reason)
	}

	return fmt.Sprintf("job %q: %s: %s", e.JobName, e.Reason, e.Detail)
}

// Is allows errors.Is(err, &JobConfigurationError{Reason: apierrors.NotFound})
// style matching on reason alone, ignoring JobName.
func (e *JobConfigurationError) Is(target error) bool {
	t, ok := target.(*JobConfigurationError)
	if !ok {
		return false
	}

	return t.Reason == e.Reason
}

// NewAlreadyExists builds a JobConfigurationError{AlreadyExists}.
func NewAlreadyExists(jobName string) error {
	return &JobConfigurationError{Reason: AlreadyExists, JobName: jobName}
}

// NewNotFound builds a JobConfigurationError{NotFound}.
func NewNotFound(jobName string) error {
	return &JobConfigurationError{Reason: NotFound, JobName: jobName}
}

// NewInvalid builds a JobConfigurationError{Invalid}.
func NewInvalid(jobName, detail string) error {
	return &JobConfigurationError{Reason: Invalid, JobName: jobName, Detail: detail}
}

// SkipReason explains, for logging only, why the engine did not launch
// an eligible task this cycle. It never propagates to a caller.
type SkipReason string

const (
	ConfigMissing      SkipReason = "ConfigMissing"
	AlreadyRunning     SkipReason = "AlreadyRunning"
	IntegrityViolation SkipReason = "IntegrityViolation"
	Redundant          SkipReason = "Redundant"
)

// AssignmentSkip records why a task was not launched in a given cycle.
type AssignmentSkip struct {
	Reason  SkipReason
	JobName string
	Shard   int
}

func (e *AssignmentSkip) Error() string {
	return fmt.Sprintf("skip %s@-@%d: %s", e.JobName, e.Shard, e.Reason)
}

// ResourceManagerError wraps a failure surfaced by the driver/resource
// manager SDK. It is logged, never returned to the SDK callback.
type ResourceManagerError struct {
	Op  string
	Err error
}

func (e *ResourceManagerError) Error() string {
	return fmt.Sprintf("resource manager error during %s: %v", e.Op, e.Err)
}

func (e *ResourceManagerError) Unwrap() error { return e.Err }
