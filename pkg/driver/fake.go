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

package driver

import "sync"

// FakeDriver is an in-memory ResourceDriver stub. It stands in for the
// resource manager SDK behind the ResourceDriver interface the core
// consumes, recording launches and kills; it is not the SDK itself,
// and no cluster executor or wire protocol is implemented here.
type FakeDriver struct {
	mu        sync.Mutex
	Launched  []TaskInfo
	Killed    []string
	LaunchErr error
	KillErr   error
}

// NewFakeDriver returns an empty FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

func (d *FakeDriver) LaunchTasks(offerIDs []string, tasks []TaskInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.LaunchErr != nil {
		return d.LaunchErr
	}

	d.Launched = append(d.Launched, tasks...)

	return nil
}

func (d *FakeDriver) KillTask(taskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.KillErr != nil {
		return d.KillErr
	}

	d.Killed = append(d.Killed, taskID)

	return nil
}

// LaunchedSnapshot returns a copy of tasks launched so far.
func (d *FakeDriver) LaunchedSnapshot() []TaskInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]TaskInfo, len(d.Launched))
	copy(out, d.Launched)

	return out
}
