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

// Package config is the Config Service (C2): it loads, stores and
// removes JobConfig values by name. The interface is what the core
// depends on; the coordination store that actually persists these
// values is an external collaborator (out of scope, per spec).
package config

import (
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
)

// Service is the Config Service contract the rest of the core depends on.
type Service interface {
	// Load returns the JobConfig and true if jobName is registered,
	// or the zero value and false otherwise.
	Load(jobName string) (v1.JobConfig, bool)
	Add(cfg v1.JobConfig) error
	Update(cfg v1.JobConfig) error
	Remove(jobName string)
	List() []v1.JobConfig
}

// InMemory is a Service backed by a guarded map, standing in for a
// coordination-store-backed implementation in tests and local runs.
type InMemory struct {
	mu   sync.RWMutex
	jobs map[string]v1.JobConfig
}

// NewInMemory returns an empty Config Service.
func NewInMemory() *InMemory {
	return &InMemory{jobs: make(map[string]v1.JobConfig)}
}

func (s *InMemory) Load(jobName string) (v1.JobConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.jobs[jobName]

	return cfg, ok
}

func (s *InMemory) Add(cfg v1.JobConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[cfg.JobName] = cfg

	return nil
}

func (s *InMemory) Update(cfg v1.JobConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[cfg.JobName] = cfg

	return nil
}

func (s *InMemory) Remove(jobName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, jobName)
}

func (s *InMemory) List() []v1.JobConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]v1.JobConfig, 0, len(s.jobs))
	for _, cfg := range s.jobs {
		out = append(out, cfg)
	}

	return out
}

// LoadYAML decodes a YAML document containing a list of job
// definitions (as the coordination store would hand back a generic
// map[string]interface{} per path) into typed JobConfig values via
// mapstructure, the common pattern for decoding loosely-typed payloads.
func LoadYAML(data []byte) ([]v1.JobConfig, error) {
	var raw []map[string]interface{}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "cannot parse job definitions")
	}

	out := make([]v1.JobConfig, 0, len(raw))

	for i, entry := range raw {
		var cfg v1.JobConfig

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot build decoder for entry %d", i)
		}

		if err := decoder.Decode(entry); err != nil {
			return nil, errors.Wrapf(err, "cannot decode job definition %d", i)
		}

		out = append(out, cfg)
	}

	return out, nil
}
