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

// Command schedulerd wires the core components together and runs the
// Scheduler Engine and Producer Manager against whatever ResourceDriver
// is configured. In this repo the driver is always the in-memory
// FakeDriver: the real resource-manager SDK is an external collaborator,
// out of scope per spec.
package main

import (
	"os"
	"strings"

	"github.com/dimiro1/banner"
	"github.com/spf13/cobra"

	"github.com/carv-ics-forth/cloudscheduler/pkg/assign"
	"github.com/carv-ics-forth/cloudscheduler/pkg/bootstrap"
	"github.com/carv-ics-forth/cloudscheduler/pkg/config"
	"github.com/carv-ics-forth/cloudscheduler/pkg/driver"
	"github.com/carv-ics-forth/cloudscheduler/pkg/engine"
	"github.com/carv-ics-forth/cloudscheduler/pkg/facade"
	"github.com/carv-ics-forth/cloudscheduler/pkg/failover"
	"github.com/carv-ics-forth/cloudscheduler/pkg/lifecycle"
	"github.com/carv-ics-forth/cloudscheduler/pkg/logging"
	"github.com/carv-ics-forth/cloudscheduler/pkg/producer"
	"github.com/carv-ics-forth/cloudscheduler/pkg/ready"
	"github.com/carv-ics-forth/cloudscheduler/pkg/running"
	"github.com/carv-ics-forth/cloudscheduler/pkg/transient"
)

const startupBanner = `
 ___  _             _   ___       _              _       _
/ __|| |___ _  _ __| | / __| __ _| |_  ___ ___ __| |_  _ | |___  _ _
| (__ | / _ \ || / _\` + "`" + ` | \__ \/ _\` + "`" + ` | ' \/ -_) _/ _\` + "`" + ` | || || |/ -_)| '_|
\___||_\___/\_,_\__,_| |___/\__,_|_||_\___\__\__,_|\_,_||_|\___||_|
`

func newRootCmd() *cobra.Command {
	var jobsFile string

	cmd := &cobra.Command{
		Use:   "schedulerd",
		Short: "runs the Producer Manager and Scheduler Engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			banner.Init(os.Stdout, true, true, strings.NewReader(startupBanner))

			cfg := config.NewInMemory()

			if jobsFile != "" {
				data, err := os.ReadFile(jobsFile)
				if err != nil {
					return err
				}

				jobs, err := config.LoadYAML(data)
				if err != nil {
					return err
				}

				for _, j := range jobs {
					if err := cfg.Add(j); err != nil {
						return err
					}
				}
			}

			rdy := ready.NewInMemory()
			run := running.NewInMemory()
			fo := failover.NewInMemory()

			adminLog := logging.NewLogrus("producer-manager")
			engineLog := logging.NewZap("scheduler-engine")

			fakeDriver := driver.NewFakeDriver()

			ts := transient.New(rdy, adminLog)
			lc := lifecycle.New(run, fakeDriver, adminLog)
			mgr := producer.New(cfg, rdy, run, lc, ts, adminLog)

			f := facade.New(cfg, rdy, run, fo, nil, engineLog)

			transcript, err := bootstrap.NewTranscript()
			if err != nil {
				return err
			}

			eng := engine.New(f, assign.NewGreedyPacker(), fakeDriver, transcript, engineLog)

			mgr.Startup()
			eng.Registered()

			adminLog.Info("scheduler started", "jobs", len(cfg.List()))

			select {}
		},
	}

	cmd.Flags().StringVar(&jobsFile, "jobs", "", "path to a YAML file of job definitions to load at startup")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
