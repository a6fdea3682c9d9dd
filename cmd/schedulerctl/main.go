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

// Command schedulerctl is a thin operator-facing wrapper around the
// job definitions a coordination store would otherwise hold. It is
// explicitly not the admin surface's business logic (that stays an
// external collaborator, per spec) — just enough CLI to register,
// update, deregister and list job definitions kept in a local YAML
// file, standing in for the coordination store in local operation.
package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	v1 "github.com/carv-ics-forth/cloudscheduler/api/v1"
	"github.com/carv-ics-forth/cloudscheduler/pkg/apierrors"
	"github.com/carv-ics-forth/cloudscheduler/pkg/config"
)

func loadStore(path string) (*config.InMemory, error) {
	store := config.NewInMemory()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}

	if err != nil {
		return nil, errors.Wrap(err, "cannot read job store")
	}

	jobs, err := config.LoadYAML(data)
	if err != nil {
		return nil, err
	}

	for _, j := range jobs {
		_ = store.Add(j)
	}

	return store, nil
}

func saveStore(path string, store *config.InMemory) error {
	data, err := yaml.Marshal(store.List())
	if err != nil {
		return errors.Wrap(err, "cannot marshal job store")
	}

	return os.WriteFile(path, data, 0o644)
}

func newRootCmd() *cobra.Command {
	var storePath string

	root := &cobra.Command{Use: "schedulerctl"}
	root.PersistentFlags().StringVar(&storePath, "store", "jobs.yaml", "path to the local job definitions file")

	root.AddCommand(newListCmd(&storePath))
	root.AddCommand(newRegisterCmd(&storePath))
	root.AddCommand(newUpdateCmd(&storePath))
	root.AddCommand(newDeregisterCmd(&storePath))

	return root
}

func newListCmd(storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list registered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(*storePath)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Job", "Type", "Shards", "CPU", "Memory (MB)"})

			for _, j := range store.List() {
				table.Append([]string{
					j.JobName,
					string(j.ExecutionType),
					fmt.Sprintf("%d", j.ShardingTotalCount),
					fmt.Sprintf("%.2f", j.CPUCount),
					fmt.Sprintf("%.0f", j.MemoryMB),
				})
			}

			table.Render()

			return nil
		},
	}
}

func newRegisterCmd(storePath *string) *cobra.Command {
	var jobName, execType, cron string

	var shards int

	var cpu, mem float64

	cmd := &cobra.Command{
		Use:   "register",
		Short: "register a new job",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(*storePath)
			if err != nil {
				return err
			}

			if _, ok := store.Load(jobName); ok {
				return apierrors.NewAlreadyExists(jobName)
			}

			cfg := v1.JobConfig{
				JobName:            jobName,
				ExecutionType:      v1.ExecutionKind(execType),
				Cron:               cron,
				ShardingTotalCount: shards,
				CPUCount:           cpu,
				MemoryMB:           mem,
			}

			if err := store.Add(cfg); err != nil {
				return err
			}

			color.Green.Printf("registered %s\n", jobName)

			return saveStore(*storePath, store)
		},
	}

	cmd.Flags().StringVar(&jobName, "name", "", "job name")
	cmd.Flags().StringVar(&execType, "type", "DAEMON", "TRANSIENT or DAEMON")
	cmd.Flags().StringVar(&cron, "cron", "", "cron schedule, for TRANSIENT jobs")
	cmd.Flags().IntVar(&shards, "shards", 1, "sharding total count")
	cmd.Flags().Float64Var(&cpu, "cpu", 1, "cpu count per shard")
	cmd.Flags().Float64Var(&mem, "mem", 256, "memory in MB per shard")

	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newUpdateCmd(storePath *string) *cobra.Command {
	var jobName, cron string

	var shards int

	var cpu, mem float64

	cmd := &cobra.Command{
		Use:   "update",
		Short: "update an existing job's configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(*storePath)
			if err != nil {
				return err
			}

			existing, ok := store.Load(jobName)
			if !ok {
				return apierrors.NewNotFound(jobName)
			}

			if cmd.Flags().Changed("cron") {
				existing.Cron = cron
			}

			if cmd.Flags().Changed("shards") {
				existing.ShardingTotalCount = shards
			}

			if cmd.Flags().Changed("cpu") {
				existing.CPUCount = cpu
			}

			if cmd.Flags().Changed("mem") {
				existing.MemoryMB = mem
			}

			if err := store.Update(existing); err != nil {
				return err
			}

			color.Green.Printf("updated %s\n", jobName)

			return saveStore(*storePath, store)
		},
	}

	cmd.Flags().StringVar(&jobName, "name", "", "job name")
	cmd.Flags().StringVar(&cron, "cron", "", "new cron schedule, for TRANSIENT jobs")
	cmd.Flags().IntVar(&shards, "shards", 0, "new sharding total count")
	cmd.Flags().Float64Var(&cpu, "cpu", 0, "new cpu count per shard")
	cmd.Flags().Float64Var(&mem, "mem", 0, "new memory in MB per shard")

	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newDeregisterCmd(storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deregister [job]",
		Short: "deregister a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(*storePath)
			if err != nil {
				return err
			}

			jobName := args[0]

			if _, ok := store.Load(jobName); !ok {
				color.Yellow.Printf("%s was not registered\n", jobName)

				return nil
			}

			store.Remove(jobName)
			color.Red.Printf("deregistered %s\n", jobName)

			return saveStore(*storePath, store)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
