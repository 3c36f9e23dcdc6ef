//*****************************************************************************
// Copyright 2024-2025 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//*****************************************************************************

package task

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/common"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
)

// NewTaskCommand groups the task subcommands.
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage inference tasks",
		Long:  "Create, list, run, stop and delete inference tasks.",
	}
	cmd.AddCommand(
		NewListTasksCommand(),
		NewCreateTaskCommand(),
		NewRunTaskCommand(),
		NewStopTaskCommand(),
		NewDeleteTaskCommand(),
		NewFrameCommand(),
	)
	return cmd
}

// NewListTasksCommand creates the list tasks command
func NewListTasksCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "list",
		Short:  "List tasks",
		Long:   "List every task with its state, and the stored tasks that failed to load.",
		Args:   cobra.ExactArgs(0),
		PreRun: common.CheckIVITServer,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp := dto.TaskListResponse{}
			if err := common.DoHTTPRequest(common.NewIVITClient(), http.MethodGet, "/task", nil, &resp); err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "UID\tNAME\tSTATUS\tMODEL\tSOURCE\tFRAMES")
			for _, t := range resp.Data.Ready {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", t.ID, t.Name, t.State, t.ModelName, t.Source, t.Frames)
			}
			for _, t := range resp.Data.Failed {
				fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t-\n", t.ID, t.Name, "failed: "+t.Error)
			}
			return w.Flush()
		},
	}
}
