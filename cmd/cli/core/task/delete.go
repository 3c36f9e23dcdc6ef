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

	"github.com/spf13/cobra"

	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/common"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
)

func NewDeleteTaskCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "delete <uid>",
		Short:  "Delete a task",
		Long:   "Delete a task. A running task is stopped first.",
		Args:   cobra.ExactArgs(1),
		PreRun: common.CheckIVITServer,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp := dto.DeleteTaskResponse{}
			if err := common.DoHTTPRequest(common.NewIVITClient(), http.MethodDelete, "/task/"+args[0], nil, &resp); err != nil {
				return fmt.Errorf("failed to delete task: %w", err)
			}
			fmt.Printf("Task %s deleted\n", args[0])
			return nil
		},
	}
}
