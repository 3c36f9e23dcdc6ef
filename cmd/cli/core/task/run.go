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

func NewRunTaskCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "run <uid>",
		Short:  "Start a task",
		Args:   cobra.ExactArgs(1),
		PreRun: common.CheckIVITServer,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp := dto.RunTaskResponse{}
			err := common.ShowProgressWithMessage("Starting task "+args[0], func() error {
				return common.DoHTTPRequest(common.NewIVITClient(), http.MethodPost, "/task/"+args[0]+"/run", nil, &resp)
			})
			if err != nil {
				return fmt.Errorf("failed to run task: %w", err)
			}
			fmt.Printf("Task %s: %s\n", args[0], resp.Data)
			return nil
		},
	}
}

func NewStopTaskCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "stop <uid>",
		Short:  "Stop a running task",
		Args:   cobra.ExactArgs(1),
		PreRun: common.CheckIVITServer,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp := dto.RunTaskResponse{}
			if err := common.DoHTTPRequest(common.NewIVITClient(), http.MethodPost, "/task/"+args[0]+"/stop", nil, &resp); err != nil {
				return fmt.Errorf("failed to stop task: %w", err)
			}
			fmt.Printf("Task %s stopped\n", args[0])
			return nil
		},
	}
}
