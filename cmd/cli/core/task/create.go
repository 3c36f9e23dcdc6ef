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
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

// NewCreateTaskCommand creates the create task command
func NewCreateTaskCommand() *cobra.Command {
	req := dto.TaskRequest{}
	var appName, logic string

	cmd := &cobra.Command{
		Use:    "create",
		Short:  "Create a task",
		Long:   "Create a task bound to a source and an installed model. The task starts stopped.",
		Args:   cobra.ExactArgs(0),
		PreRun: common.CheckIVITServer,
		RunE: func(cmd *cobra.Command, args []string) error {
			for flag, value := range map[string]string{"--name": req.Name, "--source": req.Source, "--model": req.ModelName} {
				if err := common.ValidateRequiredFlag(flag, value); err != nil {
					return err
				}
			}
			if err := common.ValidateSource(req.Source); err != nil {
				return err
			}
			if err := common.ValidateThreshold(req.Threshold); err != nil {
				return err
			}
			if appName != "" {
				req.Application = &types.ApplicationConfig{Name: appName, Logic: logic}
			}

			resp := dto.TaskResponse{}
			if err := common.DoHTTPRequest(common.NewIVITClient(), http.MethodPost, "/task", req, &resp); err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}
			fmt.Printf("Task %s created with uid %s\n", resp.Data.Name, resp.Data.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Task name")
	cmd.Flags().StringVarP(&req.Source, "source", "s", "", "rtsp url, video or image file, or /dev/videoN")
	cmd.Flags().StringVarP(&req.ModelName, "model", "m", "", "Installed model name")
	cmd.Flags().StringVar(&req.Device, "device", "CPU", "Inference device")
	cmd.Flags().Float64Var(&req.Threshold, "thres", 0.5, "Detection threshold")
	cmd.Flags().StringVar(&appName, "app", "", "Application name, defaults to the basic application of the model tag")
	cmd.Flags().StringVar(&logic, "logic", "", "Application trigger logic")
	return cmd
}
