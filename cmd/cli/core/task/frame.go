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
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/common"
)

// NewFrameCommand saves the latest annotated frame of a running task.
func NewFrameCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:    "frame <uid>",
		Short:  "Save the latest annotated frame of a task",
		Args:   cobra.ExactArgs(1),
		PreRun: common.CheckIVITServer,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _, err := common.NewIVITClient().Client.Fetch(context.Background(), "/task/"+args[0]+"/frame")
			if err != nil {
				return fmt.Errorf("failed to fetch frame: %w", err)
			}
			if output == "" {
				output = args[0] + ".jpg"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Frame saved to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, defaults to <uid>.jpg")
	return cmd
}
