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

package model

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/common"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
)

// NewModelCommand groups the model subcommands.
func NewModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage installed models",
		Long:  "List, import and delete the models tasks run on.",
	}
	cmd.AddCommand(
		NewListModelsCommand(),
		NewImportModelCommand(),
		NewDeleteModelCommand(),
	)
	return cmd
}

// NewListModelsCommand creates the list models command
func NewListModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "list",
		Short:  "List installed models",
		Long:   `List installed models with their tag and framework.`,
		Args:   cobra.ExactArgs(0),
		PreRun: common.CheckIVITServer,
		Run: func(cmd *cobra.Command, args []string) {
			resp := dto.ModelsResponse{}

			err := common.DoHTTPRequest(common.NewIVITClient(), http.MethodGet, "/model", nil, &resp)
			if err != nil {
				fmt.Printf("\rGet model list failed: %s\n", err.Error())
				return
			}

			fmt.Printf("%-30s %-6s %-10s %-10s %-25s\n", "MODEL NAME", "TAG", "FRAMEWORK", "STATUS", "CREATE AT") // Table header

			for _, model := range resp.Data {
				fmt.Printf("%-30s %-6s %-10s %-10s %-25s\n",
					model.Name,
					model.Tag,
					model.Framework,
					model.Status,
					model.CreatedAt.Format(time.RFC3339),
				)
			}
		},
	}
}
