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

package common

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/version"
)

// NewVersionCommand prints the client version and, when the service answers,
// the version it runs.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display version information for " + version.IVITName + " and its API specification.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s client: %s (api %s)\n", version.IVITName, version.IVITVersion, version.SpecVersion)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			var resp dto.GetVersionResponse
			if err := NewIVITClient().Client.Do(ctx, http.MethodGet, "/version", nil, &resp); err != nil {
				fmt.Println("server: not reachable")
				return
			}
			fmt.Printf("server: %s (api %s)\n", resp.Data.Version, resp.Data.SpecVersion)
		},
	}
}
