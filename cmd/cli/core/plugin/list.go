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

package plugin

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MaxChangInnodisk/ivit-i-web-api/config"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/plugin/registry"
)

// NewPluginCommand groups the engine plugin subcommands.
func NewPluginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Inspect engine plugins",
		Long:  "Inspect the inference engine plugins found in the plugin directory.",
	}
	cmd.AddCommand(NewListPluginsCommand())
	return cmd
}

// NewListPluginsCommand creates a command to list all installed plugins
func NewListPluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all installed plugins",
		Long:  "List the engine plugins in the plugin directory and whether they ship a binary for this platform.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.GlobalEnvironment == nil {
				config.GlobalEnvironment = config.NewIVITEnvironment()
			}
			return listPlugins(config.GlobalEnvironment.PluginDir)
		},
	}
}

func listPlugins(dir string) error {
	r := registry.NewPluginRegistry(dir)
	if err := r.DiscoverPlugins(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	frameworks := r.Frameworks()
	if len(frameworks) == 0 {
		fmt.Println("No plugins installed.")
		return nil
	}
	sort.Strings(frameworks)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tFRAMEWORK\tPLATFORM")
	for _, fw := range frameworks {
		m := r.Manifest(fw)
		if m == nil {
			continue
		}
		platform := "supported"
		if _, err := m.GetPlatformConfig(runtime.GOOS, runtime.GOARCH); err != nil {
			platform = "unsupported"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Name, m.Version, m.Framework, platform)
	}
	return w.Flush()
}
