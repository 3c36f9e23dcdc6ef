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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/common"
	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/model"
	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/plugin"
	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/server"
	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/task"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
)

// NewCommand creates the root command with all subcommands
func NewCommand() *cobra.Command {
	cmds := &cobra.Command{
		Use:   constants.AppName,
		Short: "iVIT-I - edge video inference service",
		Long: `iVIT-I runs video inference tasks on an edge device.

Each task binds a video source to an installed model and an application.
Tasks that watch the same camera or stream share a single capture.

Common commands:
  ivit server start          Start the service
  ivit task list             List tasks
  ivit task run <uid>        Start a task
  ivit model import -f x.zip Import a model bundle

Use 'ivit <command> --help' for more information about a command.`,
		SilenceUsage: true,
	}

	cmds.AddCommand(
		// Server management
		server.NewApiserverCommand(),

		// Common commands
		common.NewVersionCommand(),

		// Resource management
		task.NewTaskCommand(),
		model.NewModelCommand(),
		plugin.NewPluginCommand(),
	)

	return cmds
}
