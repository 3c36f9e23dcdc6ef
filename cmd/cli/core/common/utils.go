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
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MaxChangInnodisk/ivit-i-web-api/config"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/process"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/progress"
	"github.com/MaxChangInnodisk/ivit-i-web-api/version"
)

// CheckIVITServer exits when the service does not answer its health endpoint.
func CheckIVITServer(cmd *cobra.Command, args []string) {
	if config.GlobalEnvironment == nil {
		config.GlobalEnvironment = config.NewIVITEnvironment()
	}
	health := config.Host().JoinPath(constants.AppName, version.SpecVersion, "health").String()
	spm, err := process.NewServerProcessManager("", "", config.GlobalEnvironment.PidFile, health)
	if err == nil && spm.HealthCheck() == nil {
		return
	}
	fmt.Printf("%s server is not running, Please run '%s server start' first\n", version.IVITName, constants.AppName)
	os.Exit(1)
}

// ShowProgressWithMessage shows a spinner while fn runs.
func ShowProgressWithMessage(message string, fn func() error) error {
	if !IsTerminal() {
		return fn()
	}
	p := progress.NewProgress(os.Stderr)
	p.Add(progress.NewSpinner(message))
	err := fn()
	p.Stop()
	return err
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// NewIVITClient creates a client rooted at the versioned API path
func NewIVITClient() *config.IVITClient {
	return config.NewIVITClient()
}

// DoHTTPRequest performs HTTP request with proper error handling
func DoHTTPRequest(client *config.IVITClient, method, path string, req, resp interface{}) error {
	return client.Client.Do(context.Background(), method, path, req, resp)
}
