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
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MaxChangInnodisk/ivit-i-web-api/cmd/cli/core/common"
	"github.com/MaxChangInnodisk/ivit-i-web-api/config"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/importer"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/progress"
)

const pollInterval = 500 * time.Millisecond

// NewImportModelCommand creates the import model command
func NewImportModelCommand() *cobra.Command {
	req := dto.ImportRequest{}
	var detach bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a model bundle",
		Long: `Import a zipped model bundle from a url or a local file. The bundle is verified,
converted for this device when needed, and installed under its name.`,
		Args:   cobra.ExactArgs(0),
		PreRun: common.CheckIVITServer,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.URL == "" && req.File == "" {
				return fmt.Errorf("one of --url or --file is required")
			}
			if req.File != "" {
				abs, err := filepath.Abs(req.File)
				if err != nil {
					return err
				}
				req.File = abs
			}

			c := common.NewIVITClient()
			resp := dto.ImportResponse{}
			if err := common.DoHTTPRequest(c, http.MethodPost, "/import", req, &resp); err != nil {
				return fmt.Errorf("failed to start import: %w", err)
			}
			if detach {
				fmt.Printf("Import %s started\n", resp.Data.ID)
				return nil
			}
			return follow(c, resp.Data.ID)
		},
	}

	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Model name, defaults to the bundle file name")
	cmd.Flags().StringVarP(&req.URL, "url", "u", "", "Bundle download url")
	cmd.Flags().StringVarP(&req.File, "file", "f", "", "Local bundle path")
	cmd.Flags().StringVar(&req.SHA256, "sha256", "", "Expected sha256 of the bundle")
	cmd.Flags().StringVar(&req.Tag, "tag", "", "Override the model tag (cls, obj, darknet, seg)")
	cmd.Flags().BoolVar(&detach, "detach", false, "Return once the import is accepted")
	return cmd
}

// follow polls the job until it is terminal, drawing a progress bar on a terminal.
func follow(c *config.IVITClient, id string) error {
	var p *progress.Progress
	bar := progress.NewBar(string(importer.StageQueued), 30)
	if common.IsTerminal() {
		p = progress.NewProgress(os.Stdout)
		p.Add(bar)
		defer p.Stop()
	}

	last := importer.Stage("")
	for {
		resp := dto.ImportResponse{}
		if err := common.DoHTTPRequest(c, http.MethodGet, "/import/"+id, nil, &resp); err != nil {
			return fmt.Errorf("failed to read import %s: %w", id, err)
		}
		st := resp.Data
		bar.Set(string(st.Stage), st.Progress)
		if p == nil && st.Stage != last {
			fmt.Printf("%s %.0f%%\n", st.Stage, st.Progress*100)
			last = st.Stage
		}

		switch st.Stage {
		case importer.StageFinished:
			if p != nil {
				p.Stop()
			}
			fmt.Printf("Model %s installed at %s\n", st.ID, st.ModelPath)
			return nil
		case importer.StageFailed:
			if p != nil {
				p.Stop()
			}
			return fmt.Errorf("import %s failed: %s", st.ID, st.Error)
		}
		time.Sleep(pollInterval)
	}
}
