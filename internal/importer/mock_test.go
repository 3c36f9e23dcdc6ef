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

package importer

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

type MockRegistrar struct {
	mu      sync.Mutex
	records []*types.ModelRecord
	err     error
}

func (r *MockRegistrar) RegisterModel(_ context.Context, rec *types.ModelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *MockRegistrar) registered() []*types.ModelRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.ModelRecord(nil), r.records...)
}

type MockTemplates struct{}

func (MockTemplates) Template(_ context.Context, tag string) (*types.ModelTemplate, error) {
	if tag == "cls" {
		return &types.ModelTemplate{Tag: "cls", InputSize: "3,224,224", Preprocess: "torch", Threshold: 0.7}, nil
	}
	return nil, errors.New("no template")
}

// recorder keeps every status an observer saw, per job.
type recorder struct {
	mu   sync.Mutex
	seen map[string][]Status
}

func (r *recorder) observe(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[string][]Status)
	}
	r.seen[s.ID] = append(r.seen[s.ID], s)
}

func (r *recorder) progress(id string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, 0, len(r.seen[id]))
	for _, s := range r.seen[id] {
		out = append(out, s.Progress)
	}
	return out
}

func (r *recorder) stages(id string) []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, 0, len(r.seen[id]))
	for _, s := range r.seen[id] {
		out = append(out, s.Stage)
	}
	return out
}

type fixture struct {
	m        *Manager
	reg      *MockRegistrar
	rec      *recorder
	workDir  string
	modelDir string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{reg: &MockRegistrar{}, rec: &recorder{}}
	f.workDir = filepath.Join(root, "import")
	f.modelDir = filepath.Join(root, "model")
	opts.WorkDir, opts.ModelDir = f.workDir, f.modelDir
	opts.MinFreeBytes = 1
	opts.Observer = f.rec.observe
	if opts.Platform == "" {
		opts.Platform = "intel"
	}
	if opts.Framework == "" {
		opts.Framework = "openvino"
	}
	f.m = NewManager(f.reg, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.m.Shutdown(ctx)
	})
	return f
}

// wait polls until the job reaches a terminal stage.
func (f *fixture) wait(t *testing.T, id string) *Status {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		s, err := f.m.GetImportStatus(id)
		if err != nil {
			t.Fatalf("GetImportStatus(%s): %v", id, err)
		}
		if s.Stage.Terminal() {
			f.m.mu.RLock()
			j := f.m.jobs[id]
			f.m.mu.RUnlock()
			select {
			case <-j.done:
			case <-time.After(5 * time.Second):
				t.Fatalf("job %s did not clean up", id)
			}
			return s
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

// writeBundle zips files into dir/name.zip and returns the path and its digest.
func writeBundle(t *testing.T, dir, name string, files map[string]string) (string, string) {
	t.Helper()
	path := filepath.Join(dir, name+".zip")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	for n, body := range files {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(raw)
	return path, hex.EncodeToString(sum[:])
}

const clsTrainConfig = `{"tag":"cls","platform":"intel","model_config":{"arch":"resnet","input_shape":[224,224,3]},"train_config":{"datagenerator":{"preprocess_mode":"torch"}}}`

const yoloTrainConfig = `{"platform":"nvidia","anchors":"10, 14, 23, 27, 37, 58","model_config":{"arch":"yolov4","input_shape":[416,416,3]},"train_config":{"datagenerator":{"preprocess_mode":"caffe"}}}`

func openvinoBundle() map[string]string {
	return map[string]string{
		"resnet/model.xml":   "<xml/>",
		"resnet/model.bin":   "weights",
		"resnet/classes.txt": "cat\ndog\n",
		"resnet/train.json":  clsTrainConfig,
	}
}

func isMonotonic(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}
