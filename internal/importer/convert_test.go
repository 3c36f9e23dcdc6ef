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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

// fakeTrtexec prints markers out of order, then writes the engine.
const fakeTrtexec = `#!/bin/sh
for a in "$@"; do
  case "$a" in
    --saveEngine=*) out="${a#--saveEngine=}" ;;
  esac
done
echo "[I] Start parsing network model"
echo "[I] Finished parsing network model"
echo "[I] Start parsing network model" 1>&2
echo "some unrelated line"
echo "[I] Engine built in 1.2 sec."
echo "engine" > "$out"
echo "&&&& PASSED TensorRT.trtexec"
`

const failingTrtexec = `#!/bin/sh
echo "[I] Start parsing network model"
echo "[E] [TRT] ModelImporter.cpp:726: parse error" 1>&2
sleep 30
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trtexec")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func onnxBundle() map[string]string {
	return map[string]string{
		"yolo.onnx":   "onnx",
		"classes.txt": "person\ncar\n",
		"train.json":  yoloTrainConfig,
	}
}

func TestImportConvertsONNX(t *testing.T) {
	f := newFixture(t, Options{
		Platform:      "nvidia",
		Framework:     "tensorrt",
		ConverterPath: writeScript(t, fakeTrtexec),
	})
	bundle, _ := writeBundle(t, t.TempDir(), "yolo", onnxBundle())

	id, err := f.m.StartImport(context.Background(), Request{File: bundle})
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	s := f.wait(t, id)
	if s.Stage != StageFinished {
		t.Fatalf("status = %+v", s)
	}

	recs := f.reg.registered()
	if len(recs) != 1 {
		t.Fatalf("registered %d models", len(recs))
	}
	rec := recs[0]
	if rec.Framework != "tensorrt" || filepath.Base(rec.ModelPath) != "yolo.engine" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Tag != "obj" || rec.Anchors != "10,14,23,27,37,58" || rec.InputSize != "3,416,416" {
		t.Errorf("record = %+v", rec)
	}
	if _, err := os.Stat(rec.ModelPath); err != nil {
		t.Errorf("engine not installed: %v", err)
	}

	progress := f.rec.progress(id)
	if !isMonotonic(progress) {
		t.Errorf("progress went backwards: %v", progress)
	}
	sawConverting := false
	for _, st := range f.rec.stages(id) {
		if st == StageConverting {
			sawConverting = true
		}
	}
	if !sawConverting {
		t.Error("the converting stage was never reported")
	}
}

func TestConvertFatalMarkerAborts(t *testing.T) {
	f := newFixture(t, Options{
		Platform:      "nvidia",
		Framework:     "tensorrt",
		ConverterPath: writeScript(t, failingTrtexec),
	})
	bundle, _ := writeBundle(t, t.TempDir(), "yolo", onnxBundle())

	start := time.Now()
	id, err := f.m.StartImport(context.Background(), Request{File: bundle})
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	s := f.wait(t, id)
	if s.Stage != StageFailed || !strings.Contains(s.Error, "parse error") {
		t.Fatalf("status = %+v", s)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("a fatal marker should not wait for the converter to exit")
	}
	if _, err := os.Stat(filepath.Join(f.modelDir, "yolo")); !os.IsNotExist(err) {
		t.Errorf("target should not exist, got %v", err)
	}
}

func TestONNXWithoutConverter(t *testing.T) {
	f := newFixture(t, Options{Platform: "xilinx", Framework: "vitis-ai"})
	bundle, _ := writeBundle(t, t.TempDir(), "yolo", map[string]string{
		"yolo.onnx":   "onnx",
		"classes.txt": "person\n",
		"train.json":  `{"model_config":{"input_shape":[416,416,3]}}`,
	})
	id, err := f.m.StartImport(context.Background(), Request{File: bundle})
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	s := f.wait(t, id)
	if s.Stage != StageFailed || !strings.Contains(s.Error, "can not be converted") {
		t.Fatalf("status = %+v", s)
	}
}

func TestMarkerTable(t *testing.T) {
	mk, ok := TrtexecMarkers.Match("[08/01/2024-10:00:00] [I] Engine built in 12.3 sec.")
	if !ok || mk.Fraction != 0.85 || mk.Fatal {
		t.Errorf("Match(engine built) = %+v, %v", mk, ok)
	}
	if _, ok := TrtexecMarkers.Match("[I] Loading model"); ok {
		t.Error("unknown lines must not match")
	}
	if mk, ok := TrtexecMarkers.Match("&&&& FAILED TensorRT.trtexec"); !ok || !mk.Fatal {
		t.Errorf("Match(failed) = %+v, %v", mk, ok)
	}
	if mk, ok := ModelOptimizerMarkers.Match("[ ERROR ]  Cannot infer shapes"); !ok || !mk.Fatal {
		t.Errorf("Match(mo error) = %+v, %v", mk, ok)
	}
}

func TestParseBundle(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o640); err != nil {
			t.Fatal(err)
		}
		return p
	}
	files := []string{
		write("yolo.engine", "engine"),
		write("names.txt", "person\n"),
		write("train.json", yoloTrainConfig),
	}
	b, err := parseBundle(dir, files)
	if err != nil {
		t.Fatalf("parseBundle: %v", err)
	}
	if b.Framework != "tensorrt" || b.NeedsConvert || b.Tag != "obj" || b.Preprocess != "caffe" || b.Platform != "nvidia" {
		t.Errorf("bundle = %+v", b)
	}
	if err := b.checkTarget("intel", "openvino", true); !errors.Is(err, bcode.ErrPlatformMismatch) {
		t.Errorf("checkTarget(intel) = %v", err)
	}
	if err := b.checkTarget("nvidia", "tensorrt", true); err != nil {
		t.Errorf("checkTarget(nvidia): %v", err)
	}

	if _, err := parseBundle(dir, files[:1]); !errors.Is(err, bcode.ErrBundleInvalid) {
		t.Errorf("bundle without labels = %v", err)
	}
	xml := write("model.xml", "<xml/>")
	if _, err := parseBundle(dir, []string{xml, files[1], files[2]}); !errors.Is(err, bcode.ErrBundleInvalid) {
		t.Errorf("IR without .bin = %v", err)
	}
}
