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
	"bufio"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/process"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

// Marker maps a converter output substring to a fraction of the converting
// stage. A fatal marker aborts the conversion.
type Marker struct {
	Substr   string
	Fraction float64
	Fatal    bool
}

// MarkerTable is the ordered marker set of one converter version. The first
// matching marker wins; lines without a match are ignored.
type MarkerTable struct {
	Version string
	Markers []Marker
}

func (t *MarkerTable) Match(line string) (Marker, bool) {
	for _, mk := range t.Markers {
		if strings.Contains(line, mk.Substr) {
			return mk, true
		}
	}
	return Marker{}, false
}

var TrtexecMarkers = MarkerTable{
	Version: "trtexec-8",
	Markers: []Marker{
		{Substr: "&&&& FAILED", Fatal: true},
		{Substr: "[E] ", Fatal: true},
		{Substr: "Start parsing network model", Fraction: 0.05},
		{Substr: "Finished parsing network model", Fraction: 0.15},
		{Substr: "Local timing cache in use", Fraction: 0.25},
		{Substr: "Total Activation Memory", Fraction: 0.7},
		{Substr: "Engine built in", Fraction: 0.85},
		{Substr: "Created engine with size", Fraction: 0.9},
		{Substr: "&&&& PASSED", Fraction: 1},
	},
}

var ModelOptimizerMarkers = MarkerTable{
	Version: "mo-2022",
	Markers: []Marker{
		{Substr: "[ ERROR ]", Fatal: true},
		{Substr: "Model Optimizer version", Fraction: 0.1},
		{Substr: "[ SUCCESS ] Generated IR version", Fraction: 0.8},
		{Substr: "[ SUCCESS ] XML file", Fraction: 0.9},
		{Substr: "[ SUCCESS ] BIN file", Fraction: 1},
	},
}

// converter turns an onnx file into weights for one framework.
type converter struct {
	exec    string
	markers *MarkerTable
	args    func(in, outDir, name string) []string
	output  func(outDir, name string) string
}

var converters = map[string]converter{
	constants.FrameworkTensorRT: {
		exec:    "trtexec",
		markers: &TrtexecMarkers,
		args: func(in, outDir, name string) []string {
			return []string{"--onnx=" + in, "--saveEngine=" + filepath.Join(outDir, name+".engine")}
		},
		output: func(outDir, name string) string { return filepath.Join(outDir, name+".engine") },
	},
	constants.FrameworkOpenVINO: {
		exec:    "mo",
		markers: &ModelOptimizerMarkers,
		args: func(in, outDir, name string) []string {
			return []string{"--input_model", in, "--output_dir", outDir, "--model_name", name}
		},
		output: func(outDir, name string) string { return filepath.Join(outDir, name+".xml") },
	},
}

// convert runs the converter for framework on the bundle weights and points
// the bundle at the result.
func (m *Manager) convert(ctx context.Context, j *job, b *Bundle, framework string) error {
	conv, ok := converters[framework]
	if !ok {
		return bcode.ErrPlatformMismatch.Messagef("ONNX models can not be converted for %s", framework)
	}
	execPath := conv.exec
	if m.opts.ConverterPath != "" {
		execPath = m.opts.ConverterPath
	}

	name := strings.TrimSuffix(filepath.Base(b.Weights), filepath.Ext(b.Weights))
	args := conv.args(b.Weights, b.Dir, name)

	runCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	pm := process.NewProcessManager("converter-" + j.id)
	if err := pm.Start(runCtx, &process.StartConfig{
		Name:     "converter",
		ExecPath: execPath,
		Args:     args,
		WorkDir:  b.Dir,
		Mode:     process.StartModePipe,
	}); err != nil {
		return bcode.WrapError(bcode.ErrConvert, err)
	}
	defer func() { _ = pm.Stop(context.Background()) }()
	logger.LogicLogger.Info("[Import] Converter started", "job", j.id, "exec", execPath, "markers", conv.markers.Version)

	stdout, stderr := pm.Stdout(), pm.Stderr()
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			_ = pm.Kill()
		case <-stopWatch:
		}
	}()

	var g errgroup.Group
	scan := func(r io.Reader) func() error {
		return func() error {
			if r == nil {
				return nil
			}
			sc := bufio.NewScanner(r)
			sc.Buffer(make([]byte, 64*1024), 1024*1024)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				mk, ok := conv.markers.Match(line)
				if !ok {
					continue
				}
				if mk.Fatal {
					_ = pm.Kill()
					return bcode.ErrConvert.Messagef("Model conversion failed: %s", line)
				}
				j.advance(StageConverting, mk.Fraction, line, m.notify)
			}
			return nil
		}
	}
	g.Go(scan(stdout))
	g.Go(scan(stderr))
	scanErr := g.Wait()
	close(stopWatch)

	switch {
	case scanErr != nil:
		return scanErr
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return bcode.ErrConvert.Messagef("Model conversion timed out after %s", m.opts.Timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	if err := pm.Wait(runCtx); err != nil {
		return bcode.WrapError(bcode.ErrConvert, err)
	}

	out := conv.output(b.Dir, name)
	if !utils.FileExists(out) {
		return bcode.ErrConvert.Messagef("Model conversion failed: %s was not written", filepath.Base(out))
	}
	b.Weights, b.Framework, b.NeedsConvert = out, framework, false
	if framework == constants.FrameworkOpenVINO {
		b.Companions = companionsOf(out)
	}
	return nil
}
