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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const onnxExt = ".onnx"

// weightFrameworks maps a weights extension to the framework that runs it.
var weightFrameworks = map[string]string{
	".xml":    constants.FrameworkOpenVINO,
	".engine": constants.FrameworkTensorRT,
	".trt":    constants.FrameworkTensorRT,
	".xmodel": constants.FrameworkVitis,
}

// companionExts travel with an openvino IR.
var companionExts = []string{".bin", ".mapping"}

var labelNames = []string{"classes.txt", "labels.txt", "label.txt"}

// Bundle is the classified content of an extracted model bundle.
type Bundle struct {
	Dir          string
	Weights      string
	Companions   []string
	Labels       string
	Framework    string
	NeedsConvert bool

	Tag        string
	Platform   string
	InputSize  string
	Preprocess string
	Anchors    []float64
}

// trainConfig is the training descriptor shipped inside a bundle.
type trainConfig struct {
	Tag         string `json:"tag"`
	Platform    string `json:"platform"`
	Anchors     string `json:"anchors"`
	ModelConfig struct {
		Arch       string `json:"arch"`
		InputShape []int  `json:"input_shape"`
	} `json:"model_config"`
	TrainConfig struct {
		DataGenerator struct {
			PreprocessMode string `json:"preprocess_mode"`
		} `json:"datagenerator"`
	} `json:"train_config"`
}

func invalid(format string, args ...interface{}) error {
	return bcode.ErrBundleInvalid.Messagef("Invalid model bundle: "+format, args...)
}

// parseBundle classifies the extracted files of a bundle.
func parseBundle(dir string, files []string) (*Bundle, error) {
	sort.Strings(files)
	b := &Bundle{Dir: dir}

	var onnx, txt, descriptor []string
	for _, f := range files {
		base := strings.ToLower(filepath.Base(f))
		ext := filepath.Ext(base)
		switch {
		case weightFrameworks[ext] != "":
			if b.Weights != "" && b.Framework != weightFrameworks[ext] {
				return nil, invalid("weights for both %s and %s", b.Framework, weightFrameworks[ext])
			}
			if b.Weights == "" {
				b.Weights, b.Framework = f, weightFrameworks[ext]
			}
		case ext == onnxExt:
			onnx = append(onnx, f)
		case ext == ".txt":
			txt = append(txt, f)
			for _, name := range labelNames {
				if base == name && b.Labels == "" {
					b.Labels = f
				}
			}
		case ext == ".json":
			descriptor = append(descriptor, f)
		}
	}

	if b.Weights == "" && len(onnx) > 0 {
		b.Weights, b.NeedsConvert = onnx[0], true
	}
	if b.Weights == "" {
		return nil, invalid("no weights file")
	}
	if b.Labels == "" && len(txt) == 1 {
		b.Labels = txt[0]
	}
	if b.Labels == "" {
		return nil, invalid("no label file")
	}
	if len(descriptor) == 0 {
		return nil, invalid("no train config")
	}

	if b.Framework == constants.FrameworkOpenVINO {
		b.Companions = companionsOf(b.Weights)
		if len(b.Companions) == 0 {
			return nil, invalid("%s has no .bin file", filepath.Base(b.Weights))
		}
	}

	if err := b.readTrainConfig(descriptor[0]); err != nil {
		return nil, err
	}
	return b, nil
}

func companionsOf(weights string) []string {
	stem := strings.TrimSuffix(weights, filepath.Ext(weights))
	out := make([]string, 0, len(companionExts))
	for _, ext := range companionExts {
		if _, err := os.Stat(stem + ext); err == nil {
			out = append(out, stem+ext)
		}
	}
	return out
}

func (b *Bundle) readTrainConfig(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg trainConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return invalid("train config %s: %v", filepath.Base(path), err)
	}

	if shape := cfg.ModelConfig.InputShape; len(shape) == 3 {
		h, w, c := shape[0], shape[1], shape[2]
		b.InputSize = fmt.Sprintf("%d,%d,%d", c, h, w)
	} else if len(shape) != 0 {
		return invalid("input_shape must be [h,w,c], got %v", shape)
	}

	b.Preprocess = cfg.TrainConfig.DataGenerator.PreprocessMode

	if cfg.Anchors != "" {
		anchors, err := parseAnchorList(cfg.Anchors)
		if err != nil {
			return invalid("anchors: %v", err)
		}
		b.Anchors = anchors
	}

	b.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	b.Tag = cfg.Tag
	if b.Tag == "" {
		if len(b.Anchors) > 0 {
			b.Tag = constants.TagObject
		} else {
			b.Tag = constants.TagClassification
		}
	}
	return nil
}

func parseAnchorList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("empty anchor list")
	}
	return out, nil
}

// checkTarget rejects a bundle this device can not run.
func (b *Bundle) checkTarget(platform, framework string, canConvert bool) error {
	if b.Platform != "" && platform != "" && b.Platform != platform {
		return bcode.ErrPlatformMismatch.Messagef("The model is trained for %s but this device is %s", b.Platform, platform)
	}
	if b.NeedsConvert {
		if !canConvert {
			return bcode.ErrPlatformMismatch.Messagef("ONNX models can not be converted for %s", framework)
		}
		return nil
	}
	if b.Framework != framework {
		return bcode.ErrPlatformMismatch.Messagef("The model is built for %s but this device runs %s", b.Framework, framework)
	}
	return nil
}

func formatAnchors(anchors []float64) string {
	parts := make([]string, len(anchors))
	for i, a := range anchors {
		parts[i] = strconv.FormatFloat(a, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
