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

package app

import (
	"errors"
	"fmt"
	"time"

	jsonata "github.com/blues/jsonata-go"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

// Output is the post-processed result of one frame.
type Output struct {
	Detections []types.Detection `json:"detections"`
	Areas      [][][2]int        `json:"areas,omitempty"`
	// Event is the value of the logic expression, nil when it has none.
	Event interface{} `json:"event,omitempty"`
}

// Processor applies a task's application config to inference results.
// A Processor is used by a single worker and is not safe for concurrent use.
type Processor struct {
	cfg     types.ApplicationConfig
	depends map[string]bool
	logic   *jsonata.Expr
}

// NewProcessor validates cfg and compiles its logic expression.
func NewProcessor(cfg *types.ApplicationConfig) (*Processor, error) {
	if cfg == nil {
		cfg = &types.ApplicationConfig{Name: types.DefaultApplication}
	}
	p := &Processor{cfg: *cfg}

	for i, area := range cfg.AreaPoints {
		if len(area) < 3 {
			return nil, bcode.WrapError(bcode.ErrAppInvalid, fmt.Errorf("area %d needs at least 3 points, got %d", i, len(area)))
		}
	}
	if len(cfg.DependOn) > 0 {
		p.depends = make(map[string]bool, len(cfg.DependOn))
		for _, label := range cfg.DependOn {
			p.depends[label] = true
		}
	}
	if cfg.Logic != "" {
		expr, err := jsonata.Compile(cfg.Logic)
		if err != nil {
			return nil, bcode.WrapError(bcode.ErrAppInvalid, fmt.Errorf("invalid logic: %w", err))
		}
		p.logic = expr
	}
	return p, nil
}

func (p *Processor) Name() string {
	return p.cfg.Name
}

// Process filters the detections by label and area, then evaluates the logic
// expression over what is left.
func (p *Processor) Process(frame *types.Frame, result *types.InferenceResult) (*Output, error) {
	out := &Output{Areas: p.cfg.AreaPoints, Detections: make([]types.Detection, 0)}
	if result == nil {
		return out, nil
	}
	for _, det := range result.Detections {
		if p.depends != nil && !p.depends[det.Label] {
			continue
		}
		if len(p.cfg.AreaPoints) > 0 && !inAnyArea(det, p.cfg.AreaPoints) {
			continue
		}
		out.Detections = append(out.Detections, det)
	}

	if p.logic == nil {
		return out, nil
	}
	event, err := p.logic.Eval(logicInput(frame, out.Detections))
	if err != nil && !errors.Is(err, jsonata.ErrUndefined) {
		return out, bcode.WrapError(bcode.ErrAppInvalid, fmt.Errorf("logic evaluation failed: %w", err))
	}
	out.Event = event
	return out, nil
}

// logicInput is the document logic expressions are evaluated against.
func logicInput(frame *types.Frame, dets []types.Detection) map[string]interface{} {
	counts := make(map[string]interface{})
	items := make([]interface{}, 0, len(dets))
	for _, d := range dets {
		n, _ := counts[d.Label].(float64)
		counts[d.Label] = n + 1
		items = append(items, map[string]interface{}{
			"label": d.Label,
			"score": d.Score,
			"xmin":  float64(d.XMin),
			"ymin":  float64(d.YMin),
			"xmax":  float64(d.XMax),
			"ymax":  float64(d.YMax),
		})
	}
	doc := map[string]interface{}{
		"detections": items,
		"count":      float64(len(dets)),
		"labels":     counts,
	}
	if frame != nil {
		doc["seq"] = float64(frame.Seq)
		doc["width"] = float64(frame.Width)
		doc["height"] = float64(frame.Height)
		doc["timestamp"] = frame.Timestamp.Format(time.RFC3339)
	}
	return doc
}

func inAnyArea(det types.Detection, areas [][][2]int) bool {
	cx := float64(det.XMin+det.XMax) / 2
	cy := float64(det.YMin+det.YMax) / 2
	for _, area := range areas {
		if pointInPolygon(cx, cy, area) {
			return true
		}
	}
	return false
}

// pointInPolygon is the even-odd ray casting test.
func pointInPolygon(x, y float64, poly [][2]int) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := float64(poly[i][0]), float64(poly[i][1])
		xj, yj := float64(poly[j][0]), float64(poly[j][1])
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
