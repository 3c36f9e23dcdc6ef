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

package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

const DefaultJPEGQuality = 80

// FrameSink receives every processed frame of a task. Publish must not block
// the streaming worker for long and reports nothing back.
type FrameSink interface {
	Publish(taskID string, frame *types.Frame, dets []types.Detection)
	// Drop releases whatever the sink holds for a stopped task.
	Drop(taskID string)
}

// MultiSink fans a frame out to several sinks.
type MultiSink []FrameSink

func (m MultiSink) Publish(taskID string, frame *types.Frame, dets []types.Detection) {
	for _, s := range m {
		s.Publish(taskID, frame, dets)
	}
}

func (m MultiSink) Drop(taskID string) {
	for _, s := range m {
		s.Drop(taskID)
	}
}

var palette = []color.RGBA{
	{R: 0, G: 200, B: 0, A: 255},
	{R: 230, G: 40, B: 40, A: 255},
	{R: 40, G: 90, B: 230, A: 255},
	{R: 240, G: 190, B: 0, A: 255},
	{R: 200, G: 0, B: 200, A: 255},
	{R: 0, G: 200, B: 200, A: 255},
}

// ToImage converts an rgb24 frame into an RGBA image.
func ToImage(frame *types.Frame) (*image.RGBA, error) {
	if frame == nil || len(frame.Data) < frame.Width*frame.Height*3 || frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("frame is not a complete rgb24 image")
	}
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i, j := 0, 0; i < frame.Width*frame.Height*3; i, j = i+3, j+4 {
		img.Pix[j] = frame.Data[i]
		img.Pix[j+1] = frame.Data[i+1]
		img.Pix[j+2] = frame.Data[i+2]
		img.Pix[j+3] = 255
	}
	return img, nil
}

// Annotate draws a box per detection, colored by class.
func Annotate(img *image.RGBA, dets []types.Detection) {
	const thickness = 2
	for _, d := range dets {
		idx := d.ClassID % len(palette)
		if idx < 0 {
			idx = 0
		}
		c := &image.Uniform{C: palette[idx]}
		box := image.Rect(d.XMin, d.YMin, d.XMax, d.YMax).Intersect(img.Bounds())
		if box.Empty() {
			continue
		}
		edges := []image.Rectangle{
			image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+thickness),
			image.Rect(box.Min.X, box.Max.Y-thickness, box.Max.X, box.Max.Y),
			image.Rect(box.Min.X, box.Min.Y, box.Min.X+thickness, box.Max.Y),
			image.Rect(box.Max.X-thickness, box.Min.Y, box.Max.X, box.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(img, e.Intersect(box), c, image.Point{}, draw.Src)
		}
	}
}

// EncodeJPEG annotates frame and encodes it.
func EncodeJPEG(frame *types.Frame, dets []types.Detection, quality int) ([]byte, error) {
	img, err := ToImage(frame)
	if err != nil {
		return nil, err
	}
	Annotate(img, dets)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
