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

package engine

import (
	"math"
	"sort"
	"strconv"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

const (
	PreprocessCaffe = "caffe"
	PreprocessTorch = "torch"
	PreprocessTF    = "tf"

	nmsIoU      = 0.45
	maxClassTop = 3
)

var (
	caffeMean = [3]float32{103.939, 116.779, 123.68}
	torchMean = [3]float32{0.485, 0.456, 0.406}
	torchStd  = [3]float32{0.229, 0.224, 0.225}
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

// Preprocess resizes an rgb24 frame to w x h with nearest neighbour sampling and
// returns a planar CHW tensor normalized for mode. caffe models take BGR.
func Preprocess(frame *types.Frame, c, h, w int, mode string) []float32 {
	if c <= 0 {
		c = 3
	}
	out := make([]float32, c*h*w)
	plane := h * w
	for y := 0; y < h; y++ {
		sy := y * frame.Height / h
		for x := 0; x < w; x++ {
			sx := x * frame.Width / w
			src := (sy*frame.Width + sx) * 3
			if src+2 >= len(frame.Data) {
				continue
			}
			rgb := [3]float32{float32(frame.Data[src]), float32(frame.Data[src+1]), float32(frame.Data[src+2])}
			dst := y*w + x
			for ch := 0; ch < c && ch < 3; ch++ {
				out[ch*plane+dst] = normalize(rgb, ch, mode)
			}
		}
	}
	return out
}

func normalize(rgb [3]float32, ch int, mode string) float32 {
	switch mode {
	case PreprocessCaffe:
		// BGR, mean subtracted
		return rgb[2-ch] - caffeMean[ch]
	case PreprocessTorch:
		return (rgb[ch]/255 - torchMean[ch]) / torchStd[ch]
	case PreprocessTF:
		return rgb[ch]/127.5 - 1
	default:
		return rgb[ch] / 255
	}
}

// DecodeClassification returns up to three classes scoring at least the threshold.
// Logits are passed through softmax first.
func DecodeClassification(scores []float64, cfg *Config, frame *types.Frame) []types.Detection {
	probs := scores
	if !isDistribution(scores) {
		probs = softmax(scores)
	}
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	dets := make([]types.Detection, 0, maxClassTop)
	for _, i := range idx {
		if len(dets) == maxClassTop || probs[i] < cfg.Threshold {
			break
		}
		dets = append(dets, types.Detection{
			ClassID: i,
			Label:   cfg.Label(i),
			Score:   probs[i],
			XMax:    frame.Width,
			YMax:    frame.Height,
		})
	}
	return dets
}

func isDistribution(v []float64) bool {
	sum := 0.0
	for _, x := range v {
		if x < 0 || x > 1 {
			return false
		}
		sum += x
	}
	return math.Abs(sum-1) < 1e-3
}

func softmax(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	maxV := v[0]
	for _, x := range v {
		maxV = math.Max(maxV, x)
	}
	sum := 0.0
	for i, x := range v {
		out[i] = math.Exp(x - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// DecodeYOLO reads rows of cx, cy, w, h, objectness, class scores... in network
// input coordinates (or normalized to 1) and maps boxes onto the frame.
func DecodeYOLO(data []float64, rowLen int, cfg *Config, frame *types.Frame) []types.Detection {
	if rowLen < 6 || len(data) < rowLen {
		return []types.Detection{}
	}
	inH, inW := float64(cfg.InputSize[1]), float64(cfg.InputSize[2])
	if inH <= 0 || inW <= 0 {
		inH, inW = float64(frame.Height), float64(frame.Width)
	}

	candidates := make([]types.Detection, 0)
	for off := 0; off+rowLen <= len(data); off += rowLen {
		row := data[off : off+rowLen]
		best, bestScore := 0, 0.0
		for c, s := range row[5:] {
			if s > bestScore {
				best, bestScore = c, s
			}
		}
		score := row[4] * bestScore
		if score < cfg.Threshold {
			continue
		}
		sx, sy := float64(frame.Width)/inW, float64(frame.Height)/inH
		if row[2] <= 1 && row[3] <= 1 {
			sx, sy = float64(frame.Width), float64(frame.Height)
		}
		cx, cy, bw, bh := row[0]*sx, row[1]*sy, row[2]*sx, row[3]*sy
		candidates = append(candidates, types.Detection{
			ClassID: best,
			Label:   cfg.Label(best),
			Score:   score,
			XMin:    clamp(int(cx-bw/2), 0, frame.Width),
			YMin:    clamp(int(cy-bh/2), 0, frame.Height),
			XMax:    clamp(int(cx+bw/2), 0, frame.Width),
			YMax:    clamp(int(cy+bh/2), 0, frame.Height),
		})
	}
	return NMS(candidates, nmsIoU)
}

// NMS keeps the highest scoring box among same-class boxes overlapping above iou.
func NMS(dets []types.Detection, iou float64) []types.Detection {
	sort.SliceStable(dets, func(a, b int) bool { return dets[a].Score > dets[b].Score })
	kept := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		keep := true
		for _, k := range kept {
			if k.ClassID == d.ClassID && IoU(k, d) > iou {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, d)
		}
	}
	return kept
}

func IoU(a, b types.Detection) float64 {
	ix := math.Max(0, float64(min(a.XMax, b.XMax)-max(a.XMin, b.XMin)))
	iy := math.Max(0, float64(min(a.YMax, b.YMax)-max(a.YMin, b.YMin)))
	inter := ix * iy
	union := float64((a.XMax-a.XMin)*(a.YMax-a.YMin)+(b.XMax-b.XMin)*(b.YMax-b.YMin)) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
