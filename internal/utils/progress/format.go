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

package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
)

func HumanBytes(b int64) string {
	var value float64
	var unit string

	switch {
	case b >= constants.GigaByte:
		value = float64(b) / constants.GigaByte
		unit = "GB"
	case b >= constants.MegaByte:
		value = float64(b) / constants.MegaByte
		unit = "MB"
	case b >= constants.KiloByte:
		value = float64(b) / constants.KiloByte
		unit = "KB"
	default:
		return fmt.Sprintf("%d B", b)
	}

	if value >= 10 || value == math.Trunc(value) {
		return fmt.Sprintf("%d %s", int(value), unit)
	}
	return fmt.Sprintf("%.1f %s", value, unit)
}

// HumanDuration formats d as 1h02m03s, dropping leading zero units.
func HumanDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
