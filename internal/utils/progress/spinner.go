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
	"strings"
	"sync/atomic"
	"time"
)

var spinnerParts = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type Spinner struct {
	message atomic.Value
	started time.Time
	stopped atomic.Bool
}

func NewSpinner(message string) *Spinner {
	s := &Spinner{started: time.Now()}
	s.SetMessage(message)
	return s
}

func (s *Spinner) SetMessage(message string) {
	s.message.Store(message)
}

func (s *Spinner) String() string {
	var sb strings.Builder
	if message, ok := s.message.Load().(string); ok && len(message) > 0 {
		sb.WriteString(strings.TrimSpace(message))
		sb.WriteString(" ")
	}
	if !s.stopped.Load() {
		idx := int(time.Since(s.started)/(100*time.Millisecond)) % len(spinnerParts)
		sb.WriteString(spinnerParts[idx])
		sb.WriteString(" ")
	}
	return sb.String()
}

func (s *Spinner) Stop() {
	s.stopped.Store(true)
}

// Bar renders a stage label with a fractional completion bar.
type Bar struct {
	label   atomic.Value
	percent atomic.Uint64
	width   int
}

func NewBar(label string, width int) *Bar {
	if width <= 0 {
		width = 30
	}
	b := &Bar{width: width}
	b.label.Store(label)
	return b
}

// Set updates the label and completion. fraction is clamped to [0, 1].
func (b *Bar) Set(label string, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	b.label.Store(label)
	b.percent.Store(uint64(fraction * 1000))
}

func (b *Bar) String() string {
	permille := b.percent.Load()
	filled := int(permille) * b.width / 1000
	label, _ := b.label.Load().(string)
	return fmt.Sprintf("%-16s [%s%s] %5.1f%%", label,
		strings.Repeat("=", filled), strings.Repeat(" ", b.width-filled), float64(permille)/10)
}
