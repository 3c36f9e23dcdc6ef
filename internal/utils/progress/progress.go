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
	"io"
	"sync"
	"time"
)

// State is one rendered line of a Progress.
type State interface {
	String() string
}

// Progress redraws its states in place every 100ms until stopped.
type Progress struct {
	mu sync.Mutex
	w  io.Writer

	pos    int
	states []State

	ticker *time.Ticker
	done   chan struct{}
}

func NewProgress(w io.Writer) *Progress {
	p := &Progress{
		w:      w,
		ticker: time.NewTicker(100 * time.Millisecond),
		done:   make(chan struct{}),
	}
	go p.start()
	return p
}

func (p *Progress) Add(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
}

// Stop renders the final frame and leaves it on screen.
func (p *Progress) Stop() bool {
	stopped := p.stop()
	if stopped {
		fmt.Fprint(p.w, "\n")
	}
	return stopped
}

func (p *Progress) stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker == nil {
		return false
	}
	for _, state := range p.states {
		if spinner, ok := state.(*Spinner); ok {
			spinner.Stop()
		}
	}
	p.ticker.Stop()
	p.ticker = nil
	close(p.done)
	p.render()
	return true
}

func (p *Progress) render() {
	fmt.Fprint(p.w, "\033[?25l")
	defer fmt.Fprint(p.w, "\033[?25h")
	for i := 0; i < p.pos; i++ {
		if i > 0 {
			fmt.Fprint(p.w, "\033[A")
		}
		fmt.Fprint(p.w, "\033[2K\033[1G")
	}
	for i, state := range p.states {
		fmt.Fprint(p.w, state.String())
		if i < len(p.states)-1 {
			fmt.Fprint(p.w, "\n")
		}
	}
	p.pos = len(p.states)
}

func (p *Progress) start() {
	ticker := p.ticker
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.ticker != nil {
				p.render()
			}
			p.mu.Unlock()
		}
	}
}
