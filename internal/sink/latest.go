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
	"context"
	"sync"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

type latest struct {
	frame *types.Frame
	dets  []types.Detection
	seq   uint64
	jpeg  []byte // encoded lazily for seq
	ready chan struct{}
}

// LatestFrameSink keeps the newest frame of each task and encodes it to JPEG
// only when somebody asks for it.
type LatestFrameSink struct {
	mu      sync.Mutex
	tasks   map[string]*latest
	quality int
}

func NewLatestFrameSink() *LatestFrameSink {
	return &LatestFrameSink{tasks: make(map[string]*latest), quality: DefaultJPEGQuality}
}

func (s *LatestFrameSink) entry(taskID string) *latest {
	l, ok := s.tasks[taskID]
	if !ok {
		l = &latest{ready: make(chan struct{})}
		s.tasks[taskID] = l
	}
	return l
}

func (s *LatestFrameSink) Publish(taskID string, frame *types.Frame, dets []types.Detection) {
	if frame == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.entry(taskID)
	l.frame, l.dets, l.jpeg = frame, dets, nil
	l.seq++
	close(l.ready)
	l.ready = make(chan struct{})
}

func (s *LatestFrameSink) Drop(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.tasks[taskID]; ok {
		close(l.ready)
		delete(s.tasks, taskID)
	}
}

// Latest returns the newest annotated JPEG of a task and its sequence number.
func (s *LatestFrameSink) Latest(taskID string) ([]byte, uint64, error) {
	s.mu.Lock()
	l, ok := s.tasks[taskID]
	if !ok || l.frame == nil {
		s.mu.Unlock()
		return nil, 0, bcode.ErrFrameNotReady
	}
	if l.jpeg != nil {
		data, seq := l.jpeg, l.seq
		s.mu.Unlock()
		return data, seq, nil
	}
	frame, dets, seq := l.frame, l.dets, l.seq
	s.mu.Unlock()

	data, err := EncodeJPEG(frame, dets, s.quality)
	if err != nil {
		return nil, 0, bcode.WrapError(bcode.ErrFrameNotReady, err)
	}

	s.mu.Lock()
	if cur, ok := s.tasks[taskID]; ok && cur.seq == seq {
		cur.jpeg = data
	}
	s.mu.Unlock()
	return data, seq, nil
}

// Next blocks until a frame newer than after is published and returns it.
func (s *LatestFrameSink) Next(ctx context.Context, taskID string, after uint64) ([]byte, uint64, error) {
	for {
		s.mu.Lock()
		l := s.entry(taskID)
		seq, ready := l.seq, l.ready
		s.mu.Unlock()

		if seq > after {
			data, got, err := s.Latest(taskID)
			if err == nil {
				return data, got, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-ready:
		}
	}
}
