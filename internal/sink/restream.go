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
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/process"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
)

const (
	restreamQueue    = 2
	restreamCooldown = 5 * time.Second
	restreamFPS      = 30
)

type restream struct {
	pm     process.ProcessManager
	width  int
	height int
	frames chan *restreamFrame
	done   chan struct{}
	once   sync.Once
}

type restreamFrame struct {
	frame *types.Frame
	dets  []types.Detection
}

// RestreamSink pushes annotated frames of every task to an RTSP server at
// BaseURL/<taskID> through one ffmpeg encoder per task.
type RestreamSink struct {
	FFmpegPath string
	BaseURL    string

	mu       sync.Mutex
	streams  map[string]*restream
	starting map[string]struct{}
	failed   map[string]time.Time

	launch func(taskID string, width, height int) (*restream, error)
}

func NewRestreamSink(ffmpegPath, baseURL string) *RestreamSink {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	s := &RestreamSink{
		FFmpegPath: ffmpegPath,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		streams:    make(map[string]*restream),
		starting:   make(map[string]struct{}),
		failed:     make(map[string]time.Time),
	}
	s.launch = s.start
	return s
}

// URL is where the stream of a task is published.
func (s *RestreamSink) URL(taskID string) string {
	return s.BaseURL + "/" + taskID
}

// Args returns the encoder command line for a task.
func (s *RestreamSink) Args(taskID string, width, height int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(restreamFPS),
		"-i", "pipe:0",
		"-c:v", "libx264", "-preset", "ultrafast", "-tune", "zerolatency", "-pix_fmt", "yuv420p",
		"-f", "rtsp", "-rtsp_transport", "tcp", s.URL(taskID),
	}
}

// Publish queues an annotated frame for the encoder of taskID, starting one
// on the first frame. Frames arriving while the encoder starts are dropped.
func (s *RestreamSink) Publish(taskID string, frame *types.Frame, dets []types.Detection) {
	if frame == nil {
		return
	}
	s.mu.Lock()
	st, ok := s.streams[taskID]
	if ok && (st.width != frame.Width || st.height != frame.Height) {
		delete(s.streams, taskID)
		go s.stop(st)
		ok = false
	}
	if ok {
		s.mu.Unlock()
	} else if st = s.startUnlocked(taskID, frame.Width, frame.Height); st == nil {
		return
	}

	// Frames are dropped while the encoder is behind.
	select {
	case st.frames <- &restreamFrame{frame: frame, dets: dets}:
	default:
	}
}

// startUnlocked spawns the encoder of taskID without holding s.mu, which it
// expects locked and leaves unlocked. It returns nil if the task is in its
// failure cooldown, is already starting, or was dropped meanwhile.
func (s *RestreamSink) startUnlocked(taskID string, width, height int) *restream {
	if _, busy := s.starting[taskID]; busy {
		s.mu.Unlock()
		return nil
	}
	if t, failed := s.failed[taskID]; failed && time.Since(t) < restreamCooldown {
		s.mu.Unlock()
		return nil
	}
	s.starting[taskID] = struct{}{}
	s.mu.Unlock()

	st, err := s.launch(taskID, width, height)

	s.mu.Lock()
	_, wanted := s.starting[taskID]
	delete(s.starting, taskID)
	switch {
	case err != nil:
		if wanted {
			s.failed[taskID] = time.Now()
		}
		s.mu.Unlock()
		logger.StreamLogger.Warn("Failed to start restream", "task", taskID, "error", err)
		return nil
	case !wanted:
		s.mu.Unlock()
		s.stop(st)
		return nil
	}
	s.streams[taskID] = st
	s.mu.Unlock()
	return st
}

func newRestream(pm process.ProcessManager, width, height int) *restream {
	return &restream{
		pm:     pm,
		width:  width,
		height: height,
		frames: make(chan *restreamFrame, restreamQueue),
		done:   make(chan struct{}),
	}
}

func (s *RestreamSink) start(taskID string, width, height int) (*restream, error) {
	pm := process.NewProcessManager("restream-" + taskID)
	err := pm.Start(context.Background(), &process.StartConfig{
		Name:     "restream-" + taskID,
		ExecPath: s.FFmpegPath,
		Args:     s.Args(taskID, width, height),
		Mode:     process.StartModePipe,
		Stdin:    true,
	})
	if err != nil {
		return nil, err
	}
	st := newRestream(pm, width, height)
	go s.write(taskID, st)
	logger.StreamLogger.Info("Restream started", "task", taskID, "url", s.URL(taskID))
	return st, nil
}

func (s *RestreamSink) write(taskID string, st *restream) {
	stdin := st.pm.Stdin()
	for {
		select {
		case <-st.done:
			return
		case f := <-st.frames:
			img, err := ToImage(f.frame)
			if err != nil {
				continue
			}
			Annotate(img, f.dets)
			if _, err := stdin.Write(img.Pix); err != nil {
				logger.StreamLogger.Warn("Restream encoder went away", "task", taskID, "error", err)
				s.mu.Lock()
				if s.streams[taskID] == st {
					delete(s.streams, taskID)
					s.failed[taskID] = time.Now()
				}
				s.mu.Unlock()
				go s.stop(st)
				return
			}
		}
	}
}

func (s *RestreamSink) stop(st *restream) {
	st.once.Do(func() {
		close(st.done)
		if stdin := st.pm.Stdin(); stdin != nil {
			_ = stdin.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := st.pm.Stop(ctx); err != nil {
			_ = st.pm.Kill()
		}
	})
}

func (s *RestreamSink) Drop(taskID string) {
	s.mu.Lock()
	st, ok := s.streams[taskID]
	delete(s.streams, taskID)
	delete(s.starting, taskID)
	delete(s.failed, taskID)
	s.mu.Unlock()
	if ok {
		s.stop(st)
	}
}

// Close stops every encoder.
func (s *RestreamSink) Close() {
	s.mu.Lock()
	streams := s.streams
	s.streams = make(map[string]*restream)
	s.mu.Unlock()
	for _, st := range streams {
		s.stop(st)
	}
}
