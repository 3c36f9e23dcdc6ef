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
	"context"
	"errors"
	"image/jpeg"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/process"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

func testFrame(seq uint64) *types.Frame {
	w, h := 32, 24
	return &types.Frame{Seq: seq, Width: w, Height: h, Data: make([]byte, w*h*3)}
}

func TestAnnotateDrawsBox(t *testing.T) {
	img, err := ToImage(testFrame(1))
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	Annotate(img, []types.Detection{{ClassID: 0, XMin: 4, YMin: 4, XMax: 20, YMax: 16}, {ClassID: -1, XMin: 100, YMin: 100, XMax: 120, YMax: 120}})

	edge := img.RGBAAt(10, 4)
	if edge.G != 200 {
		t.Errorf("expected a green edge at (10,4), got %+v", edge)
	}
	inside := img.RGBAAt(10, 10)
	if inside.G != 0 {
		t.Errorf("box interior should stay untouched, got %+v", inside)
	}

	if _, err := ToImage(&types.Frame{Width: 4, Height: 4, Data: make([]byte, 10)}); err == nil {
		t.Error("expected an error for a short frame")
	}
}

func TestLatestFrameSink(t *testing.T) {
	s := NewLatestFrameSink()
	if _, _, err := s.Latest("t1"); !errors.Is(err, bcode.ErrFrameNotReady) {
		t.Fatalf("expected ErrFrameNotReady, got %v", err)
	}

	s.Publish("t1", testFrame(1), nil)
	data, seq, err := s.Latest("t1")
	if err != nil || seq != 1 {
		t.Fatalf("Latest = seq %d, %v", seq, err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("Latest did not return a JPEG: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Publish("t1", testFrame(2), nil)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, seq, err = s.Next(ctx, "t1", 1)
	if err != nil || seq != 2 {
		t.Errorf("Next = seq %d, %v", seq, err)
	}

	s.Drop("t1")
	if _, _, err := s.Latest("t1"); !errors.Is(err, bcode.ErrFrameNotReady) {
		t.Errorf("expected ErrFrameNotReady after Drop, got %v", err)
	}
}

type recordingSink struct {
	published int
	dropped   int
}

func (r *recordingSink) Publish(string, *types.Frame, []types.Detection) { r.published++ }
func (r *recordingSink) Drop(string)                                      { r.dropped++ }

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := MultiSink{a, b}
	m.Publish("t", testFrame(1), nil)
	m.Drop("t")
	if a.published != 1 || b.published != 1 || a.dropped != 1 || b.dropped != 1 {
		t.Errorf("unexpected fan out %+v %+v", a, b)
	}
}

func TestRestreamArgs(t *testing.T) {
	s := NewRestreamSink("", "rtsp://127.0.0.1:8554/")
	if got := s.URL("abc"); got != "rtsp://127.0.0.1:8554/abc" {
		t.Errorf("URL = %s", got)
	}
	args := s.Args("abc", 640, 480)
	if args[len(args)-1] != "rtsp://127.0.0.1:8554/abc" {
		t.Errorf("last arg should be the stream url: %v", args)
	}
	found := false
	for i, a := range args {
		if a == "-s" && args[i+1] == "640x480" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing frame size in %v", args)
	}
}

// idleEncoder stands in for an ffmpeg child that is never fed.
type idleEncoder struct {
	process.ProcessManager
	stops atomic.Int32
}

func (e *idleEncoder) Stdin() io.WriteCloser { return nil }

func (e *idleEncoder) Stop(context.Context) error {
	e.stops.Add(1)
	return nil
}

func (s *RestreamSink) state(taskID string) (starting, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, starting = s.starting[taskID]
	_, running = s.streams[taskID]
	return starting, running
}

func TestRestreamSlowStartDoesNotBlockOthers(t *testing.T) {
	s := NewRestreamSink("", "rtsp://127.0.0.1:8554")
	enc := &idleEncoder{}
	release := make(chan struct{})
	s.launch = func(taskID string, width, height int) (*restream, error) {
		if taskID == "slow" {
			<-release
		}
		return newRestream(enc, width, height), nil
	}

	go s.Publish("slow", testFrame(1), nil)
	deadline := time.Now().Add(2 * time.Second)
	for starting, _ := s.state("slow"); !starting; starting, _ = s.state("slow") {
		if time.Now().After(deadline) {
			t.Fatal("slow encoder never started")
		}
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		s.Publish("fast", testFrame(1), nil)
		s.Publish("slow", testFrame(2), nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish waited for another task's encoder")
	}
	if _, running := s.state("fast"); !running {
		t.Error("fast encoder not registered")
	}

	// a task dropped while its encoder starts does not keep it
	s.Drop("slow")
	close(release)
	deadline = time.Now().Add(2 * time.Second)
	for enc.stops.Load() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stops = %d, want 1", enc.stops.Load())
		}
		time.Sleep(time.Millisecond)
	}
	if starting, running := s.state("slow"); starting || running {
		t.Errorf("dropped task left state: starting=%v running=%v", starting, running)
	}
}
