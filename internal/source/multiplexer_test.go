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

package source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

// MockCapture emits a frame every interval until closed or failAfter reads.
type MockCapture struct {
	interval  time.Duration
	failAfter int32
	reads     int32
	closed    chan struct{}
	once      sync.Once
	onClose   func()
}

func (c *MockCapture) Read(ctx context.Context) (*types.Frame, error) {
	n := atomic.AddInt32(&c.reads, 1)
	if c.failAfter > 0 && n > c.failAfter {
		return nil, errors.New("mock read failure")
	}
	select {
	case <-time.After(c.interval):
		return &types.Frame{Width: 4, Height: 2, Data: make([]byte, 24), Timestamp: time.Now()}, nil
	case <-c.closed:
		return nil, errors.New("capture closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *MockCapture) FPS() float64 {
	return 100
}

func (c *MockCapture) Close() error {
	c.once.Do(func() {
		close(c.closed)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}

type MockOpener struct {
	mu        sync.Mutex
	opens     int
	open      int
	failOpen  bool
	failAfter int32
}

func (o *MockOpener) Open(ctx context.Context, locator string, kind types.SourceKind) (Capture, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failOpen {
		return nil, errors.New("mock open failure")
	}
	o.opens++
	o.open++
	return &MockCapture{
		interval:  2 * time.Millisecond,
		failAfter: o.failAfter,
		closed:    make(chan struct{}),
		onClose: func() {
			o.mu.Lock()
			o.open--
			o.mu.Unlock()
		},
	}, nil
}

func (o *MockOpener) Stats() (opens, open int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens, o.open
}

type MockTasks struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (m *MockTasks) TaskExists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[id]
}

func (m *MockTasks) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, id)
}

const rtsp = "rtsp://cam/1"

func TestCaptureOpenIffSubscribed(t *testing.T) {
	opener := &MockOpener{}
	m := NewMultiplexer(opener, WithRetry(1, time.Millisecond))
	ctx := context.Background()

	steps := []struct {
		acquire bool
		task    string
		want    int
	}{
		{true, "a", 1},
		{true, "b", 1},
		{true, "a", 1},
		{false, "a", 1},
		{false, "b", 0},
		{true, "c", 1},
		{false, "c", 0},
		{false, "c", 0},
	}
	for i, s := range steps {
		if s.acquire {
			if _, err := m.Acquire(ctx, rtsp, types.SourceStream, s.task); err != nil {
				t.Fatalf("step %d acquire: %v", i, err)
			}
		} else if err := m.Release(rtsp, s.task, false); err != nil {
			t.Fatalf("step %d release: %v", i, err)
		}
		if _, open := opener.Stats(); open != s.want {
			t.Fatalf("step %d: open captures = %d, want %d", i, open, s.want)
		}
		info, err := m.Info(rtsp)
		if err != nil {
			t.Fatalf("step %d info: %v", i, err)
		}
		if info.Opened != (len(info.Subscribers) > 0) {
			t.Fatalf("step %d: opened=%v with %d subscribers", i, info.Opened, len(info.Subscribers))
		}
	}
	if opens, _ := opener.Stats(); opens != 2 {
		t.Errorf("expected 2 opens in total, got %d", opens)
	}
}

func TestReleaseOfOneSubscriberKeepsSourceHealthy(t *testing.T) {
	opener := &MockOpener{}
	m := NewMultiplexer(opener)
	ctx := context.Background()

	_, _ = m.Acquire(ctx, rtsp, types.SourceStream, "a")
	hb, _ := m.Acquire(ctx, rtsp, types.SourceStream, "b")

	if err := m.Release(rtsp, "a", false); err != nil {
		t.Fatal(err)
	}
	healthy, msg, err := m.HealthOf(rtsp)
	if err != nil || !healthy {
		t.Fatalf("source should stay healthy after A leaves: %v %q %v", healthy, msg, err)
	}
	f1, err := hb.Next(ctx, 0, time.Second)
	if err != nil {
		t.Fatalf("B could not read: %v", err)
	}
	f2, err := hb.Next(ctx, f1.Seq, time.Second)
	if err != nil || f2.Seq <= f1.Seq {
		t.Fatalf("B frames should keep advancing: %v", err)
	}

	_ = m.Release(rtsp, "b", false)
	if _, open := opener.Stats(); open != 0 {
		t.Errorf("capture should be torn down after B leaves")
	}
	if healthy, _, _ := m.HealthOf(rtsp); healthy {
		t.Error("stopped handle should not report healthy")
	}
}

func TestForceReleaseDiscardsHandle(t *testing.T) {
	m := NewMultiplexer(&MockOpener{})
	_, _ = m.Acquire(context.Background(), rtsp, types.SourceStream, "a")
	_ = m.Release(rtsp, "a", true)
	if _, _, err := m.HealthOf(rtsp); !errors.Is(err, bcode.ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("forced release should empty the pool")
	}
}

func TestDiscardReportsOutcome(t *testing.T) {
	opener := &MockOpener{}
	m := NewMultiplexer(opener)
	_, _ = m.Acquire(context.Background(), rtsp, types.SourceStream, "a")

	if m.Discard(rtsp) {
		t.Fatal("a subscribed source was discarded")
	}
	if _, open := opener.Stats(); open != 1 {
		t.Error("refused discard closed the capture")
	}
	_ = m.Release(rtsp, "a", false)
	if !m.Discard(rtsp) {
		t.Fatal("an idle source was kept")
	}
	if m.Discard(rtsp) {
		t.Error("second discard reported success")
	}
	if len(m.List()) != 0 {
		t.Error("discarded source still listed")
	}
}

func TestPruneStaleSubscribers(t *testing.T) {
	opener := &MockOpener{}
	tasks := &MockTasks{ids: map[string]bool{"a": true, "b": true}}
	m := NewMultiplexer(opener)
	m.SetTaskChecker(tasks)
	ctx := context.Background()

	_, _ = m.Acquire(ctx, rtsp, types.SourceStream, "a")
	_, _ = m.Acquire(ctx, rtsp, types.SourceStream, "b")
	tasks.remove("b")

	_ = m.Release(rtsp, "a", false)
	if _, open := opener.Stats(); open != 0 {
		t.Error("b is no longer registered so the capture should close")
	}
}

func TestReloadReopens(t *testing.T) {
	opener := &MockOpener{}
	m := NewMultiplexer(opener)
	ctx := context.Background()

	h, _ := m.Acquire(ctx, rtsp, types.SourceStream, "a")
	gen := h.Generation()
	if _, err := m.Reload(ctx, rtsp, "a"); err != nil {
		t.Fatal(err)
	}
	if h.Generation() == gen {
		t.Error("reload should bump the generation")
	}
	if opens, open := opener.Stats(); opens != 2 || open != 1 {
		t.Errorf("opens=%d open=%d", opens, open)
	}

	// a stale reload for an already replaced generation is a no-op
	if _, err := m.ReloadStale(ctx, rtsp, "a", gen); err != nil {
		t.Fatal(err)
	}
	if opens, _ := opener.Stats(); opens != 2 {
		t.Errorf("stale reload should not reopen, opens=%d", opens)
	}
}

func TestReloadWithCancelledContext(t *testing.T) {
	opener := &MockOpener{}
	m := NewMultiplexer(opener)

	h, _ := m.Acquire(context.Background(), rtsp, types.SourceStream, "a")
	gen := h.Generation()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Reload(ctx, rtsp, "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if opens, open := opener.Stats(); opens != 1 || open != 1 {
		t.Errorf("cancelled reload touched the capture, opens=%d open=%d", opens, open)
	}
	if h.Generation() != gen {
		t.Error("cancelled reload bumped the generation")
	}
	info, err := m.Info(rtsp)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Subscribers) != 1 || info.Subscribers[0] != "a" {
		t.Errorf("subscribers = %v", info.Subscribers)
	}
}

func TestReadFailureMarksError(t *testing.T) {
	opener := &MockOpener{failAfter: 3}
	m := NewMultiplexer(opener)
	ctx := context.Background()

	h, _ := m.Acquire(ctx, "/dev/video0", types.SourceDevice, "a")
	var last uint64
	var err error
	for i := 0; i < 10; i++ {
		var f *types.Frame
		f, err = h.Next(ctx, last, time.Second)
		if err != nil {
			break
		}
		last = f.Seq
	}
	var re *ReadError
	if !errors.As(err, &re) || !errors.Is(err, bcode.ErrSourceRead) {
		t.Fatalf("expected ReadError wrapping ErrSourceRead, got %v", err)
	}
	healthy, msg, _ := m.HealthOf("/dev/video0")
	if healthy || msg == "" {
		t.Errorf("handle should be unhealthy with a message, got %v %q", healthy, msg)
	}
}

func TestOpenFailureLeavesNoCapture(t *testing.T) {
	opener := &MockOpener{failOpen: true}
	m := NewMultiplexer(opener, WithRetry(2, time.Millisecond))
	_, err := m.Acquire(context.Background(), rtsp, types.SourceStream, "a")
	if !bcode.IsCategory(err, bcode.CategorySource) {
		t.Fatalf("expected source error, got %v", err)
	}
	info, _ := m.Info(rtsp)
	if info.Opened || len(info.Subscribers) != 0 || info.Status != StatusError {
		t.Errorf("unexpected handle state %+v", info)
	}
}

func TestAcquireDuringTeardownWaits(t *testing.T) {
	opener := &MockOpener{}
	m := NewMultiplexer(opener)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if _, err := m.Acquire(ctx, rtsp, types.SourceStream, id); err != nil {
				t.Error(err)
				return
			}
			_ = m.Release(rtsp, id, i%3 == 0)
		}(i)
	}
	wg.Wait()
	if _, open := opener.Stats(); open != 0 {
		t.Errorf("all subscribers left, %d captures still open", open)
	}
}

func TestFirstFrameDoesNotSubscribe(t *testing.T) {
	opener := &MockOpener{}
	m := NewMultiplexer(opener)
	f, err := m.FirstFrame(context.Background(), "/data/a.mp4", types.SourceFile)
	if err != nil || f == nil {
		t.Fatalf("first frame: %v", err)
	}
	if _, open := opener.Stats(); open != 0 {
		t.Error("temporary capture should be closed")
	}
	if len(m.List()) != 0 {
		t.Error("first frame should not pool a handle")
	}
}
