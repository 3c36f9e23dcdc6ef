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

package manager

import (
	"context"
	"testing"
	"time"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
)

func TestCleanerDiscardsIdleSources(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	id := f.create("door", camera)
	if _, err := f.m.RunTask(ctx, id); err != nil {
		t.Fatal(err)
	}

	cleaner := NewCleaner(f.sources, time.Millisecond)
	if got := cleaner.ForceCleanup(); len(got) != 0 {
		t.Fatalf("a source in use was discarded: %v", got)
	}

	if err := f.m.StopTask(id); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sources.Info(camera); err != nil {
		t.Fatalf("a stopped source should stay pooled: %v", err)
	}

	// the first sweep only marks the source idle
	if got := cleaner.ForceCleanup(); len(got) != 0 {
		t.Fatalf("discarded on first sight: %v", got)
	}
	time.Sleep(5 * time.Millisecond)
	got := cleaner.ForceCleanup()
	if len(got) != 1 || got[0] != camera {
		t.Fatalf("expected %s to be discarded, got %v", camera, got)
	}
	if _, err := f.sources.Info(camera); err == nil {
		t.Error("source still pooled")
	}
}

// racingPool lists a source as idle but finds it subscribed again on discard.
type racingPool struct {
	discards int
}

func (p *racingPool) List() []source.HandleInfo {
	return []source.HandleInfo{{Locator: camera}}
}

func (p *racingPool) Discard(locator string) bool {
	p.discards++
	return false
}

func TestCleanerSkipsSourceAcquiredAfterList(t *testing.T) {
	pool := &racingPool{}
	cleaner := NewCleaner(pool, time.Millisecond)
	_ = cleaner.ForceCleanup()
	time.Sleep(5 * time.Millisecond)
	if got := cleaner.ForceCleanup(); len(got) != 0 {
		t.Errorf("reported a source that was kept: %v", got)
	}
	if pool.discards != 1 {
		t.Errorf("discards = %d, want 1", pool.discards)
	}
	// the kept source starts a fresh idle period
	if got := cleaner.ForceCleanup(); len(got) != 0 || pool.discards != 1 {
		t.Errorf("idle period not reset: %v, discards=%d", got, pool.discards)
	}
}

func TestCleanerStartStop(t *testing.T) {
	cleaner := NewCleaner(nil, 0)
	if cleaner.IsStarted() {
		t.Error("Cleaner should not be started initially")
	}
	cleaner.Start(time.Hour)
	if !cleaner.IsStarted() {
		t.Error("Cleaner should be started after Start()")
	}
	stats := cleaner.GetStats()
	if stats["idle_timeout"] != (5 * time.Minute).String() {
		t.Errorf("unexpected stats %v", stats)
	}
	cleaner.Stop()
	cleaner.Stop()
	if cleaner.IsStarted() {
		t.Error("Cleaner should be stopped")
	}
}
