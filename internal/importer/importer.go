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

// Package importer accepts model bundles, validates them for this device,
// converts them when needed and registers the result as a model.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const (
	DefaultTimeout   = 30 * time.Minute
	DefaultRetention = time.Hour
	DefaultMinFree   = 256 * constants.MegaByte
	bundleFile       = "bundle.zip"
	configExt        = ".json"

	defaultPreprocess = "caffe"
)

// Registrar makes an installed model available to tasks.
type Registrar interface {
	RegisterModel(ctx context.Context, rec *types.ModelRecord) error
}

// TemplateSource returns the model config defaults of a tag.
type TemplateSource interface {
	Template(ctx context.Context, tag string) (*types.ModelTemplate, error)
}

// Observer receives every status change of every job, in order per job.
type Observer func(Status)

type Options struct {
	WorkDir       string
	ModelDir      string
	Platform      string // empty means detect
	Framework     string // empty means the platform's native framework
	ConverterPath string
	Timeout       time.Duration // bound on a converter run
	Retention     time.Duration // how long terminal jobs stay listed
	MinFreeBytes  uint64
	Templates     TemplateSource
	Observer      Observer
}

// Manager runs import jobs, one goroutine per job, keyed by model name.
type Manager struct {
	mu        sync.RWMutex
	jobs      map[string]*job
	observer  Observer
	opts      Options
	registrar Registrar
	http      *resty.Client
}

func NewManager(registrar Registrar, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.MinFreeBytes == 0 {
		opts.MinFreeBytes = DefaultMinFree
	}
	if opts.Platform == "" {
		opts.Platform = utils.DetectPlatform()
	}
	if opts.Framework == "" {
		opts.Framework = utils.PlatformFramework(opts.Platform)
	}
	return &Manager{
		jobs:      make(map[string]*job),
		observer:  opts.Observer,
		opts:      opts,
		registrar: registrar,
		http:      resty.New().SetRetryCount(2).SetRetryWaitTime(time.Second),
	}
}

func (m *Manager) SetObserver(o Observer) {
	m.mu.Lock()
	m.observer = o
	m.mu.Unlock()
}

func (m *Manager) notify(s Status) {
	m.mu.RLock()
	o := m.observer
	m.mu.RUnlock()
	if o != nil {
		o(s)
	}
}

// Framework is the framework imported models are installed for.
func (m *Manager) Framework() string {
	return m.opts.Framework
}

// jobName picks the model name of a request.
func jobName(req Request) (string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		src := req.File
		if req.URL != "" {
			u, err := url.Parse(req.URL)
			if err != nil {
				return "", bcode.WrapError(bcode.ErrImportBadRequest, err)
			}
			src = path.Base(u.Path)
		}
		base := filepath.Base(src)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if name == "" || name == "." || name == ".." || name == "/" || strings.ContainsAny(name, `/\`) {
		return "", bcode.ErrImportBadRequest.Messagef("Invalid model name %q", name)
	}
	return name, nil
}

// StartImport accepts a bundle and returns the job id. The job runs in the
// background; ctx only bounds the admission checks.
func (m *Manager) StartImport(ctx context.Context, req Request) (string, error) {
	if (req.URL == "") == (req.File == "") {
		return "", bcode.ErrImportBadRequest.SetMessage("Exactly one of url and file is required")
	}
	if req.File != "" && !utils.FileExists(req.File) {
		return "", bcode.ErrImportBadRequest.Messagef("Bundle %s not found", req.File)
	}
	id, err := jobName(req)
	if err != nil {
		return "", err
	}
	target := filepath.Join(m.opts.ModelDir, id)
	if err := os.MkdirAll(m.opts.WorkDir, 0o750); err != nil {
		return "", err
	}
	if free, err := utils.SystemDiskFree(m.opts.WorkDir); err == nil && free < m.opts.MinFreeBytes {
		return "", bcode.ErrDiskSpace.Messagef("Not enough disk space, %d bytes free", free)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.pruneLocked()
	if old, ok := m.jobs[id]; ok && !old.terminal() {
		m.mu.Unlock()
		return "", bcode.ErrImportRunning.Messagef("An import job for %s is already running", id)
	}
	// A job turns terminal only after its target exists.
	if _, err := os.Stat(target); err == nil {
		m.mu.Unlock()
		return "", bcode.ErrModelExists.Messagef("Model %s is already installed", id)
	}
	j := newJob(id, req, filepath.Join(m.opts.WorkDir, id), target)
	j.setFramework(m.opts.Framework)
	runCtx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	m.jobs[id] = j
	m.mu.Unlock()

	logger.LogicLogger.Info("[Import] Accepted", "job", id, "url", req.URL, "file", req.File)
	m.notify(j.snapshot())
	go m.run(runCtx, j)
	return id, nil
}

// pruneLocked drops terminal jobs past the retention window.
func (m *Manager) pruneLocked() {
	cutoff := time.Now().Add(-m.opts.Retention)
	for id, j := range m.jobs {
		if s := j.snapshot(); s.Stage.Terminal() && s.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}

// GetImportStatus returns the current status of a job.
func (m *Manager) GetImportStatus(id string) (*Status, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, bcode.ErrImportNotFound.Messagef("Import job %s not found", id)
	}
	s := j.snapshot()
	return &s, nil
}

// List returns every known job ordered by creation time.
func (m *Manager) List() []Status {
	m.mu.Lock()
	m.pruneLocked()
	out := make([]Status, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.snapshot())
	}
	m.mu.Unlock()
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// CancelImport stops a running job and waits for its cleanup. Canceling a
// finished job does nothing.
func (m *Manager) CancelImport(ctx context.Context, id string) error {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return bcode.ErrImportNotFound.Messagef("Import job %s not found", id)
	}
	if j.terminal() {
		return nil
	}
	logger.LogicLogger.Info("[Import] Canceling", "job", id)
	j.cancel()
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every running job and waits for them to clean up.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.RUnlock()
	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) run(ctx context.Context, j *job) {
	defer close(j.done)
	defer j.cancel()
	workDir, target := j.status.WorkDir, j.status.TargetDir
	defer func() {
		if r := recover(); r != nil {
			logger.LogicLogger.Error("[Import] Panic", "job", j.id, "panic", r)
			_ = os.RemoveAll(workDir)
			_ = os.RemoveAll(target)
			j.finish(fmt.Errorf("import panicked: %v", r), "", m.notify)
		}
	}()

	rec, err := m.install(ctx, j)
	_ = os.RemoveAll(workDir)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			err = bcode.ErrImportCanceled.SetMessage("canceled")
		}
		_ = os.RemoveAll(target)
		j.finish(err, "", m.notify)
		return
	}
	j.finish(nil, rec.ModelPath, m.notify)
}

// install walks the bundle through every stage and returns the registered
// model. Nothing exists at the target directory unless it succeeds.
func (m *Manager) install(ctx context.Context, j *job) (*types.ModelRecord, error) {
	workDir, target := j.status.WorkDir, j.status.TargetDir
	_ = os.RemoveAll(workDir)
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, err
	}

	archive := filepath.Join(workDir, bundleFile)
	j.advance(StageDownloading, 0, "downloading", m.notify)
	if err := m.fetch(ctx, j, archive); err != nil {
		return nil, err
	}

	j.advance(StageChecksum, 0, "verifying checksum", m.notify)
	if err := verify(archive, j.req.SHA256); err != nil {
		return nil, err
	}
	j.advance(StageChecksum, 1, "", m.notify)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.advance(StageParsing, 0, "parsing bundle", m.notify)
	stage := filepath.Join(workDir, "bundle")
	files, err := utils.UnzipFile(archive, stage)
	if err != nil {
		return nil, bcode.WrapError(bcode.ErrBundleInvalid, err)
	}
	_ = os.Remove(archive)
	b, err := parseBundle(stage, files)
	if err != nil {
		return nil, err
	}
	if j.req.Tag != "" {
		b.Tag = j.req.Tag
	}
	_, convertible := converters[m.opts.Framework]
	if err := b.checkTarget(m.opts.Platform, m.opts.Framework, convertible); err != nil {
		return nil, err
	}
	j.advance(StageParsing, 1, "", m.notify)

	if b.NeedsConvert {
		j.advance(StageConverting, 0, "converting", m.notify)
		if err := m.convert(ctx, j, b, m.opts.Framework); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := m.materialize(ctx, j.id, b, target)
	if err != nil {
		return nil, err
	}
	if err := m.registrar.RegisterModel(ctx, rec); err != nil {
		_ = os.RemoveAll(target)
		return nil, err
	}
	return rec, nil
}

// modelConfig is the per-model config file written next to the weights.
type modelConfig struct {
	Tag              string    `json:"tag"`
	Framework        string    `json:"framework"`
	ModelPath        string    `json:"model_path"`
	LabelPath        string    `json:"label_path"`
	Device           string    `json:"device"`
	Threshold        float64   `json:"thres"`
	InputSize        string    `json:"input_size"`
	Preprocess       string    `json:"preprocess"`
	Anchors          []float64 `json:"anchors,omitempty"`
	ArchitectureType string    `json:"architecture_type,omitempty"`
}

// materialize writes the model config, then moves weights, labels and config
// into target in one rename.
func (m *Manager) materialize(ctx context.Context, name string, b *Bundle, target string) (*types.ModelRecord, error) {
	out := filepath.Join(filepath.Dir(b.Dir), "model")
	if err := os.MkdirAll(out, 0o750); err != nil {
		return nil, err
	}
	moves := append([]string{b.Weights, b.Labels}, b.Companions...)
	for _, src := range moves {
		if err := utils.MoveFile(src, filepath.Join(out, filepath.Base(src))); err != nil {
			return nil, err
		}
	}

	tpl := &types.ModelTemplate{Tag: b.Tag, Preprocess: defaultPreprocess, Threshold: 0.5}
	if m.opts.Templates != nil {
		if t, err := m.opts.Templates.Template(ctx, b.Tag); err == nil {
			tpl = t
		} else {
			logger.LogicLogger.Warn("[Import] No config template for tag", "tag", b.Tag, "error", err)
		}
	}

	cfg := modelConfig{
		Tag:        b.Tag,
		Framework:  b.Framework,
		ModelPath:  filepath.Join(target, filepath.Base(b.Weights)),
		LabelPath:  filepath.Join(target, filepath.Base(b.Labels)),
		Threshold:  tpl.Threshold,
		InputSize:  firstNonEmpty(b.InputSize, tpl.InputSize),
		Preprocess: b.Preprocess,
		Anchors:    b.Anchors,
	}
	if cfg.Preprocess == "" || cfg.Framework == constants.FrameworkOpenVINO {
		cfg.Preprocess = defaultPreprocess
	}
	if len(b.Anchors) > 0 {
		cfg.ArchitectureType = "yolov4"
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	configName := name + configExt
	if err := os.WriteFile(filepath.Join(out, configName), raw, 0o640); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return nil, err
	}
	if err := os.Rename(out, target); err != nil {
		if err := moveTree(out, target); err != nil {
			return nil, err
		}
	}

	return &types.ModelRecord{
		Name:       name,
		Tag:        cfg.Tag,
		Framework:  cfg.Framework,
		ModelPath:  cfg.ModelPath,
		LabelPath:  cfg.LabelPath,
		ConfigPath: filepath.Join(target, configName),
		InputSize:  cfg.InputSize,
		Preprocess: cfg.Preprocess,
		Anchors:    formatAnchors(cfg.Anchors),
		Status:     "ready",
	}, nil
}

// moveTree moves a flat directory across filesystems through a sibling of
// target, so a partial copy is never visible at target.
func moveTree(src, target string) error {
	partial := target + ".partial"
	_ = os.RemoveAll(partial)
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := utils.MoveFile(filepath.Join(src, e.Name()), filepath.Join(partial, e.Name())); err != nil {
			_ = os.RemoveAll(partial)
			return err
		}
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.RemoveAll(partial)
		return err
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
