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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/app"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

const (
	DefaultStopTimeout = 5 * time.Second
	DefaultThreshold   = 0.5

	statusInterval = time.Second
)

// Options tune a Manager. Zero values pick the defaults.
type Options struct {
	StopTimeout time.Duration
	TaskDir     string // per task artifacts, removed with the task
	ModelDir    string // imported models, removed with their descriptor
	Catalog     AppCatalog
	Sink        FrameSink
	Observer    StatusObserver
	Load        LoadSampler
}

// Manager is the single source of truth for tasks and their run state.
//
// Lock order: entry.opMu, then at most one of Manager.mu or the model index
// lock. Neither index lock is held while calling into the source pool, which
// calls TaskExists back under its own locks.
type Manager struct {
	store   Store
	sources SourcePool
	engines EngineResolver
	opts    Options

	mu     sync.RWMutex
	tasks  map[string]*taskEntry
	failed map[string]*FailedTask

	modelMu sync.RWMutex
	models  map[string]*types.ModelRecord
}

func NewManager(store Store, sources SourcePool, engines EngineResolver, opts Options) *Manager {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Load == nil {
		opts.Load = func() (float64, float64) {
			load := utils.SystemLoad(0)
			return load.CPU, load.Memory
		}
	}
	return &Manager{
		store:   store,
		sources: sources,
		engines: engines,
		opts:    opts,
		tasks:   make(map[string]*taskEntry),
		failed:  make(map[string]*FailedTask),
		models:  make(map[string]*types.ModelRecord),
	}
}

// Load reads every stored model and task. Tasks that no longer validate are
// kept in the failed list with the reason.
func (m *Manager) Load(ctx context.Context) error {
	models, err := m.store.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	m.modelMu.Lock()
	for _, rec := range models {
		m.models[rec.Name] = rec
	}
	m.modelMu.Unlock()

	records, err := m.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	for _, rec := range records {
		e, err := m.entryFromRecord(ctx, rec)
		m.mu.Lock()
		if err != nil {
			m.failed[rec.ID] = &FailedTask{ID: rec.ID, Name: rec.Name, Error: err.Error()}
			logger.LogicLogger.Warn("[Manager] Task failed to load", "task", rec.ID, "name", rec.Name, "error", err)
		} else {
			m.tasks[rec.ID] = e
		}
		m.mu.Unlock()
	}
	logger.LogicLogger.Info("[Manager] Loaded", "models", len(models), "tasks", len(m.tasks), "failed", len(m.failed))
	return nil
}

func (m *Manager) entryFromRecord(ctx context.Context, rec *types.TaskRecord) (*taskEntry, error) {
	cfg, err := configFromRecord(rec)
	if err != nil {
		return nil, bcode.WrapError(bcode.ErrAppInvalid, err)
	}
	e, err := m.validate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.record.ID = rec.ID
	e.record.CreatedAt = rec.CreatedAt
	return e, nil
}

// validate resolves every descriptor cfg refers to and returns a stopped entry
// without an ID.
func (m *Manager) validate(ctx context.Context, cfg *TaskConfig) (*taskEntry, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Source = strings.TrimSpace(cfg.Source)
	if cfg.Name == "" {
		return nil, bcode.ErrFieldRequired.Messagef("The task name is required")
	}
	if cfg.Source == "" {
		return nil, bcode.ErrFieldRequired.Messagef("The source is required")
	}
	if cfg.ModelName == "" {
		return nil, bcode.ErrFieldRequired.Messagef("The model is required")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, bcode.ErrFieldRequired.Messagef("The threshold must be between 0 and 1, got %v", cfg.Threshold)
	}

	kind, err := types.DetectSourceKind(cfg.Source)
	if err != nil {
		return nil, bcode.ErrSourceInvalid.Messagef("%v", err)
	}
	if (kind == types.SourceFile || kind == types.SourceImage) && !utils.FileExists(cfg.Source) {
		return nil, bcode.ErrSourceInvalid.Messagef("Can't find source (%s)", cfg.Source)
	}

	model, err := m.Model(ctx, cfg.ModelName)
	if err != nil {
		return nil, bcode.ErrModelFileMissing.Messagef("Can't find AI Model (%s)", cfg.ModelName)
	}
	if !utils.FileExists(model.ModelPath) {
		return nil, bcode.ErrModelFileMissing.Messagef("Can't find AI Model (%s)", model.ModelPath)
	}
	if !utils.FileExists(model.LabelPath) {
		return nil, bcode.ErrLabelFileMissing.Messagef("Can't find Label file (%s)", model.LabelPath)
	}
	labels, err := utils.ReadLines(model.LabelPath)
	if err != nil {
		return nil, bcode.ErrLabelFileMissing.Messagef("Can't read Label file (%s): %v", model.LabelPath, err)
	}

	eng, err := m.engines.Resolve(model.Framework)
	if err != nil {
		return nil, bcode.ErrFrameworkUnknown.Messagef("%s: %v", model.Framework, err)
	}

	appCfg := types.ApplicationConfig{Name: types.DefaultApplication}
	if cfg.Application != nil {
		appCfg = *cfg.Application
		if appCfg.Name == "" {
			appCfg.Name = types.DefaultApplication
		}
	}
	if m.opts.Catalog != nil {
		if err := m.opts.Catalog.Validate(ctx, &appCfg, model.Tag); err != nil {
			return nil, err
		}
	}
	if _, err := app.NewProcessor(&appCfg); err != nil {
		return nil, err
	}

	return &taskEntry{
		record: recordFromConfig("", cfg, kind, &appCfg),
		model:  *model,
		kind:   kind,
		app:    appCfg,
		labels: labels,
		engine: eng,
		state:  types.TaskStopped,
	}, nil
}

// nameTakenLocked reports whether another task already uses name. Caller holds m.mu.
func (m *Manager) nameTakenLocked(name, exceptID string) bool {
	for id, e := range m.tasks {
		if id != exceptID && e.record.Name == name {
			return true
		}
	}
	for id, f := range m.failed {
		if id != exceptID && f.Name == name {
			return true
		}
	}
	return false
}

// CreateTask validates cfg and registers a stopped task.
func (m *Manager) CreateTask(ctx context.Context, cfg TaskConfig) (*TaskInfo, error) {
	e, err := m.validate(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.nameTakenLocked(e.record.Name, "") {
		m.mu.Unlock()
		return nil, bcode.ErrTaskNameExists.Messagef("Task %s is already exist", e.record.Name)
	}
	id := utils.ShortID()
	for m.tasks[id] != nil || m.failed[id] != nil {
		id = utils.ShortID()
	}
	e.record.ID = id
	m.tasks[id] = e
	info := e.info()
	m.mu.Unlock()

	if err := m.store.SaveTask(ctx, e.record); err != nil {
		m.mu.Lock()
		delete(m.tasks, id)
		m.mu.Unlock()
		return nil, fmt.Errorf("save task: %w", err)
	}
	logger.LogicLogger.Info("[Manager] Task created", "task", id, "name", e.record.Name, "source", e.record.Source, "model", e.record.ModelName)
	return &info, nil
}

// EditTask replaces the configuration of a task that is not running. A task
// in the failed list is moved to the ready list once its new config validates.
func (m *Manager) EditTask(ctx context.Context, id string, cfg TaskConfig) (*TaskInfo, error) {
	m.mu.RLock()
	e, ok := m.tasks[id]
	oldFailed, failed := m.failed[id]
	m.mu.RUnlock()
	if !ok && !failed {
		return nil, bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
	}
	if ok {
		e.opMu.Lock()
		defer e.opMu.Unlock()
	}

	m.mu.RLock()
	if ok && (e.removed || e.state == types.TaskRunning) {
		removed := e.removed
		m.mu.RUnlock()
		if removed {
			return nil, bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
		}
		return nil, bcode.ErrTaskRunning.Messagef("Task %s is running, stop it before editing", id)
	}
	m.mu.RUnlock()

	next, err := m.validate(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	next.record.ID = id

	m.mu.Lock()
	if m.nameTakenLocked(next.record.Name, id) {
		m.mu.Unlock()
		return nil, bcode.ErrTaskNameExists.Messagef("Task %s is already exist", next.record.Name)
	}
	var prev taskEntry
	if ok {
		next.record.CreatedAt = e.record.CreatedAt
		prev = taskEntry{record: e.record, model: e.model, kind: e.kind, app: e.app, labels: e.labels, engine: e.engine}
		e.record, e.model, e.kind, e.app, e.labels, e.engine = next.record, next.model, next.kind, next.app, next.labels, next.engine
	} else {
		e = next
		m.tasks[id] = e
		delete(m.failed, id)
	}
	info := e.info()
	m.mu.Unlock()

	if err := m.store.SaveTask(ctx, next.record); err != nil {
		m.mu.Lock()
		if ok {
			e.record, e.model, e.kind, e.app, e.labels, e.engine = prev.record, prev.model, prev.kind, prev.app, prev.labels, prev.engine
		} else {
			delete(m.tasks, id)
			m.failed[id] = oldFailed
		}
		m.mu.Unlock()
		return nil, fmt.Errorf("save task: %w", err)
	}
	logger.LogicLogger.Info("[Manager] Task edited", "task", id, "name", next.record.Name)
	return &info, nil
}

// RemoveTask stops the task, then deletes its descriptor and artifacts.
func (m *Manager) RemoveTask(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.failed[id]; ok {
		delete(m.failed, id)
		m.mu.Unlock()
		m.removeArtifacts(id)
		return m.store.DeleteTask(ctx, id)
	}
	e, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()
	if m.isRemoved(e) {
		return bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
	}
	m.stopLocked(e, true)

	m.mu.Lock()
	e.removed = true
	delete(m.tasks, id)
	m.mu.Unlock()

	m.removeArtifacts(id)
	if err := m.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	logger.LogicLogger.Info("[Manager] Task removed", "task", id)
	return nil
}

func (m *Manager) removeArtifacts(id string) {
	if m.opts.TaskDir == "" {
		return
	}
	if err := os.RemoveAll(filepath.Join(m.opts.TaskDir, id)); err != nil {
		logger.LogicLogger.Warn("[Manager] Failed to remove task artifacts", "task", id, "error", err)
	}
}

func (m *Manager) isRemoved(e *taskEntry) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.removed
}

func (m *Manager) lookup(id string) (*taskEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tasks[id]
	if !ok {
		return nil, bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
	}
	return e, nil
}

// TaskExists reports whether id names a registered task.
func (m *Manager) TaskExists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tasks[id]
	return ok
}

func (m *Manager) GetTask(id string) (*TaskInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tasks[id]
	if !ok {
		return nil, bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
	}
	info := e.info()
	return &info, nil
}

// ListTasks returns the ready and failed tasks, each sorted by name.
func (m *Manager) ListTasks() TaskList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := TaskList{Ready: make([]TaskInfo, 0, len(m.tasks)), Failed: make([]FailedTask, 0, len(m.failed))}
	for _, e := range m.tasks {
		list.Ready = append(list.Ready, e.info())
	}
	for _, f := range m.failed {
		list.Failed = append(list.Failed, *f)
	}
	sort.Slice(list.Ready, func(i, j int) bool { return list.Ready[i].Name < list.Ready[j].Name })
	sort.Slice(list.Failed, func(i, j int) bool { return list.Failed[i].Name < list.Failed[j].Name })
	return list
}

// Status returns the latest snapshot published by the worker of a task.
func (m *Manager) Status(id string) (*types.StatusSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tasks[id]
	if !ok {
		return nil, bcode.ErrTaskNotFound.Messagef("Task %s not found", id)
	}
	if e.status == nil {
		return nil, bcode.ErrFrameNotReady.Messagef("Task %s has not published a status yet", id)
	}
	snap := *e.status
	return &snap, nil
}

// ModelTasks maps every model to the IDs of the tasks using it.
func (m *Manager) ModelTasks() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string)
	for id, e := range m.tasks {
		out[e.record.ModelName] = append(out[e.record.ModelName], id)
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}

// AppTasks maps every application to the IDs of the tasks using it.
func (m *Manager) AppTasks() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string)
	for id, e := range m.tasks {
		out[e.app.Name] = append(out[e.app.Name], id)
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}

// ModelApps maps every model to the applications available for its tag.
func (m *Manager) ModelApps(ctx context.Context) (map[string][]string, error) {
	models, err := m.Models(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(models))
	for _, model := range models {
		if m.opts.Catalog == nil {
			out[model.Name] = []string{types.DefaultApplication}
			continue
		}
		apps, err := m.opts.Catalog.ForTag(ctx, model.Tag)
		if err != nil {
			return nil, err
		}
		out[model.Name] = apps
	}
	return out, nil
}

// Labels returns the labels of a task, or of a model when ref is no task ID.
func (m *Manager) Labels(ctx context.Context, ref string) ([]string, error) {
	m.mu.RLock()
	e, ok := m.tasks[ref]
	var labels []string
	if ok {
		labels = append(labels, e.labels...)
	}
	m.mu.RUnlock()
	if ok {
		return labels, nil
	}

	model, err := m.Model(ctx, ref)
	if err != nil {
		return nil, bcode.ErrTaskNotFound.Messagef("No task or model named %s", ref)
	}
	labels, err = utils.ReadLines(model.LabelPath)
	if err != nil {
		return nil, bcode.ErrLabelFileMissing.Messagef("Can't find Label file (%s)", model.LabelPath)
	}
	return labels, nil
}

// Model returns an installed model.
func (m *Manager) Model(ctx context.Context, name string) (*types.ModelRecord, error) {
	m.modelMu.RLock()
	rec, ok := m.models[name]
	m.modelMu.RUnlock()
	if ok {
		cp := *rec
		return &cp, nil
	}
	rec, err := m.store.GetModel(ctx, name)
	if err != nil {
		if errors.Is(err, datastore.ErrRecordNotExist) {
			return nil, bcode.ErrModelNotFound.Messagef("Model %s not found", name)
		}
		return nil, err
	}
	m.modelMu.Lock()
	m.models[name] = rec
	m.modelMu.Unlock()
	cp := *rec
	return &cp, nil
}

// Models lists installed models by name.
func (m *Manager) Models(ctx context.Context) ([]*types.ModelRecord, error) {
	m.modelMu.RLock()
	defer m.modelMu.RUnlock()
	out := make([]*types.ModelRecord, 0, len(m.models))
	for _, rec := range m.models {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RegisterModel installs or replaces a model. Tasks pick it up when they are
// created or edited.
func (m *Manager) RegisterModel(ctx context.Context, rec *types.ModelRecord) error {
	if rec.Name == "" {
		return bcode.ErrFieldRequired.Messagef("The model name is required")
	}
	if _, err := m.engines.Resolve(rec.Framework); err != nil {
		return bcode.ErrFrameworkUnknown.Messagef("%s: %v", rec.Framework, err)
	}
	if err := m.store.SaveModel(ctx, rec); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	cp := *rec
	m.modelMu.Lock()
	m.models[rec.Name] = &cp
	m.modelMu.Unlock()
	logger.LogicLogger.Info("[Manager] Model registered", "model", rec.Name, "framework", rec.Framework, "tag", rec.Tag)
	return nil
}

// RemoveModel deletes a model no task refers to, together with its install
// directory when it was imported.
func (m *Manager) RemoveModel(ctx context.Context, name string) error {
	rec, err := m.Model(ctx, name)
	if err != nil {
		return err
	}
	if ids := m.ModelTasks()[name]; len(ids) > 0 {
		return bcode.ErrModelInUse.Messagef("Model %s is used by %s", name, strings.Join(ids, ", "))
	}
	if err := m.store.DeleteModel(ctx, name); err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	m.modelMu.Lock()
	delete(m.models, name)
	m.modelMu.Unlock()

	if dir := m.installDir(rec); dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			logger.LogicLogger.Warn("[Manager] Failed to remove model files", "model", name, "dir", dir, "error", err)
		}
	}
	logger.LogicLogger.Info("[Manager] Model removed", "model", name)
	return nil
}

// installDir returns <ModelDir>/<name> when the model files live there, and
// "" for models registered from elsewhere.
func (m *Manager) installDir(rec *types.ModelRecord) string {
	if m.opts.ModelDir == "" {
		return ""
	}
	dir := filepath.Join(m.opts.ModelDir, rec.Name)
	rel, err := filepath.Rel(dir, rec.ModelPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return dir
}

// Shutdown stops every running task concurrently.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.tasks))
	for id, e := range m.tasks {
		if e.worker != nil {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return m.StopTask(id)
		})
	}
	err := g.Wait()
	logger.LogicLogger.Info("[Manager] Stopped all tasks", "count", len(ids))
	return err
}
