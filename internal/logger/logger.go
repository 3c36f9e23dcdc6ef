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

package logger

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/natefinch/lumberjack"
	slogmulti "github.com/samber/slog-multi"
)

const (
	LoggerMaxSize    = 100 // MB per file
	LoggerMaxBackups = 7
	LoggerMaxAge     = 0
	LoggerCompress   = true
)

var loggerNameArray = []string{"logic", "api", "engine", "stream"}

// The loggers discard output until InitLogger runs, so packages can log from tests.
var (
	LogicLogger  = discard()
	ApiLogger    = discard()
	EngineLogger = discard()
	StreamLogger = discard()
)

type LogConfig struct {
	LogLevel string `json:"log_level"`
	LogPath  string `json:"log_path"`
	// Console, when set, also receives the logic and stream records.
	Console slog.Handler `json:"-"`
}

type LogManager struct {
	loggers map[string]*slog.Logger
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func GetLoggerLevel(loggerLevel string) slog.Level {
	switch strings.ToLower(loggerLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func NewLogManager(c LogConfig) *LogManager {
	lm := &LogManager{
		loggers: make(map[string]*slog.Logger),
	}
	for _, name := range loggerNameArray {
		lm.AddLogger(c, name)
	}
	return lm
}

// AddLogger registers a rotating JSON logger writing <LogPath>/<name>.log.
func (lm *LogManager) AddLogger(c LogConfig, name string) {
	rotate := &lumberjack.Logger{
		Filename:   filepath.Join(c.LogPath, name+".log"),
		MaxSize:    LoggerMaxSize,
		MaxBackups: LoggerMaxBackups,
		MaxAge:     LoggerMaxAge,
		Compress:   LoggerCompress,
	}
	var handler slog.Handler = slog.NewJSONHandler(rotate, &slog.HandlerOptions{
		Level: GetLoggerLevel(c.LogLevel),
	})
	if c.Console != nil && (name == "logic" || name == "stream") {
		handler = slogmulti.Fanout(handler, c.Console)
	}
	lm.loggers[name] = slog.New(handler).With("logger", name)
}

func (lm *LogManager) GetLogger(name string) *slog.Logger {
	return lm.loggers[name]
}

func InitLogger(c LogConfig) {
	lm := NewLogManager(c)
	LogicLogger = lm.GetLogger("logic")
	ApiLogger = lm.GetLogger("api")
	EngineLogger = lm.GetLogger("engine")
	StreamLogger = lm.GetLogger("stream")
}

// TaskLogger tags stream records with the task they belong to.
func TaskLogger(taskID string) *slog.Logger {
	return StreamLogger.With("task_id", taskID)
}
