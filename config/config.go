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

package config

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MatusOllah/slogcolor"
	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/client"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils"
	"github.com/MaxChangInnodisk/ivit-i-web-api/version"
)

const (
	// Log levels
	LogLevelDebug = "debug"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	DefaultLogLevel = "INFO"
	DefaultVerbose  = "info"

	DefaultDatabaseFile = "ivit.db"

	ServerLogFile  = "server.log"
	ConsoleLogFile = "console.log"
	PidFile        = "ivit.pid"

	DefaultTimeFormat = "2006-01-02 15:04:05"

	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"

	// Environment variable keys
	EnvHost             = "IVIT_HOST"
	EnvDataDir          = "IVIT_DATA_DIR"
	EnvLogLevel         = "IVIT_LOG_LEVEL"
	EnvTaskStopTimeout  = "IVIT_TASK_STOP_TIMEOUT"
	EnvSourceRetry      = "IVIT_SOURCE_RETRY"
	EnvSourceRetryDelay = "IVIT_SOURCE_RETRY_DELAY"
	EnvSourceIdle       = "IVIT_SOURCE_IDLE_TIMEOUT"
	EnvFramework        = "IVIT_FRAMEWORK"
	EnvEngineURL        = "IVIT_ENGINE_URL"
	EnvEngineGRPC       = "IVIT_ENGINE_GRPC"
	EnvFFmpeg           = "IVIT_FFMPEG"
	EnvRestreamURL      = "IVIT_RESTREAM_URL"
	EnvConverter        = "IVIT_CONVERTER"
	EnvImportTimeout    = "IVIT_IMPORT_TIMEOUT"
)

var GlobalEnvironment *IVITEnvironment

type IVITEnvironment struct {
	ApiHost     string // listen address of the service
	DataDir     string // root of every persisted asset
	Datastore   string // path to the sqlite database
	Verbose     string // console verbosity: debug, info or warn
	APIVersion  string
	SpecVersion string
	LogDir      string
	LogHTTP     string
	LogLevel    string
	ConsoleLog  string // daemon stdout/stderr
	PidFile     string

	ModelDir  string
	TaskDir   string
	ImportDir string
	PluginDir string

	StopTimeout      time.Duration // join budget for a stopping worker
	SourceRetry      uint          // reopen attempts for recoverable sources
	SourceRetryDelay time.Duration // first backoff step
	SourceIdle       time.Duration // a stopped pooled source is discarded after this
	ImportTimeout    time.Duration // bound on a converter run

	Framework     string // empty means detect from the platform
	EngineURL     string // KServe v2 REST endpoint
	EngineGRPC    string // gRPC health endpoint, optional
	FFmpegPath    string
	RestreamURL   string // rtsp base for the restream sink, optional
	ConverterPath string
}

var (
	once         sync.Once
	envSingleton *IVITEnvironment
)

type IVITClient struct {
	client.Client
}

func NewIVITClient() *IVITClient {
	return &IVITClient{
		Client: *client.NewClient(Host().JoinPath("ivit", version.SpecVersion), http.DefaultClient),
	}
}

// Host returns the scheme and host of the service. It can be configured via IVIT_HOST.
// Default is scheme http and host "127.0.0.1:819"
func Host() *url.URL {
	defaultPort := constants.DefaultHTTPPort

	s := strings.TrimSpace(Var(EnvHost))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = ProtocolHTTP, s
	case scheme == ProtocolHTTP:
		defaultPort = constants.DefaultHTTPPort80
	case scheme == ProtocolHTTPS:
		defaultPort = constants.DefaultHTTPSPort
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = constants.DefaultHost, defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}
	if host == constants.DefaultListenHost {
		host = constants.DefaultHost
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// Var returns an environment variable stripped of leading and trailing quotes or spaces
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

func durationVar(key string, def time.Duration) time.Duration {
	s := Var(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration, using default", "key", key, "value", s, "default", def)
		return def
	}
	return d
}

func uintVar(key string, def uint) uint {
	s := Var(key)
	if s == "" {
		return def
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		slog.Warn("Invalid count, using default", "key", key, "value", s, "default", def)
		return def
	}
	return uint(n)
}

func stringVar(key, def string) string {
	if s := Var(key); s != "" {
		return s
	}
	return def
}

func NewIVITEnvironment() *IVITEnvironment {
	once.Do(func() {
		env := IVITEnvironment{
			ApiHost:          stringVar(EnvHost, constants.DefaultListenHost+":"+constants.DefaultHTTPPort),
			Verbose:          DefaultVerbose,
			LogLevel:         stringVar(EnvLogLevel, DefaultLogLevel),
			APIVersion:       version.IVITVersion,
			SpecVersion:      version.SpecVersion,
			StopTimeout:      durationVar(EnvTaskStopTimeout, 5*time.Second),
			SourceRetry:      uintVar(EnvSourceRetry, 3),
			SourceRetryDelay: durationVar(EnvSourceRetryDelay, time.Second),
			SourceIdle:       durationVar(EnvSourceIdle, 5*time.Minute),
			ImportTimeout:    durationVar(EnvImportTimeout, 30*time.Minute),
			Framework:        Var(EnvFramework),
			EngineURL:        stringVar(EnvEngineURL, "http://127.0.0.1:8000"),
			EngineGRPC:       Var(EnvEngineGRPC),
			FFmpegPath:       stringVar(EnvFFmpeg, "ffmpeg"),
			RestreamURL:      Var(EnvRestreamURL),
			ConverterPath:    Var(EnvConverter),
		}
		if strings.Contains(env.ApiHost, "://") {
			env.ApiHost = Host().Host
		}

		env.DataDir = Var(EnvDataDir)
		if env.DataDir == "" {
			var err error
			env.DataDir, err = utils.GetDataDir()
			if err != nil {
				panic("[Init Env] get data dir failed: " + err.Error())
			}
		}
		env.Datastore = filepath.Join(env.DataDir, DefaultDatabaseFile)
		env.LogDir = filepath.Join(env.DataDir, constants.LogsDirectory)
		env.LogHTTP = filepath.Join(env.LogDir, ServerLogFile)
		env.ConsoleLog = filepath.Join(env.LogDir, ConsoleLogFile)
		env.PidFile = filepath.Join(env.DataDir, PidFile)
		env.ModelDir = filepath.Join(env.DataDir, constants.ModelDirectory)
		env.TaskDir = filepath.Join(env.DataDir, constants.TaskDirectory)
		env.ImportDir = filepath.Join(env.DataDir, constants.ImportDirectory)
		env.PluginDir = filepath.Join(env.DataDir, constants.PluginDirectory)
		for _, dir := range []string{env.LogDir, env.ModelDir, env.TaskDir, env.ImportDir, env.PluginDir} {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				panic("[Init Env] create path " + dir + ": " + err.Error())
			}
		}

		envSingleton = &env
	})
	return envSingleton
}

// ResolvedFramework returns the configured framework, or the platform's native one.
func (s *IVITEnvironment) ResolvedFramework() string {
	if s.Framework != "" {
		return s.Framework
	}
	return utils.PlatformFramework(utils.DetectPlatform())
}

// FlagSets Define a struct to hold the flag sets and their order
type FlagSets struct {
	Order    []string
	FlagSets map[string]*pflag.FlagSet
}

func NewFlagSets() *FlagSets {
	return &FlagSets{
		Order:    []string{},
		FlagSets: make(map[string]*pflag.FlagSet),
	}
}

// GetFlagSet Get the flag set by name, creating it if it doesn't exist
func (fs *FlagSets) GetFlagSet(name string) *pflag.FlagSet {
	if _, exists := fs.FlagSets[name]; !exists {
		fs.FlagSets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		fs.Order = append(fs.Order, name)
	}
	return fs.FlagSets[name]
}

// Flags returns the flag sets for the server command.
func (s *IVITEnvironment) Flags() *FlagSets {
	fss := NewFlagSets()
	fs := fss.GetFlagSet("generic")
	fs.StringVar(&s.ApiHost, "app-host", s.ApiHost, "API listen address")
	fs.StringVar(&s.Verbose, "console-level", s.Verbose, "Console log verbosity level")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "File log level")

	engine := fss.GetFlagSet("engine")
	engine.StringVar(&s.Framework, "framework", s.Framework, "Inference framework (tensorrt, openvino, vitis-ai); empty detects from the platform")
	engine.StringVar(&s.EngineURL, "engine-url", s.EngineURL, "KServe v2 REST endpoint of the inference server")
	engine.StringVar(&s.EngineGRPC, "engine-grpc", s.EngineGRPC, "gRPC health endpoint of the inference server")

	stream := fss.GetFlagSet("stream")
	stream.StringVar(&s.FFmpegPath, "ffmpeg", s.FFmpegPath, "Path to the ffmpeg binary")
	stream.StringVar(&s.RestreamURL, "restream-url", s.RestreamURL, "RTSP base url for restreaming annotated frames")
	stream.DurationVar(&s.StopTimeout, "stop-timeout", s.StopTimeout, "Time to wait for a task worker to stop")
	stream.UintVar(&s.SourceRetry, "source-retry", s.SourceRetry, "Reopen attempts for stream and file sources")
	stream.DurationVar(&s.SourceRetryDelay, "source-retry-delay", s.SourceRetryDelay, "First reopen backoff step")
	stream.DurationVar(&s.SourceIdle, "source-idle-timeout", s.SourceIdle, "Discard a stopped source after this idle time")
	return fss
}

func (s *IVITEnvironment) SetSlogColor() {
	opts := slogcolor.DefaultOptions
	switch s.Verbose {
	case LogLevelDebug:
		opts.Level = slog.LevelDebug
	case LogLevelWarn:
		opts.Level = slog.LevelWarn
	case LogLevelError:
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}
	opts.SrcFileMode = slogcolor.Nop
	opts.MsgColor = color.New(color.FgHiYellow)

	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))
}

// PrintBanner announces a server start and returns the matching stop announcement.
func PrintBanner() func() {
	_, _ = color.New(color.FgHiCyan).Println(">>>>>> " + version.IVITName + " Service Starting : " + time.Now().Format(DefaultTimeFormat) + "\n")
	return func() {
		_, _ = color.New(color.FgHiGreen).Println("\n<<<<<< " + version.IVITName + " Service Stopped : " + time.Now().Format(DefaultTimeFormat))
	}
}
