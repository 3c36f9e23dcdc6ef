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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MaxChangInnodisk/ivit-i-web-api/config"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/app"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/capture"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/client"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore/jsonds"
	jsondsTemplate "github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore/jsonds/data"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/datastore/sqlite"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/importer"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/logger"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/manager"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/plugin/registry"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/process"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/provider"
	services "github.com/MaxChangInnodisk/ivit-i-web-api/internal/server"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/sink"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/source"
	"github.com/MaxChangInnodisk/ivit-i-web-api/version"
)

const (
	engineHTTPTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	cleanerInterval   = time.Minute
)

// NewApiserverCommand creates the server management command
func NewApiserverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage " + constants.AppName + " server",
		Long:  "Manage " + constants.AppName + " server (start, stop)",
	}

	cmd.AddCommand(
		NewStartApiServerCommand(),
		NewStopApiServerCommand(),
	)

	return cmd
}

// NewServerProcessManager manages the daemon of the configured environment.
func NewServerProcessManager() (*process.ServerProcessManager, error) {
	env := config.GlobalEnvironment
	health := config.Host().JoinPath(constants.AppName, version.SpecVersion, "health").String()
	return process.NewServerProcessManager(env.ConsoleLog, env.DataDir, env.PidFile, health)
}

// NewStartApiServerCommand creates the start server command
func NewStartApiServerCommand() *cobra.Command {
	config.GlobalEnvironment = config.NewIVITEnvironment()
	logger.InitLogger(logger.LogConfig{LogLevel: config.LogLevelWarn, LogPath: config.GlobalEnvironment.LogDir})
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the " + version.IVITName + " service",
		Long:  "Start the " + version.IVITName + " service in the foreground, or detached with -d.",
		RunE: func(cmd *cobra.Command, args []string) error {
			isDaemon, err := cmd.Flags().GetBool("daemon")
			if err != nil {
				return err
			}

			isDebug, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}

			var logLevel string
			if isDebug {
				logLevel = config.LogLevelDebug
				config.GlobalEnvironment.Verbose = config.LogLevelDebug
			} else if isDaemon {
				logLevel = config.LogLevelWarn
			} else {
				logLevel = config.GlobalEnvironment.LogLevel
			}

			config.GlobalEnvironment.LogLevel = logLevel
			config.GlobalEnvironment.SetSlogColor()
			logCfg := logger.LogConfig{LogLevel: logLevel, LogPath: config.GlobalEnvironment.LogDir}
			if !isDaemon {
				logCfg.Console = slog.Default().Handler()
			}
			logger.InitLogger(logCfg)

			if isDaemon {
				spm, err := NewServerProcessManager()
				if err != nil {
					return err
				}
				var extra []string
				if isDebug {
					extra = append(extra, "--verbose")
				}
				if err := spm.StartDaemon(cmd.Context(), extra...); err != nil {
					return err
				}
				_, _ = color.New(color.FgHiGreen).Println(version.IVITName+" service started on", config.GlobalEnvironment.ApiHost)
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx)
		},
	}

	cmd.Flags().BoolP("daemon", "d", false, "Start the server in daemon mode")
	cmd.Flags().BoolP("verbose", "v", false, "Enable debug mode")
	fss := config.GlobalEnvironment.Flags()
	for _, name := range fss.Order {
		cmd.Flags().AddFlagSet(fss.FlagSets[name])
	}
	return cmd
}

// NewStopApiServerCommand creates the stop server command
func NewStopApiServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop daemon server.",
		Long:  "Stop daemon server.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			spm, err := NewServerProcessManager()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := spm.StopDaemon(ctx); err != nil {
				return err
			}
			fmt.Println(version.IVITName + " service stopped")
			return nil
		},
	}
}

// Run wires the task manager, source pool, engines and importer behind the
// HTTP API and serves until ctx is canceled.
func Run(ctx context.Context) error {
	env := config.GlobalEnvironment
	defer config.PrintBanner()()

	// Initialize the datastore
	ds, err := sqlite.New(env.Datastore)
	if err != nil {
		logger.LogicLogger.Error("[Init] Failed to load datastore", "error", err)
		return err
	}
	if err := ds.Init(); err != nil {
		logger.LogicLogger.Error("[Init] Failed to initialize database", "error", err)
		return err
	}
	defer func() { _ = ds.Close() }()
	datastore.SetDefaultDatastore(ds)

	jds := jsonds.NewJSONDatastore(jsondsTemplate.JsonDataStoreFS)
	if err := jds.Init(); err != nil {
		logger.LogicLogger.Error("[Init] Failed to load the application catalog", "error", err)
		return err
	}
	datastore.SetDefaultJsonDatastore(jds)
	catalog := app.NewCatalog(jds)

	// Engines: builtin KServe clients first, then discovered plugins
	base, err := url.Parse(env.EngineURL)
	if err != nil {
		return fmt.Errorf("invalid engine url %q: %w", env.EngineURL, err)
	}
	plugins := registry.NewPluginRegistry(env.PluginDir)
	if err := plugins.DiscoverPlugins(); err != nil {
		logger.EngineLogger.Warn("[Init] Plugin discovery failed", "error", err)
	}
	engines := provider.NewEngineManager(provider.NewCompositeProviderFactory(
		provider.NewBuiltinProviderFactory(base, &http.Client{Timeout: engineHTTPTimeout}, env.EngineGRPC),
		provider.NewPluginProviderFactory(plugins),
	))
	engines.StartKeepAlive(0)

	sources := source.NewMultiplexer(capture.NewFFmpegOpener(env.FFmpegPath),
		source.WithRetry(env.SourceRetry, env.SourceRetryDelay),
	)

	frames := sink.NewLatestFrameSink()
	sinks := sink.MultiSink{frames}
	var restream *sink.RestreamSink
	if env.RestreamURL != "" {
		restream = sink.NewRestreamSink(env.FFmpegPath, env.RestreamURL)
		sinks = append(sinks, restream)
	}

	ws := client.NewWebSocketManager()
	pusher := services.NewPusher(ws)

	mgr := manager.NewManager(manager.NewDatastoreStore(ds), sources, engines, manager.Options{
		StopTimeout: env.StopTimeout,
		TaskDir:     env.TaskDir,
		ModelDir:    env.ModelDir,
		Catalog:     catalog,
		Sink:        sinks,
		Observer:    pusher.TaskStatus,
	})
	sources.SetTaskChecker(mgr)
	if err := mgr.Load(ctx); err != nil {
		logger.LogicLogger.Error("[Init] Failed to load tasks", "error", err)
		return err
	}

	cleaner := manager.NewCleaner(sources, env.SourceIdle)
	cleaner.Start(cleanerInterval)

	imports := importer.NewManager(mgr, importer.Options{
		WorkDir:       env.ImportDir,
		ModelDir:      env.ModelDir,
		Framework:     env.ResolvedFramework(),
		ConverterPath: env.ConverterPath,
		Timeout:       env.ImportTimeout,
		Templates:     catalog,
		Observer:      pusher.ImportStatus,
	})

	core := api.NewIVITCoreServer(
		services.NewTask(mgr),
		services.NewModel(mgr),
		services.NewImport(imports),
		services.NewSystem(sources, catalog, engines, imports.Framework()),
		services.NewHealth(engines),
		frames,
		ws,
	)

	if spm, err := NewServerProcessManager(); err == nil {
		if err := spm.WritePID(); err != nil {
			logger.LogicLogger.Warn("[Run] Failed to write pid file", "error", err)
		}
		defer os.Remove(env.PidFile)
	}

	logger.LogicLogger.Info("[Run] Service ready", "host", env.ApiHost, "framework", imports.Framework())
	_, _ = color.New(color.FgHiGreen).Println(version.IVITName+" service listening on", env.ApiHost)
	runErr := core.Run(ctx, env.ApiHost)
	if runErr != nil {
		logger.LogicLogger.Error("[Run] Failed to run server", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return mgr.Shutdown(shutdownCtx) })
	g.Go(func() error { return imports.Shutdown(shutdownCtx) })
	if err := g.Wait(); err != nil {
		logger.LogicLogger.Warn("[Run] Shutdown incomplete", "error", err)
	}

	cleaner.Stop()
	sources.Close()
	if restream != nil {
		restream.Close()
	}
	engines.StopKeepAlive()
	plugins.Shutdown()
	pusher.Close()
	return runErr
}
