package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"graphwatch/internal/adapter"
	"graphwatch/internal/channel"
	"graphwatch/internal/config"
	"graphwatch/internal/handler"
	"graphwatch/internal/hub"
	"graphwatch/internal/incident"
	"graphwatch/internal/lod"
	"graphwatch/internal/logging"
	"graphwatch/internal/metrics"
	"graphwatch/internal/remote"
	"graphwatch/internal/repository/sqlite"
	"graphwatch/internal/service"
	"graphwatch/internal/store"
	"graphwatch/internal/timeline"
	"graphwatch/internal/topology"
	"graphwatch/internal/watcher"

	"golang.org/x/sync/errgroup"
)

const (
	pruneInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "graphwatch: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	cfg.ApplyEnv(os.LookupEnv, logger)
	// env may change the level and format
	logger = logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "path", path, "error", err)
		os.Exit(1)
	}
	if path == "" {
		path = "(defaults)"
	}
	logger.Info("starting graphwatch", "config", path)
	logger.Debug(cfg.Summary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("graphwatch stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("graphwatch stopped")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := metrics.NewRegistry()

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()
	logger.Info("database opened", "path", cfg.Database.Path)

	registry, err := topology.LoadRegistry(cfg.Topology.RegistryPath)
	if err != nil {
		return fmt.Errorf("load agent registry: %w", err)
	}
	fallback, err := topology.Build(registry)
	if err != nil {
		return fmt.Errorf("build default topology: %w", err)
	}

	bus := service.NewEventBus()
	st := store.New(store.Options{Logger: logger, Metrics: store.NewMetrics(reg.Registerer())})
	reconciler := service.NewReconciler(st, bus, logger)
	adapters := adapter.NewRegistry(reconciler.ReconcileGraph, logger)

	policy, err := cfg.LODPolicy()
	if err != nil {
		return err
	}
	engine, err := lod.NewEngine(policy)
	if err != nil {
		return err
	}
	level, err := lod.ParseLevel(cfg.LOD.DefaultLevel)
	if err != nil {
		return err
	}

	var (
		client   *remote.Client
		resolver incident.Resolver
		actions  service.ActionClient
		live     service.LiveChannel
	)
	loaders := []timeline.Loader{timeline.RepositoryLoader{Repo: repo}}

	if cfg.Source.Remote() {
		client, err = remote.New(cfg.API.URL, remote.Options{
			HTTPClient:  &http.Client{Timeout: cfg.API.Timeout.Duration()},
			ActionRate:  cfg.API.ActionRate,
			ActionBurst: cfg.API.ActionBurst,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		resolver, actions = client, client
		loaders = append(loaders, timeline.RemoteLoader{Client: client})

		var src adapter.Adapter = adapter.NewGraphSource(client)
		if cfg.Source == config.SourcePipeline {
			src = adapter.NewPipelineSource(client)
		}
		if err := adapters.Register(src, adapter.AdapterConfig{Enabled: true, Priority: 10}); err != nil {
			return err
		}

		settings := cfg.ChannelSettings()
		live = channel.New(settings, channel.Options{
			Dialer:  channel.NewWebsocketDialer(settings.ConnectTimeout),
			Handler: service.NewSynchroniser(st, bus, logger),
			Poller:  channel.PollerFunc(adapters.Poll),
			Logger:  logger,
			Metrics: channel.NewMetrics(reg.Registerer()),
		})
	} else {
		src := adapter.NewTopologySource(cfg.Topology.RegistryPath)
		if err := adapters.Register(src, adapter.AdapterConfig{Enabled: true}); err != nil {
			return err
		}
	}
	loaders = append(loaders, timeline.Synthesizer{Source: st.Live})

	player := timeline.NewPlayer(
		timeline.ChainLoader{Loaders: loaders, Logger: logger},
		st,
		timeline.Options{
			SampleInterval: cfg.Timeline.SampleInterval.Duration(),
			FrameDuration:  cfg.Timeline.FrameDuration.Duration(),
			Logger:         logger,
		},
	)

	svc, err := service.NewGraphService(service.Deps{
		Store:        st,
		Engine:       engine,
		DefaultLevel: level,
		Player:       player,
		Channel:      live,
		Adapters:     adapters,
		Reconciler:   reconciler,
		Actions:      actions,
		Resolver:     resolver,
		Fallback:     fallback,
		Heads:        registry.Heads(),
		EventBus:     bus,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	events := hub.New(hub.Options{Logger: logger, Metrics: hub.NewMetrics(reg.Registerer())})
	router := handler.NewRouter(handler.Routes{
		Graph:    handler.NewGraphHandler(svc, logger),
		Timeline: handler.NewTimelineHandler(player, logger),
		Events:   events,
		Metrics:  reg.Handler(),
		Logger:   logger,
	})
	server := &http.Server{
		Addr:        cfg.Server.ListenAddr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: /events streams for the life of the client
		IdleTimeout: 60 * time.Second,
	}

	recorder := timeline.NewRecorder(st.Live, repo, cfg.Timeline.RecordInterval.Duration(), nil, logger)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events.Run(ctx)
		return nil
	})
	g.Go(func() error {
		events.Follow(ctx, bus)
		return nil
	})
	g.Go(func() error { return recorder.Run(ctx) })
	g.Go(func() error {
		pruneLoop(ctx, repo, cfg.Timeline.Retention.Duration(), logger)
		return nil
	})
	if !cfg.Source.Remote() && cfg.Topology.RegistryPath != "" {
		w := watcher.New(cfg.Topology.RegistryPath, func() {
			if err := adapters.TriggerSync(ctx, "topology"); err != nil {
				logger.Warn("registry reload failed, keeping the current graph", "error", err)
			}
		}, logger)
		g.Go(func() error {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("registry watcher stopped", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// pruneLoop drops recorded snapshots older than retention every hour
func pruneLoop(ctx context.Context, repo *sqlite.Repository, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		if n, err := repo.PruneBefore(ctx, time.Now().Add(-retention)); err != nil {
			logger.Warn("failed to prune snapshots", "error", err)
		} else if n > 0 {
			logger.Info("pruned snapshots", "count", n, "retention", retention)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

var (
	_ timeline.Display        = (*store.Store)(nil)
	_ timeline.SnapshotSaver  = (*sqlite.Repository)(nil)
	_ timeline.SnapshotLister = (*sqlite.Repository)(nil)
	_ service.LiveChannel     = (*channel.Client)(nil)
)
