// Package server provides the public entry point for initializing the
// Maestro runtime.
//
// This package exists in pkg/ (not internal/) so that embedding binaries and
// integration tests can compose the full runtime with overrides:
//
//	srv, err := server.New(ctx, server.Options{StoreRoot: root})
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
//	defer srv.Shutdown(ctx)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/api"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/command"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/config"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fleet"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/knowledge"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/mutator"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/telemetry"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/tools"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/watcher"
)

// Options overrides parts of the environment configuration.
type Options struct {
	Port      int
	StoreRoot string
	// SkipWatcher leaves the filesystem watcher off (one-shot CLI commands).
	SkipWatcher bool
}

// Server holds the composed Maestro runtime.
type Server struct {
	Handler  http.Handler
	Bus      *bus.Bus
	Resolver *resolver.Store
	Loader   *knowledge.Loader
	Mutator  *mutator.Mutator
	Fleet    *fleet.Fleet
	Tools    *tools.Registry
	Config   *config.Config
	Port     int

	// Shutdown stops the watcher, drains the bus and flushes telemetry.
	Shutdown func(context.Context) error
}

// New composes the runtime from environment config plus opts.
func New(ctx context.Context, opts Options) (*Server, error) {
	cfg := config.Load()
	if opts.Port > 0 {
		cfg.Port = opts.Port
	}
	if opts.StoreRoot != "" {
		cfg.StoreRoot = opts.StoreRoot
	}

	root, err := resolveStoreRoot(cfg)
	if err != nil {
		return nil, err
	}

	telemetryShutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	res := resolver.New(root)
	loader := knowledge.NewLoader(res)
	eventBus := bus.New(cfg.Bus.QueueDepth)
	mut := mutator.New(res, eventBus)
	flt := fleet.New(res, eventBus, cfg.Heartbeat.TTL)
	directives := command.NewDirectives(res, eventBus)
	aggregator := command.NewAggregator(flt, loader, directives)
	conversations := command.NewConversations()
	dispatcher := command.NewDispatcher(res, eventBus, flt, directives, loader)

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	registry := tools.NewRegistry(loader, mut, baseURL)

	bg, cancel := context.WithCancel(context.Background())
	aggregator.Watch(bg, eventBus)

	var w *watcher.Watcher
	if !opts.SkipWatcher {
		w, err = watcher.New(res, eventBus, cfg.Debounce())
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Start(bg); err != nil {
			cancel()
			return nil, fmt.Errorf("start watcher: %w", err)
		}
	}

	h := &api.Handlers{
		Resolver:      res,
		Loader:        loader,
		Mutator:       mut,
		Tools:         registry,
		Fleet:         flt,
		Aggregator:    aggregator,
		Directives:    directives,
		Dispatcher:    dispatcher,
		Conversations: conversations,
		Bus:           eventBus,
		Version:       cfg.Version,
	}

	log.Info().Str("store", root).Int("port", cfg.Port).Msg("runtime composed")

	shutdown := func(ctx context.Context) error {
		cancel()
		if w != nil {
			if err := w.Stop(); err != nil {
				log.Warn().Err(err).Msg("watcher stop failed")
			}
		}
		eventBus.Close()
		return telemetryShutdown(ctx)
	}

	return &Server{
		Handler:  api.NewRouter(h),
		Bus:      eventBus,
		Resolver: res,
		Loader:   loader,
		Mutator:  mut,
		Fleet:    flt,
		Tools:    registry,
		Config:   cfg,
		Port:     cfg.Port,
		Shutdown: shutdown,
	}, nil
}

// resolveStoreRoot picks the knowledge-store root: explicit config, then the
// installer's recorded root.
func resolveStoreRoot(cfg *config.Config) (string, error) {
	if cfg.StoreRoot != "" {
		return cfg.StoreRoot, nil
	}
	if st, err := resolver.LoadInstallState(); err == nil && st.StoreRoot != "" {
		return st.StoreRoot, nil
	}
	return "", fault.New(fault.KindNotFound, "no store root: set MAESTRO_STORE or run the installer")
}
