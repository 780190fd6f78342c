package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		port  int
		store string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the runtime HTTP and WebSocket surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, store, false, false)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from MAESTRO_PORT or 7777)")
	cmd.Flags().StringVar(&store, "store", "", "Knowledge-store root (default from MAESTRO_STORE or install state)")
	return cmd
}

func upCmd() *cobra.Command {
	var (
		port int
		tui  bool
	)
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Serve the runtime and report as the project agent",
		Long: `Up runs the full runtime like serve, plus a heartbeat writer that
reports this process as the active project's agent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, "", true, tui)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from MAESTRO_PORT or 7777)")
	cmd.Flags().BoolVar(&tui, "tui", false, "Print a live status line while running")
	return cmd
}

func runServe(port int, store string, heartbeat, tui bool) error {
	ctx := context.Background()
	srv, err := server.New(ctx, server.Options{Port: port, StoreRoot: store})
	if err != nil {
		return err
	}
	defer srv.Shutdown(ctx)

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	if heartbeat {
		slug, err := srv.Resolver.ActiveProject(srv.Config.ActiveProjectSlug)
		if err != nil {
			return err
		}
		go heartbeatLoop(hbCtx, srv, slug)
		if tui {
			go statusLoop(hbCtx, srv, slug)
		}
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", srv.Port).Msg("maestro runtime listening")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// heartbeatLoop writes the project heartbeat once per configured interval so
// the command center sees this runtime as fresh.
func heartbeatLoop(ctx context.Context, srv *server.Server, slug string) {
	write := func() {
		hb := models.Heartbeat{
			LoopState: models.LoopIdle,
			Summary:   "runtime online",
		}
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := srv.Fleet.WriteHeartbeat(wctx, slug, hb); err != nil {
			log.Warn().Err(err).Str("project", slug).Msg("heartbeat write failed")
		}
	}
	write()

	ticker := time.NewTicker(srv.Config.Heartbeat.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			write()
		}
	}
}

// statusLoop prints a one-line fleet status to stderr every few seconds.
func statusLoop(ctx context.Context, srv *server.Server, slug string) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb, _ := srv.Fleet.ReadHeartbeat(slug)
			fmt.Fprintf(os.Stderr, "\r[%s] %s  pages=%d workspaces=%d loop=%s",
				time.Now().Format("15:04:05"), slug,
				srv.Loader.CountPages(slug), srv.Loader.CountWorkspaces(slug),
				hb.LoopState)
		}
	}
}
