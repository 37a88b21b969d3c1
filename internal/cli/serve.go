package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/vitrine"
	"github.com/aretw0/vitrine/internal/config"
	httpAdapter "github.com/aretw0/vitrine/pkg/adapters/http"
	"github.com/aretw0/vitrine/pkg/adapters/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Serve runs a session for target and exposes it over the HTTP control API
// on cfg.HTTPAddr until ctx ends.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger, t Target) error {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	manager := backend.Manager(logger)
	reg := newRegistry()
	client, err := openClient(ctx, cfg, logger, t, manager, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpAdapter.NewHandler(manager,
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithVersion(vitrine.Version),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("Control API listening", "address", srv.Addr, "session_id", client.ID())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Transports accepted by MCP.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// MCP runs a session for target and exposes it as an MCP server.
func MCP(ctx context.Context, cfg config.Config, logger *slog.Logger, t Target, transport string) error {
	if transport != TransportStdio && transport != TransportSSE {
		return fmt.Errorf("unknown transport %q (supported: %s, %s)", transport, TransportStdio, TransportSSE)
	}

	backend, err := OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	manager := backend.Manager(logger)
	client, err := openClient(ctx, cfg, logger, t, manager, nil)
	if err != nil {
		return err
	}
	srv := mcp.NewServer(manager, vitrine.Version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx)
	})
	g.Go(func() error {
		if transport == TransportSSE {
			logger.Info("Starting MCP server (SSE)", "port", cfg.MCPPort)
			return srv.ServeSSE(ctx, cfg.MCPPort)
		}

		logger.Info("Starting MCP server (stdio)")
		done := make(chan error, 1)
		go func() { done <- srv.ServeStdio() }()
		select {
		case err := <-done:
			// stdin closed: the client went away.
			cancel()
			return err
		case <-ctx.Done():
			return nil
		}
	})
	return g.Wait()
}
