package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/api"
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/store"
	"github.com/joshharrison/critpath/internal/ui"
)

func serveCmd() *cobra.Command {
	var flagAddr string

	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve the task graph and its analyses over HTTP",
		Long: `Starts an HTTP server over one in-memory task graph. The graph is read
from a project file when given, otherwise from the backend; a project not yet
stored starts empty. POST /save writes it back to the backend.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if cmd.Flags().Changed("addr") {
				cfg.Addr = flagAddr
			}

			backend, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer backend.Close()

			var g *graph.Graph
			if len(args) > 0 {
				f, err := project.Load(args[0])
				if err != nil {
					return err
				}
				if g, err = f.Graph(); err != nil {
					return fmt.Errorf("build task graph: %w", err)
				}
			} else {
				name, err := store.Resolve(ctx, backend, cfg.Project)
				if err != nil {
					return fmt.Errorf("resolve project: %w", err)
				}
				g, err = backend.Load(ctx, name)
				if errors.Is(err, store.ErrProjectNotFound) {
					logger.Warn("project not stored yet, starting empty", "project", name)
					g, err = graph.New(name), nil
				}
				if err != nil {
					return fmt.Errorf("load project: %w", err)
				}
			}

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.NewRouter(g, backend, cpm.EnumerateOptions{MaxResults: cfg.MaxPaths, MaxVisited: cfg.MaxVisited}, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			fmt.Printf("🌐 %s serving %s on %s\n", ui.BoldCyan("critpath:"), ui.Bold(g.Name()), cfg.Addr)
			logger.Info("server started", "addr", cfg.Addr, "tasks", g.Len())

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", ":8080", "Listen address (env CRITPATH_ADDR)")
	return cmd
}
