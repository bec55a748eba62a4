package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var rebuildOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat, search and index admin HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&rebuildOnStart, "rebuild", false, "Rebuild the chunk index in the background after startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	a.probe(ctx)

	if rebuildOnStart {
		results, err := a.indexer.RebuildAsync(context.WithoutCancel(ctx))
		if err != nil {
			logger.Warn("startup rebuild not started", "error", err)
		} else {
			go func() {
				if res := <-results; res.Err != nil {
					logger.Error("startup rebuild failed", "error", res.Err)
				}
			}()
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.server().Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "llm", a.engine.Provider())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
