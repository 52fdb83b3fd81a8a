// Command supervisord serves the Supervisor HTTP API (spec §4.4/§6): a
// read-mostly JSON projection of the ticket store plus live agent
// container status, and runs the orphan-recovery hook once at startup
// before any agent is presumed to be working.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/madhatter5501/ticketcore/internal/recovery"
	"github.com/madhatter5501/ticketcore/internal/store"
	"github.com/madhatter5501/ticketcore/internal/supervisor"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	dbPath := os.Getenv("TICKET_DB")
	if dbPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		dbPath = store.ResolvePath("", "", cwd)
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	staticRoot := os.Getenv("STATIC_DIR")
	if staticRoot == "" {
		staticRoot = "static"
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Startup connectivity smoke test: a failure here is logged but does
	// not stop the process from serving, matching the original monitor's
	// tolerance of a not-yet-migrated or momentarily-locked database.
	if st, err := store.Open(ctx, dbPath, logger); err != nil {
		logger.Warn("startup database check failed", "db", dbPath, "error", err)
	} else {
		if _, err := recovery.RecoverOrphans(ctx, st); err != nil {
			logger.Warn("orphan recovery failed", "error", err)
		}
		st.Close()
	}

	srv := supervisor.NewServer(dbPath, staticRoot, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("supervisor listening", "port", port, "db", dbPath)
	if err := srv.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("supervisor exited", "error", err)
		os.Exit(1)
	}
}
