package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srggs/ttywebd/internal/config"
	"github.com/srggs/ttywebd/internal/httpapi"
	"github.com/srggs/ttywebd/internal/session"
	"github.com/srggs/ttywebd/internal/xlog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ttywebd daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	log, err := xlog.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	store := session.NewStore(cfg.Shell, cfg.OrphanTimeout, cfg.ReaperInterval, cfg.MaxSessions, log)
	server := httpapi.New(store, log)

	addr := fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{Handler: server}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("ttywebd listening")
		serveErr <- httpServer.Serve(listener)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	store.Stop()

	return nil
}

// applyFlagOverrides lets explicit command-line flags win over whatever
// config.Load already resolved from defaults, file, and environment.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("shell") {
		cfg.Shell, _ = flags.GetString("shell")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("reaper-interval") {
		cfg.ReaperInterval, _ = flags.GetDuration("reaper-interval")
	}
	if flags.Changed("orphan-timeout") {
		cfg.OrphanTimeout, _ = flags.GetDuration("orphan-timeout")
	}
}
