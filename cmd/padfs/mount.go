// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/padfs/lib/metrics"
	"github.com/bureau-foundation/padfs/lib/version"
	"github.com/bureau-foundation/padfs/lib/vfsfuse"
	"github.com/bureau-foundation/padfs/lib/workspace"
)

// shutdownTimeout bounds the final flush of pending writes.
const shutdownTimeout = 30 * time.Second

func mountCmd(args []string) error {
	var (
		common     commonFlags
		mountpoint string
		allowOther bool
	)
	flagSet := pflag.NewFlagSet("padfs mount", pflag.ContinueOnError)
	common.add(flagSet)
	flagSet.StringVar(&mountpoint, "mountpoint", "", "mount directory (default: mount.mountpoint)")
	flagSet.BoolVar(&allowOther, "allow-other", false, "let other users access the mount")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}

	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	if mountpoint == "" {
		mountpoint = cfg.Mount.Mountpoint
	}
	if mountpoint == "" {
		return fmt.Errorf("no mountpoint: pass --mountpoint or set mount.mountpoint")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var collectors *metrics.Metrics
	if cfg.Metrics.Address != "" {
		collectors = metrics.New()
		stopMetrics := serveMetrics(cfg.Metrics.Address, collectors, logger)
		defer stopMetrics()
	}

	ws, err := workspace.New(cfg, workspace.Options{
		UserAgent: version.UserAgent(),
		Metrics:   collectors,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := ws.Start(ctx); err != nil {
		return err
	}
	if !ws.Client.SignedIn() {
		logger.Warn("no access token; the mount is read-only", "token_file", cfg.GitHub.TokenFile)
	}

	server, err := vfsfuse.Mount(vfsfuse.Options{
		Mountpoint: mountpoint,
		FileSystem: ws.Router,
		Gists:      ws.Gists,
		Owners:     ws.Owners,
		AllowOther: allowOther || cfg.Mount.AllowOther,
		Logger:     logger.With("component", "fuse"),
	})
	if err != nil {
		closeWorkspace(ws, logger)
		return err
	}

	unmounted := make(chan struct{})
	go func() {
		server.Wait()
		close(unmounted)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "mountpoint", mountpoint)
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed", "mountpoint", mountpoint, "error", err)
		}
	case <-unmounted:
		logger.Info("filesystem unmounted externally", "mountpoint", mountpoint)
	}
	return closeWorkspace(ws, logger)
}

func closeWorkspace(ws *workspace.Workspace, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ws.Close(ctx); err != nil {
		logger.Error("pending writes were not saved", "error", err)
		return err
	}
	return nil
}

// serveMetrics serves /metrics on address until the returned stop
// function is called.
func serveMetrics(address string, collectors *metrics.Metrics, logger *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collectors.Handler())
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "address", address, "error", err)
		}
	}()
	logger.Info("serving metrics", "address", address)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
