// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SoftbearStudios/hexvoxel/server"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = time.Minute

func main() {
	c, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := server.NewLogger(server.LogOptions{
		Level:      c.LogLevel,
		JSON:       c.LogJSON,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(c, logger); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
}

func run(c *config, logger *logrus.Logger) error {
	s, err := openStore(c, logger)
	if err != nil {
		return fmt.Errorf("could not open %s store: %w", c.Store, err)
	}

	var newBackoff func() backoff.BackOff
	if c.RetryMax > 0 {
		newBackoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxInterval = c.RetryMax
			b.MaxElapsedTime = 0
			return b
		}
	}

	hub := server.NewHub(server.HubOptions{
		Database:       s,
		Logger:         logger,
		RenderDistance: c.RenderDistance,
		LODDistance:    c.LODDistance,
		MaxInflight:    c.MaxInflight,
		FlushPeriod:    c.FlushPeriod,
		Backoff:        newBackoff,
	})
	go hub.Run()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshotCtx, cancelSnapshots := context.WithCancel(context.Background())
	defer cancelSnapshots()
	go s.runSnapshots(snapshotCtx, c.SnapshotPeriod)

	http.HandleFunc("/", hub.ServeIndex)
	http.HandleFunc("/ws", hub.ServeSocket)

	l, err := net.Listen("tcp", fmt.Sprint(":", c.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l = netutil.LimitListener(l, c.MaxConnections)

	httpServer := &http.Server{ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(l)
	}()

	logger.WithFields(logrus.Fields{"port": c.Port, "store": c.Store}).Info("server started")

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("serve failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("could not close http server")
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("could not save every world")
	}

	cancelSnapshots()
	return s.snapshot(shutdownCtx)
}
