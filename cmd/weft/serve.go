// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tolgaakin/weft/pkg/server"
	"github.com/tolgaakin/weft/pkg/task"
)

// ServeCmd starts the A2A task server.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	var srv *server.Server
	if cfg.Tasks.Backend == "sqlite" {
		sqlStore, err := task.OpenSQLStorage(cfg.Tasks.Path)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		srv = server.New(sqlStore, sqlStore)
	} else {
		memStore := task.NewStorage()
		srv = server.New(memStore, memStore)
	}

	return serveHTTP(addr, srv.Handler(), cfg.Server.ShutdownTimeout)
}

func serveHTTP(addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{Addr: addr, Handler: handler}

	done := make(chan error, 1)
	go func() {
		slog.Info("Serving A2A surface", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- err
			return
		}
		done <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-done:
		return err
	case sig := <-stop:
		slog.Info("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}
