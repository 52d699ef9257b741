// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/router"
	"github.com/ava-labs/xcrouter/xc"
)

const (
	name    = "xcrouter"
	version = "v0.1.0"

	routerCodeID uint64 = 1
	tokenCodeID  uint64 = 3

	routerLabel     = "gateway"
	shutdownTimeout = 5 * time.Second
)

func main() {
	config, printVersion, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if printVersion {
		fmt.Printf("%s@%s\n", name, version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		log.Error("node stopped", "err", err)
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		return err
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))
	return nil
}

// newNode deploys a router on a fresh host and applies [genesis].
func newNode(ctx context.Context, config *Config, registerer prometheus.Registerer, genesis *Genesis) (*host.Host, string, error) {
	h := host.New(memdb.New())
	if err := h.StoreCode(routerCodeID, router.NewFactory(registerer)); err != nil {
		return nil, "", err
	}
	if err := h.StoreCode(config.InterpreterCodeID, host.NewSandbox); err != nil {
		return nil, "", err
	}
	if err := h.StoreCode(tokenCodeID, host.NewToken); err != nil {
		return nil, "", err
	}

	init, err := json.Marshal(router.InstantiateMsg{
		NetworkID:         xc.NetworkID(config.NetworkID),
		Admin:             config.Admin,
		InterpreterCodeID: config.InterpreterCodeID,
	})
	if err != nil {
		return nil, "", err
	}
	addr, _, err := h.Instantiate(ctx, config.Admin, routerCodeID, routerLabel, init, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to instantiate router: %w", err)
	}
	if err := genesis.apply(ctx, h, config.Admin, addr); err != nil {
		return nil, "", err
	}
	return h, addr, nil
}

func newMux(h *host.Host, addr string, gatherer prometheus.Gatherer) (*http.ServeMux, error) {
	handler, err := router.NewHandler(router.NewService(h, addr))
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/router", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux, nil
}

func run(ctx context.Context, config *Config) error {
	if err := setupLogging(config.LogLevel); err != nil {
		return err
	}
	genesis, err := loadGenesis(config.GenesisFile)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	var registerer prometheus.Registerer = registry
	if config.MetricsNamespace != "" {
		registerer = prometheus.WrapRegistererWithPrefix(config.MetricsNamespace+"_", registry)
	}

	h, addr, err := newNode(ctx, config, registerer, genesis)
	if err != nil {
		return err
	}
	mux, err := newMux(h, addr, registry)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              config.HTTPAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	log.Info("router ready", "network", config.NetworkID, "router", addr, "http", config.HTTPAddress)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
