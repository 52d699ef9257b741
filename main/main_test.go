// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xcrouter/client"
	"github.com/ava-labs/xcrouter/router"
)

const testGenesis = `{
	"networks": [
		{"network_id": 2, "gateway_address": "gateway2", "ics20": {"wasm_hooks": true}}
	],
	"links": [
		{"from": 1, "to": 2, "link": {"ics20_channel": "channel-0"}}
	],
	"channels": [
		{"to": 2, "channel": "channel-1"}
	],
	"assets": [
		{"asset_id": "5", "network_id": 1, "local": {"native": {"denom": "upica"}}},
		{"asset_id": 6, "network_id": 2, "local": {"native": {"denom": "ibc/upica"}}}
	]
}`

func TestParseConfig(t *testing.T) {
	require := require.New(t)

	config, printVersion, err := parseConfig(nil)
	require.NoError(err)
	require.False(printVersion)
	require.Equal(uint32(1), config.NetworkID)
	require.Equal("admin", config.Admin)
	require.Equal(uint64(2), config.InterpreterCodeID)
	require.Equal("info", config.LogLevel)

	_, printVersion, err = parseConfig([]string{"--version"})
	require.NoError(err)
	require.True(printVersion)

	t.Setenv("XCROUTER_ADMIN", "ops")
	config, _, err = parseConfig([]string{"--network-id=7", "--log-level=debug"})
	require.NoError(err)
	require.Equal(uint32(7), config.NetworkID)
	require.Equal("ops", config.Admin)
	require.Equal("debug", config.LogLevel)

	_, _, err = parseConfig([]string{"--interpreter-code-id=1"})
	require.Error(err)
}

func TestParseConfigFile(t *testing.T) {
	require := require.New(t)

	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(file, []byte("network-id: 3\nhttp-address: 0.0.0.0:8080\n"), 0o600))

	config, _, err := parseConfig([]string{"--config-file=" + file})
	require.NoError(err)
	require.Equal(uint32(3), config.NetworkID)
	require.Equal("0.0.0.0:8080", config.HTTPAddress)

	// flags win over the file
	config, _, err = parseConfig([]string{"--config-file=" + file, "--network-id=4"})
	require.NoError(err)
	require.Equal(uint32(4), config.NetworkID)
}

func TestNode(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(os.WriteFile(file, []byte(testGenesis), 0o600))
	genesis, err := loadGenesis(file)
	require.NoError(err)
	require.Len(genesis.messages(), 5)

	config, _, err := parseConfig(nil)
	require.NoError(err)
	registry := prometheus.NewRegistry()
	h, addr, err := newNode(ctx, config, prometheus.WrapRegistererWithPrefix("test_", registry), genesis)
	require.NoError(err)

	mux, err := newMux(h, addr, registry)
	require.NoError(err)
	server := httptest.NewServer(mux)
	defer server.Close()

	cli := client.New(server.URL + "/router")
	assets, err := cli.ListAssets(ctx)
	require.NoError(err)
	require.Len(assets, 2)
	require.Equal(router.NativeReference("ibc/upica"), assets[1].Local)

	contract, ok := h.Contract(addr)
	require.True(ok)
	network, err := contract.(*router.Router).NetworkOfChannel("channel-1")
	require.NoError(err)
	require.EqualValues(2, network)

	resp, err := server.Client().Get(server.URL + "/metrics")
	require.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	require.True(strings.Contains(string(body), "test_xcrouter_messages"))
}

func TestGenesisFailure(t *testing.T) {
	require := require.New(t)

	genesis := &Genesis{Assets: []router.RegisterAssetMsg{
		{ID: 1, Local: router.NativeReference("upica")},
		{ID: 1, Local: router.NativeReference("upica")},
	}}
	config, _, err := parseConfig(nil)
	require.NoError(err)
	_, _, err = newNode(context.Background(), config, prometheus.NewRegistry(), genesis)
	require.ErrorIs(err, router.ErrAlreadyRegistered)
}
