// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/router"
	"github.com/ava-labs/xcrouter/xc"
)

func newTestServer(t *testing.T) *httptest.Server {
	require := require.New(t)
	h := host.New(memdb.New())
	require.NoError(h.StoreCode(1, router.NewFactory(prometheus.NewRegistry())))
	require.NoError(h.StoreCode(2, host.NewSandbox))

	init, err := json.Marshal(router.InstantiateMsg{NetworkID: 1, Admin: "admin", InterpreterCodeID: 2})
	require.NoError(err)
	addr, _, err := h.Instantiate(context.Background(), "admin", 1, "gateway", init, nil)
	require.NoError(err)

	handler, err := router.NewHandler(router.NewService(h, addr))
	require.NoError(err)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestClient(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cli := New(newTestServer(t).URL)

	height, err := cli.GetHeight(ctx)
	require.NoError(err)
	require.Equal(uint64(1), height)

	_, err = cli.LookupAsset(ctx, 5)
	require.Error(err)

	receipt, err := cli.Submit(ctx, "admin", router.ExecuteMsg{RegisterAsset: &router.RegisterAssetMsg{
		ID:        5,
		NetworkID: 1,
		Local:     router.NativeReference("upica"),
	}}, nil)
	require.NoError(err)
	require.Equal(uint64(2), receipt.Height)
	require.NotEmpty(receipt.Events)

	asset, err := cli.LookupAsset(ctx, 5)
	require.NoError(err)
	require.Equal(router.NativeReference("upica"), asset.Local)

	assets, err := cli.ListAssets(ctx)
	require.NoError(err)
	require.Len(assets, 1)

	_, err = cli.Submit(ctx, "mallory", router.ExecuteMsg{UnregisterAsset: &router.UnregisterAssetMsg{ID: 5}}, nil)
	require.Error(err)

	origin := xc.InterpreterOrigin{
		UserOrigin: xc.UserOrigin{NetworkID: 1, UserID: []byte("alice")},
		Salt:       []byte{0},
	}
	_, err = cli.GetInterpreter(ctx, origin)
	require.Error(err)

	_, err = cli.Submit(ctx, "alice", router.ExecuteMsg{ExecuteProgram: &router.ExecuteProgramMsg{Salt: []byte{0}}}, nil)
	require.NoError(err)
	interpreter, err := cli.GetInterpreter(ctx, origin)
	require.NoError(err)
	require.Equal(host.ContractAddress(2, receiptContract(t, receipt), router.InterpreterLabel(origin)), interpreter)

	// nobody may submit as the router or the interpreter it created
	gateway := receiptContract(t, receipt)
	for _, sender := range []string{gateway, interpreter} {
		_, err = cli.Submit(ctx, sender, router.ExecuteMsg{ExecuteProgramPrivileged: &router.ExecuteProgramPrivilegedMsg{
			CallOrigin:     xc.NewRemoteOrigin(xc.UserOrigin{NetworkID: 7, UserID: []byte("victim")}),
			ExecuteProgram: router.ExecuteProgramMsg{},
			Tip:            "mallory",
		}}, nil)
		require.Error(err)
	}
	_, err = cli.GetInterpreter(ctx, xc.InterpreterOrigin{UserOrigin: xc.UserOrigin{NetworkID: 7, UserID: []byte("victim")}})
	require.Error(err)

	packets, err := cli.Outbox(ctx)
	require.NoError(err)
	require.Empty(packets)
}

// receiptContract returns the router address found on the first event of
// [receipt].
func receiptContract(t *testing.T, receipt *host.Receipt) string {
	require.NotEmpty(t, receipt.Events)
	addr, ok := receipt.Events[0].Attribute(host.ContractAddressAttribute)
	require.True(t, ok)
	return addr
}
