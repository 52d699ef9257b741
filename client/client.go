// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/router"
	"github.com/ava-labs/xcrouter/xc"
)

// Client defines router API client operations.
type Client interface {
	// LookupAsset fetches the asset registered under [id]
	LookupAsset(ctx context.Context, id xc.AssetID) (*router.Asset, error)

	// ListAssets fetches every registered asset
	ListAssets(ctx context.Context) ([]*router.Asset, error)

	// GetInterpreter fetches the address of the interpreter of [origin]
	GetInterpreter(ctx context.Context, origin xc.InterpreterOrigin) (string, error)

	// Submit executes [msg] on the router on behalf of [sender]
	Submit(ctx context.Context, sender string, msg router.ExecuteMsg, funds host.Coins) (*host.Receipt, error)

	// Outbox takes the packets waiting to be relayed
	Outbox(ctx context.Context) ([]host.Packet, error)

	// GetHeight fetches the number of messages handled so far
	GetHeight(ctx context.Context) (uint64, error)
}

// New creates a new client object for the router API served at [uri].
func New(uri string) Client {
	return &client{uri: uri, http: http.DefaultClient}
}

type client struct {
	uri  string
	http *http.Client
}

func (cli *client) LookupAsset(ctx context.Context, id xc.AssetID) (*router.Asset, error) {
	resp := new(router.LookupAssetResponse)
	err := cli.sendRequest(ctx,
		"lookupAsset",
		&router.LookupAssetArgs{ID: id},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Asset, nil
}

func (cli *client) ListAssets(ctx context.Context) ([]*router.Asset, error) {
	resp := new(router.AssetsResponse)
	if err := cli.sendRequest(ctx, "listAssets", &struct{}{}, resp); err != nil {
		return nil, err
	}
	return resp.Assets, nil
}

func (cli *client) GetInterpreter(ctx context.Context, origin xc.InterpreterOrigin) (string, error) {
	resp := new(router.InterpreterResponse)
	err := cli.sendRequest(ctx,
		"getInterpreter",
		&router.GetInterpreterArgs{Origin: origin},
		resp,
	)
	if err != nil {
		return "", err
	}
	return resp.Interpreter.Address, nil
}

func (cli *client) Submit(ctx context.Context, sender string, msg router.ExecuteMsg, funds host.Coins) (*host.Receipt, error) {
	raw, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	resp := new(host.Receipt)
	err = cli.sendRequest(ctx,
		"submit",
		&router.SubmitArgs{Sender: sender, Msg: json.RawMessage(raw), Funds: funds},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) Outbox(ctx context.Context) ([]host.Packet, error) {
	resp := new(router.OutboxReply)
	if err := cli.sendRequest(ctx, "outbox", &struct{}{}, resp); err != nil {
		return nil, err
	}
	return resp.Packets, nil
}

func (cli *client) GetHeight(ctx context.Context) (uint64, error) {
	resp := new(router.GetHeightReply)
	if err := cli.sendRequest(ctx, "getHeight", &struct{}{}, resp); err != nil {
		return 0, err
	}
	return uint64(resp.Height), nil
}

func (cli *client) sendRequest(ctx context.Context, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest(router.ServiceName+"."+method, args)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cli.uri, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cli.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to issue %s request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s request failed with status %d", method, resp.StatusCode)
	}
	return json2.DecodeClientResponse(resp.Body, reply)
}
