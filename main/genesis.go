// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/router"
)

// Genesis is the topology and the assets a fresh router starts with.
type Genesis struct {
	Networks []router.NetworkItem          `json:"networks"`
	Links    []router.ForceNetworkLinkMsg  `json:"links"`
	Channels []router.SetNetworkChannelMsg `json:"channels"`
	Assets   []router.RegisterAssetMsg     `json:"assets"`
}

func loadGenesis(path string) (*Genesis, error) {
	genesis := new(Genesis)
	if path == "" {
		return genesis, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, genesis); err != nil {
		return nil, fmt.Errorf("failed to parse genesis %s: %w", path, err)
	}
	return genesis, nil
}

// messages returns the admin messages that apply [g]. Networks come before
// the links between them.
func (g *Genesis) messages() []router.ExecuteMsg {
	var msgs []router.ExecuteMsg
	for i := range g.Networks {
		msgs = append(msgs, router.ExecuteMsg{ForceNetwork: &g.Networks[i]})
	}
	for i := range g.Links {
		msgs = append(msgs, router.ExecuteMsg{ForceNetworkLink: &g.Links[i]})
	}
	for i := range g.Channels {
		msgs = append(msgs, router.ExecuteMsg{SetNetworkChannel: &g.Channels[i]})
	}
	for i := range g.Assets {
		msgs = append(msgs, router.ExecuteMsg{RegisterAsset: &g.Assets[i]})
	}
	return msgs
}

// apply submits the messages of [g] to the router at [addr] as [admin].
func (g *Genesis) apply(ctx context.Context, h *host.Host, admin, addr string) error {
	for _, msg := range g.messages() {
		msgName, err := msg.Name()
		if err != nil {
			return err
		}
		raw, err := msg.Marshal()
		if err != nil {
			return err
		}
		if _, err := h.Execute(ctx, admin, addr, raw, nil); err != nil {
			return fmt.Errorf("genesis %s failed: %w", msgName, err)
		}
		log.Debug("applied genesis message", "msg", msgName)
	}
	return nil
}
