// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	configStatePrefix      = []byte("config")
	assetStatePrefix       = []byte("asset")
	networkStatePrefix     = []byte("network")
	interpreterStatePrefix = []byte("interpreter")

	_ State = &state{}
)

// State is everything the router persists. Commits and rollbacks are driven
// by the host, so State only needs to drop its caches when a step is
// discarded.
type State interface {
	ConfigState
	AssetState
	NetworkState
	InterpreterState
}

type state struct {
	ConfigState
	AssetState
	NetworkState
	InterpreterState
}

func NewState(db database.Database, registerer prometheus.Registerer) (State, error) {
	assetState, err := NewAssetState(prefixdb.New(assetStatePrefix, db), registerer)
	if err != nil {
		return nil, err
	}
	return &state{
		ConfigState:      NewConfigState(prefixdb.New(configStatePrefix, db)),
		AssetState:       assetState,
		NetworkState:     NewNetworkState(prefixdb.New(networkStatePrefix, db)),
		InterpreterState: NewInterpreterState(prefixdb.New(interpreterStatePrefix, db)),
	}, nil
}
