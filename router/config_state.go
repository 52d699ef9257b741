// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/xcrouter/xc"
)

const (
	ConfigKey byte = iota
)

var (
	configKey = []byte{ConfigKey}

	errConfigWrongVersion = errors.New("config has wrong codec version")

	_ ConfigState = (*configState)(nil)
)

// Config is set once, when the router is instantiated.
type Config struct {
	// NetworkID of the chain the router runs on.
	NetworkID xc.NetworkID `serialize:"true" json:"network_id"`
	// Admin may manage assets and networks.
	Admin string `serialize:"true" json:"admin"`
	// InterpreterCodeID is instantiated for every new interpreter origin.
	InterpreterCodeID uint64 `serialize:"true" json:"interpreter_code_id"`
}

// ConfigState is a thin wrapper around a database to provide serialization
// and de-serialization of the router configuration.
type ConfigState interface {
	GetConfig() (*Config, error)
	PutConfig(*Config) error
}

type configState struct {
	singletonDB database.Database
}

func NewConfigState(db database.Database) ConfigState {
	return &configState{
		singletonDB: db,
	}
}

func (s *configState) GetConfig() (*Config, error) {
	configBytes, err := s.singletonDB.Get(configKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	config := &Config{}
	parsedVersion, err := xc.Codec.Unmarshal(configBytes, config)
	if err != nil {
		return nil, err
	}
	if parsedVersion != xc.CodecVersion {
		return nil, errConfigWrongVersion
	}
	return config, nil
}

func (s *configState) PutConfig(config *Config) error {
	bytes, err := xc.Codec.Marshal(xc.CodecVersion, config)
	if err != nil {
		return err
	}
	return s.singletonDB.Put(configKey, bytes)
}
