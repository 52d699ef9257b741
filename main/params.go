// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "xcrouter"

	versionKey           = "version"
	configFileKey        = "config-file"
	genesisFileKey       = "genesis-file"
	networkIDKey         = "network-id"
	adminKey             = "admin"
	interpreterCodeIDKey = "interpreter-code-id"
	httpAddressKey       = "http-address"
	logLevelKey          = "log-level"
	metricsNamespaceKey  = "metrics-namespace"
)

// Config is the node configuration, read from flags, XCROUTER_ prefixed
// environment variables and an optional config file, in that order of
// precedence.
type Config struct {
	NetworkID         uint32
	Admin             string
	InterpreterCodeID uint64
	HTTPAddress       string
	LogLevel          string
	MetricsNamespace  string
	GenesisFile       string
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("xcrouter", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(configFileKey, "", "Path to a json or yaml config file")
	fs.String(genesisFileKey, "", "Path to a json file of networks, links and assets to register on start")
	fs.Uint(networkIDKey, 1, "Id of the network the router runs on")
	fs.String(adminKey, "admin", "Address allowed to administer the router")
	fs.Uint64(interpreterCodeIDKey, 2, "Code id interpreters are instantiated from")
	fs.String(httpAddressKey, "127.0.0.1:9650", "Address the API listens on")
	fs.String(logLevelKey, "info", "Log level: crit, error, warn, info or debug")
	fs.String(metricsNamespaceKey, "", "Prefix of every exported metric")

	return fs
}

// getViper returns the viper environment for the node binary
func getViper(args []string) (*viper.Viper, error) {
	v := viper.New()

	fs := pflag.NewFlagSet("xcrouter", pflag.ContinueOnError)
	fs.AddGoFlagSet(buildFlagSet())
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString(configFileKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return v, nil
}

// parseConfig returns the configuration of the node, or nil if only the
// version was asked for.
func parseConfig(args []string) (*Config, bool, error) {
	v, err := getViper(args)
	if err != nil {
		return nil, false, err
	}
	if v.GetBool(versionKey) {
		return nil, true, nil
	}
	config := &Config{
		NetworkID:         v.GetUint32(networkIDKey),
		Admin:             v.GetString(adminKey),
		InterpreterCodeID: v.GetUint64(interpreterCodeIDKey),
		HTTPAddress:       v.GetString(httpAddressKey),
		LogLevel:          v.GetString(logLevelKey),
		MetricsNamespace:  v.GetString(metricsNamespaceKey),
		GenesisFile:       v.GetString(genesisFileKey),
	}
	if config.InterpreterCodeID == routerCodeID || config.InterpreterCodeID == tokenCodeID {
		return nil, false, fmt.Errorf("interpreter code id %d is reserved", config.InterpreterCodeID)
	}
	return config, false, nil
}
