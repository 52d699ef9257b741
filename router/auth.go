// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/xc"
)

const hookSenderPrefix = "ibc-wasm-hook-intermediary"

// The capabilities below can only be built by the authorize functions of
// this file. A handler that takes one can only run after its check passed.

type adminAuth struct{}

type contractAuth struct{}

type interpreterAuth struct {
	origin xc.InterpreterOrigin
}

type wasmHookAuth struct {
	network xc.NetworkID
}

func authorizeAdmin(s ConfigState, sender string) (adminAuth, error) {
	config, err := s.GetConfig()
	if err != nil {
		return adminAuth{}, err
	}
	if sender != config.Admin {
		return adminAuth{}, fmt.Errorf("%w: %s is not the admin", ErrUnauthorized, sender)
	}
	return adminAuth{}, nil
}

func authorizeContract(env host.Env, sender string) (contractAuth, error) {
	if sender != env.Self {
		return contractAuth{}, fmt.Errorf("%w: %s is not the router", ErrUnauthorized, sender)
	}
	return contractAuth{}, nil
}

func authorizeInterpreter(s InterpreterState, origin xc.InterpreterOrigin, sender string) (interpreterAuth, error) {
	interpreter, err := s.GetInterpreter(origin)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return interpreterAuth{}, fmt.Errorf("%w: no interpreter for %s", ErrUnauthorized, origin)
	case err != nil:
		return interpreterAuth{}, err
	}
	if sender != interpreter.Address {
		return interpreterAuth{}, fmt.Errorf("%w: %s is not the interpreter of %s", ErrUnauthorized, sender, origin)
	}
	return interpreterAuth{origin: origin}, nil
}

// authorizeWasmHook checks that [sender] relays hook messages from
// [network]: either the sender derived from the transfer channel and the
// remote gateway, or the network's explicitly trusted hook sender.
func authorizeWasmHook(s State, network xc.NetworkID, sender string) (wasmHookAuth, error) {
	config, err := s.GetConfig()
	if err != nil {
		return wasmHookAuth{}, err
	}
	item, err := s.GetNetwork(network)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return wasmHookAuth{}, fmt.Errorf("%w: unknown network %d", ErrUnauthorized, network)
	case err != nil:
		return wasmHookAuth{}, err
	}
	if item.Ics20.HookSender != "" && sender == item.Ics20.HookSender {
		return wasmHookAuth{network: network}, nil
	}

	link, err := s.GetLink(config.NetworkID, network)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return wasmHookAuth{}, fmt.Errorf("%w: no link to network %d", ErrUnauthorized, network)
	case err != nil:
		return wasmHookAuth{}, err
	}
	if link.Ics20Channel == "" || item.GatewayAddress == "" {
		return wasmHookAuth{}, fmt.Errorf("%w: network %d has no ics20 route", ErrUnauthorized, network)
	}
	if sender != HookSender(link.Ics20Channel, item.GatewayAddress) {
		return wasmHookAuth{}, fmt.Errorf("%w: %s is not a hook sender for network %d", ErrUnauthorized, sender, network)
	}
	return wasmHookAuth{network: network}, nil
}

// HookSender is the local account a wasm hook runs as when [remoteSender]
// transfers over the local [channel].
func HookSender(channel, remoteSender string) string {
	preimage := hookSenderPrefix + "/" + channel + "/" + remoteSender
	return "hook-" + ids.ShortID(hashing.ComputeHash160Array([]byte(preimage))).String()
}
