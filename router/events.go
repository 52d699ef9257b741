// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import "github.com/ava-labs/xcrouter/host"

// EventPrefix is the type of every event the router emits. The attribute
// "action" tells them apart.
const EventPrefix = "xcvm.gateway"

const (
	actionRegister             = "register"
	actionUnregister           = "unregister"
	actionForceNetwork         = "force_network"
	actionForceNetworkLink     = "force_network_link"
	actionSetNetworkChannel    = "set_network_channel"
	actionExecuteProgram       = "execute_program"
	actionInstantiate          = "instantiate"
	actionInterpreterReady     = "interpreter_ready"
	actionDispatch             = "dispatch"
	actionBridgeForwardTokens  = "bridge_forward_tokens"
	actionBridgeForwardProgram = "bridge_forward_program"
	actionIcs20MessageHook     = "ics20_message_hook"
)

func newEvent(action string) host.Event {
	return host.NewEvent(EventPrefix).Add("action", action)
}
