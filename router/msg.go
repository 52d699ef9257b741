// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"encoding/json"
	"fmt"

	"github.com/ava-labs/xcrouter/xc"
)

// InstantiateMsg configures a new router.
type InstantiateMsg struct {
	NetworkID         xc.NetworkID `json:"network_id"`
	Admin             string       `json:"admin"`
	InterpreterCodeID uint64       `json:"interpreter_code_id"`
}

type RegisterAssetMsg struct {
	ID        xc.AssetID     `json:"asset_id"`
	NetworkID xc.NetworkID   `json:"network_id"`
	Local     AssetReference `json:"local"`
}

type UnregisterAssetMsg struct {
	ID xc.AssetID `json:"asset_id"`
}

// ExecuteProgramMsg asks the router to run [Program] in the caller's
// interpreter for [Salt], funded with [Assets].
type ExecuteProgramMsg struct {
	Salt    []byte     `json:"salt"`
	Program xc.Program `json:"program"`
	Assets  xc.Funds   `json:"assets"`
	// Tip receives the execution fee. Defaults to the caller.
	Tip string `json:"tip,omitempty"`
}

// ExecuteProgramPrivilegedMsg is the verified continuation of an
// ExecuteProgramMsg. Only the router itself may send it.
type ExecuteProgramPrivilegedMsg struct {
	CallOrigin     xc.CallOrigin     `json:"call_origin"`
	ExecuteProgram ExecuteProgramMsg `json:"execute_program"`
	Tip            string            `json:"tip"`
	// Provisioning is set on the re-invocation that follows an interpreter
	// instantiation.
	Provisioning bool `json:"provisioning,omitempty"`
}

// XcvmPacket carries a program to the gateway of another network.
type XcvmPacket struct {
	UserOrigin xc.UserOrigin `json:"user_origin"`
	Salt       []byte        `json:"salt"`
	Program    xc.Program    `json:"program"`
	Assets     xc.Funds      `json:"assets"`
}

// BridgeForwardMsg is sent by an interpreter to move a program, and the
// assets it carries, to another network.
type BridgeForwardMsg struct {
	InterpreterOrigin xc.InterpreterOrigin `json:"interpreter_origin"`
	To                xc.NetworkID         `json:"to"`
	Salt              []byte               `json:"salt"`
	Program           xc.Program           `json:"program"`
	Assets            xc.Funds             `json:"assets"`
}

// Ics20MessageHookMsg is delivered by a wasm hook together with the tokens
// of an incoming transfer.
type Ics20MessageHookMsg struct {
	FromNetworkID xc.NetworkID `json:"from_network_id"`
	Packet        XcvmPacket   `json:"packet"`
}

type ForceNetworkLinkMsg struct {
	From xc.NetworkID `json:"from"`
	To   xc.NetworkID `json:"to"`
	Link NetworkLink  `json:"link"`
}

type SetNetworkChannelMsg struct {
	To      xc.NetworkID `json:"to"`
	Channel string       `json:"channel"`
}

// ExecuteMsg is the set of messages the router accepts. Exactly one field is
// set.
type ExecuteMsg struct {
	RegisterAsset            *RegisterAssetMsg            `json:"register_asset,omitempty"`
	UnregisterAsset          *UnregisterAssetMsg          `json:"unregister_asset,omitempty"`
	ExecuteProgram           *ExecuteProgramMsg           `json:"execute_program,omitempty"`
	ExecuteProgramPrivileged *ExecuteProgramPrivilegedMsg `json:"execute_program_privileged,omitempty"`
	BridgeForward            *BridgeForwardMsg            `json:"bridge_forward,omitempty"`
	Ics20MessageHook         *Ics20MessageHookMsg         `json:"ics20_message_hook,omitempty"`
	ForceNetwork             *NetworkItem                 `json:"force_network,omitempty"`
	ForceNetworkLink         *ForceNetworkLinkMsg         `json:"force_network_link,omitempty"`
	SetNetworkChannel        *SetNetworkChannelMsg        `json:"set_network_channel,omitempty"`
}

// Name returns the name of the message held by [m].
func (m ExecuteMsg) Name() (string, error) {
	var names []string
	for name, set := range map[string]bool{
		"register_asset":             m.RegisterAsset != nil,
		"unregister_asset":           m.UnregisterAsset != nil,
		"execute_program":            m.ExecuteProgram != nil,
		"execute_program_privileged": m.ExecuteProgramPrivileged != nil,
		"bridge_forward":             m.BridgeForward != nil,
		"ics20_message_hook":         m.Ics20MessageHook != nil,
		"force_network":              m.ForceNetwork != nil,
		"force_network_link":         m.ForceNetworkLink != nil,
		"set_network_channel":        m.SetNetworkChannel != nil,
	} {
		if set {
			names = append(names, name)
		}
	}
	if len(names) != 1 {
		return "", fmt.Errorf("%w: expected exactly one message, got %d", ErrInvalidMessage, len(names))
	}
	return names[0], nil
}

// Marshal encodes [m] for a host call.
func (m ExecuteMsg) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

type LookupAssetQuery struct {
	ID xc.AssetID `json:"asset_id"`
}

type InterpreterQuery struct {
	Origin xc.InterpreterOrigin `json:"origin"`
}

// QueryMsg is the set of queries the router answers. Exactly one field is
// set.
type QueryMsg struct {
	LookupAsset *LookupAssetQuery `json:"lookup_asset,omitempty"`
	Assets      *struct{}         `json:"assets,omitempty"`
	Interpreter *InterpreterQuery `json:"interpreter,omitempty"`
	Config      *struct{}         `json:"config,omitempty"`
}

type LookupAssetResponse struct {
	Asset Asset `json:"asset"`
}

type AssetsResponse struct {
	Assets []*Asset `json:"assets"`
}

type InterpreterResponse struct {
	Interpreter Interpreter `json:"interpreter"`
}
