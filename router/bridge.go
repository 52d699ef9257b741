// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"encoding/json"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/pfm"
	"github.com/ava-labs/xcrouter/xc"
)

// defaultForwardReceiver is the receiver on the first chain of a forwarded
// transfer. The forwarding middleware ignores it.
const defaultForwardReceiver = "pfm"

const (
	pathProgram = "program"
	pathDirect  = "direct"
	pathForward = "forward"
)

// bridgeForward moves a program from one of our interpreters to the gateway
// of another network. A program carrying assets travels with an ICS-20
// transfer, otherwise it goes over the xcvm channel alone.
func (r *Router) bridgeForward(auth interpreterAuth, env host.Env, info host.MessageInfo, msg *BridgeForwardMsg) (*host.Response, error) {
	this, err := r.thisNetwork()
	if err != nil {
		return nil, err
	}
	link, err := r.loadLink(this, msg.To)
	if err != nil {
		return nil, err
	}
	packet := XcvmPacket{
		UserOrigin: auth.origin.UserOrigin,
		Salt:       msg.Salt,
		Program:    msg.Program,
		Assets:     msg.Assets,
	}
	if len(msg.Assets) == 0 {
		return r.forwardProgram(msg.To, link, packet)
	}
	return r.forwardTokens(env, info, this, msg.To, link, packet)
}

// forwardProgram sends [packet] without funds over the xcvm channel.
func (r *Router) forwardProgram(to xc.NetworkID, link *NetworkLink, packet XcvmPacket) (*host.Response, error) {
	send, err := programPacket(to, link, packet)
	if err != nil {
		return nil, err
	}
	r.metrics.bridgeForward.WithLabelValues(pathProgram).Inc()
	return host.NewResponse().
		AddMsg(send).
		AddEvent(newEvent(actionBridgeForwardProgram).
			Add("to_network_id", fmt.Sprint(to)).
			Add("channel", link.XcvmChannel)), nil
}

// forwardTokens sends the single native asset of [packet] over the ICS-20
// channel. A direct link delivers the program with a wasm hook on the remote
// gateway. A link through intermediate chains forwards the tokens with a
// forward memo and sends the program over the xcvm channel.
func (r *Router) forwardTokens(
	env host.Env,
	info host.MessageInfo,
	this xc.NetworkID,
	to xc.NetworkID,
	link *NetworkLink,
	packet XcvmPacket,
) (*host.Response, error) {
	if len(packet.Assets) != 1 {
		return nil, fmt.Errorf("%w: a transfer carries exactly one asset, got %d", ErrInvalidMessage, len(packet.Assets))
	}
	entry := packet.Assets[0]
	asset, err := resolveAsset(r.state, entry.AssetID)
	if err != nil {
		return nil, err
	}
	if asset.Local.Native == nil {
		return nil, fmt.Errorf("%w: asset %s is not native and cannot be transferred", ErrUnsupportedAsset, entry.AssetID)
	}
	// native assets come attached, so no action is expected back
	if _, err := pullFromCaller(r.state, env.Self, info.Sender, info.Funds, packet.Assets); err != nil {
		return nil, err
	}

	other, err := r.loadOther(to)
	if err != nil {
		return nil, err
	}
	if link.Ics20Channel == "" {
		return nil, notFound("ics20 channel to network %d", to)
	}
	if other.GatewayAddress == "" {
		return nil, notFound("gateway of network %d", to)
	}

	transfer := host.IbcTransfer{
		ChannelID: link.Ics20Channel,
		Amount:    host.Coin{Denom: asset.Local.Native.Denom, Amount: entry.Amount},
		Timeout:   link.Timeout(),
	}
	resp := host.NewResponse()
	path := pathDirect
	if len(link.Hops) == 0 {
		if !other.Ics20.WasmHooks {
			return nil, notFound("wasm hooks on network %d", to)
		}
		hook, err := ExecuteMsg{
			Ics20MessageHook: &Ics20MessageHookMsg{FromNetworkID: this, Packet: packet},
		}.Marshal()
		if err != nil {
			return nil, err
		}
		memo, err := pfm.Memo{
			Wasm: &pfm.WasmCallback{Contract: other.GatewayAddress, Msg: hook},
		}.Marshal()
		if err != nil {
			return nil, err
		}
		transfer.ToAddress = other.GatewayAddress
		transfer.Memo = memo
		resp.AddMsg(transfer)
	} else {
		path = pathForward
		forward, err := pfm.BuildPath(withFinalReceiver(link.Hops, other.GatewayAddress))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if err := forward.Validate(MaxForwardHops); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		memo, err := pfm.Memo{Forward: forward}.Marshal()
		if err != nil {
			return nil, err
		}
		send, err := programPacket(to, link, packet)
		if err != nil {
			return nil, err
		}
		transfer.ToAddress = link.ForwardReceiver
		if transfer.ToAddress == "" {
			transfer.ToAddress = defaultForwardReceiver
		}
		transfer.Memo = memo
		resp.AddMsgs(transfer, send)
	}

	r.metrics.bridgeForward.WithLabelValues(path).Inc()
	log.Debug("forwarding tokens", "to", to, "path", path, "channel", link.Ics20Channel)
	return resp.AddEvent(newEvent(actionBridgeForwardTokens).
		Add("to_network_id", fmt.Sprint(to)).
		Add("channel", link.Ics20Channel).
		Add("path", path)), nil
}

// ics20MessageHook continues a program that arrived from [auth.network]
// together with its tokens.
func (r *Router) ics20MessageHook(auth wasmHookAuth, env host.Env, info host.MessageInfo, msg *Ics20MessageHookMsg) (*host.Response, error) {
	packet := msg.Packet
	if packet.UserOrigin.NetworkID != auth.network {
		return nil, fmt.Errorf("%w: user of network %d relayed from network %d",
			ErrUnauthorized, packet.UserOrigin.NetworkID, auth.network)
	}
	pulls, err := pullFromCaller(r.state, env.Self, info.Sender, info.Funds, packet.Assets)
	if err != nil {
		return nil, err
	}
	continuation, err := selfCall(env.Self, ExecuteMsg{
		ExecuteProgramPrivileged: &ExecuteProgramPrivilegedMsg{
			CallOrigin: xc.NewRemoteOrigin(packet.UserOrigin),
			ExecuteProgram: ExecuteProgramMsg{
				Salt:    packet.Salt,
				Program: packet.Program,
				Assets:  packet.Assets,
			},
			Tip: info.Sender,
		},
	})
	if err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddMsgs(pulls...).
		AddMsg(continuation).
		AddEvent(newEvent(actionIcs20MessageHook).
			Add("from_network_id", fmt.Sprint(auth.network))), nil
}

func programPacket(to xc.NetworkID, link *NetworkLink, packet XcvmPacket) (host.Msg, error) {
	if link.XcvmChannel == "" {
		return nil, notFound("xcvm channel to network %d", to)
	}
	data, err := json.Marshal(packet)
	if err != nil {
		return nil, err
	}
	return host.IbcSendPacket{
		ChannelID: link.XcvmChannel,
		Data:      data,
		Timeout:   link.Timeout(),
	}, nil
}
