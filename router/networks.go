// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/pfm"
	"github.com/ava-labs/xcrouter/xc"
)

func (r *Router) forceNetwork(_ adminAuth, item *NetworkItem) (*host.Response, error) {
	if item.GatewayAddress != "" {
		if err := host.ValidateAddress(item.GatewayAddress); err != nil {
			return nil, hostError("gateway address: %v", err)
		}
	}
	if err := r.state.PutNetwork(item); err != nil {
		return nil, err
	}
	return host.NewResponse().AddEvent(newEvent(actionForceNetwork).
		Add("network_id", fmt.Sprint(item.ID))), nil
}

func (r *Router) forceNetworkLink(_ adminAuth, msg *ForceNetworkLinkMsg) (*host.Response, error) {
	if len(msg.Link.Hops) > 0 {
		// the last receiver is filled in when forwarding, so check the
		// routes with a placeholder
		hops := withFinalReceiver(msg.Link.Hops, "gateway")
		if _, err := pfm.BuildPath(hops); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if len(hops) > MaxForwardHops {
			return nil, fmt.Errorf("%w: %d hops exceed %d", ErrInvalidMessage, len(hops), MaxForwardHops)
		}
	}
	if err := r.state.PutLink(msg.From, msg.To, &msg.Link); err != nil {
		return nil, err
	}
	return host.NewResponse().AddEvent(newEvent(actionForceNetworkLink).
		Add("from_network_id", fmt.Sprint(msg.From)).
		Add("to_network_id", fmt.Sprint(msg.To))), nil
}

// setNetworkChannel binds the xcvm channel of the link from this network to
// [msg.To], creating the link if needed.
func (r *Router) setNetworkChannel(_ adminAuth, msg *SetNetworkChannelMsg) (*host.Response, error) {
	this, err := r.thisNetwork()
	if err != nil {
		return nil, err
	}
	link, err := r.state.GetLink(this, msg.To)
	switch {
	case errors.Is(err, database.ErrNotFound):
		link = &NetworkLink{}
	case err != nil:
		return nil, err
	}
	link.XcvmChannel = msg.Channel
	if err := r.state.PutLink(this, msg.To, link); err != nil {
		return nil, err
	}
	return host.NewResponse().AddEvent(newEvent(actionSetNetworkChannel).
		Add("to_network_id", fmt.Sprint(msg.To)).
		Add("channel", msg.Channel)), nil
}

// thisNetwork returns the id of the network the router runs on.
func (r *Router) thisNetwork() (xc.NetworkID, error) {
	config, err := r.state.GetConfig()
	if err != nil {
		return 0, err
	}
	return config.NetworkID, nil
}

func (r *Router) loadOther(id xc.NetworkID) (*NetworkItem, error) {
	item, err := r.state.GetNetwork(id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, notFound("network %d", id)
	case err != nil:
		return nil, err
	}
	return item, nil
}

func (r *Router) loadLink(from, to xc.NetworkID) (*NetworkLink, error) {
	link, err := r.state.GetLink(from, to)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, notFound("link from network %d to %d", from, to)
	case err != nil:
		return nil, err
	}
	return link, nil
}

// NetworkOfChannel returns the network reached over the xcvm [channel].
func (r *Router) NetworkOfChannel(channel string) (xc.NetworkID, error) {
	id, err := r.state.NetworkOfChannel(channel)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return 0, notFound("network of channel %s", channel)
	case err != nil:
		return 0, err
	}
	return id, nil
}

// withFinalReceiver returns a copy of [hops] whose last receiver defaults to
// [receiver].
func withFinalReceiver(hops []pfm.Hop, receiver string) []pfm.Hop {
	out := make([]pfm.Hop, len(hops))
	copy(out, hops)
	if last := len(out) - 1; last >= 0 && out[last].Receiver == "" {
		out[last].Receiver = receiver
	}
	return out
}
