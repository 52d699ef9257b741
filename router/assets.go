// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"fmt"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/xc"
)

func (r *Router) registerAsset(_ adminAuth, msg *RegisterAssetMsg) (*host.Response, error) {
	if err := msg.Local.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	exists, err := r.state.HasAsset(msg.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, msg.ID)
	}

	asset := &Asset{ID: msg.ID, NetworkID: msg.NetworkID, Local: msg.Local}
	if err := r.state.PutAsset(asset); err != nil {
		return nil, err
	}
	return host.NewResponse().AddEvent(newEvent(actionRegister).
		Add("asset_id", msg.ID.String()).
		Add("reference", msg.Local.String())), nil
}

func (r *Router) unregisterAsset(_ adminAuth, id xc.AssetID) (*host.Response, error) {
	exists, err := r.state.HasAsset(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	if err := r.state.DeleteAsset(id); err != nil {
		return nil, err
	}
	return host.NewResponse().AddEvent(newEvent(actionUnregister).
		Add("asset_id", id.String())), nil
}

// LookupAsset returns the asset registered under [id].
func (r *Router) LookupAsset(id xc.AssetID) (*Asset, error) {
	return resolveAsset(r.state, id)
}
