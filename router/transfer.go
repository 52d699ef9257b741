// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/xc"
)

// resolveAsset looks [id] up and maps a missing asset to ErrUnsupportedAsset.
func resolveAsset(s AssetState, id xc.AssetID) (*Asset, error) {
	asset, err := s.GetAsset(id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	case err != nil:
		return nil, err
	}
	return asset, nil
}

// pullFromCaller returns the actions moving [funds] from [caller] into the
// custody of [self]. Native assets must already be attached in exactly the
// declared amount. Virtual assets are pulled with a transfer_from. Nothing is
// returned unless every entry resolves.
func pullFromCaller(s AssetState, self, caller string, attached host.Coins, funds xc.Funds) ([]host.Msg, error) {
	if err := funds.Validate(); err != nil {
		return nil, err
	}

	var msgs []host.Msg
	for _, entry := range funds {
		if entry.Amount.IsZero() {
			continue
		}
		asset, err := resolveAsset(s, entry.AssetID)
		if err != nil {
			return nil, err
		}
		switch {
		case asset.Local.Native != nil:
			denom := asset.Local.Native.Denom
			amount, ok := attached.AmountOf(denom)
			if !ok || !amount.Eq(entry.Amount) {
				return nil, fmt.Errorf("%w: asset %s needs %s%s attached, got %s%s",
					ErrInsufficientFunds, entry.AssetID, entry.Amount, denom, amount, denom)
			}
		case asset.Local.Virtual != nil:
			msg, err := tokenCall(asset.Local.Virtual.Address, host.TokenExecuteMsg{
				TransferFrom: &host.TokenTransferFrom{
					Owner:     caller,
					Recipient: self,
					Amount:    entry.Amount,
				},
			})
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

// pushToTarget returns the actions moving [funds] from the router to
// [target]. Zero amounts produce no action.
func pushToTarget(s AssetState, target string, funds xc.Funds) ([]host.Msg, error) {
	var msgs []host.Msg
	for _, entry := range funds {
		if entry.Amount.IsZero() {
			continue
		}
		asset, err := resolveAsset(s, entry.AssetID)
		if err != nil {
			return nil, err
		}
		switch {
		case asset.Local.Native != nil:
			msgs = append(msgs, host.BankSend{
				ToAddress: target,
				Amount:    host.Coins{{Denom: asset.Local.Native.Denom, Amount: entry.Amount}},
			})
		case asset.Local.Virtual != nil:
			msg, err := tokenCall(asset.Local.Virtual.Address, host.TokenExecuteMsg{
				Transfer: &host.TokenTransfer{
					Recipient: target,
					Amount:    entry.Amount,
				},
			})
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

func tokenCall(token string, msg host.TokenExecuteMsg) (host.Msg, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return host.WasmExecute{Contract: token, Msg: raw}, nil
}
