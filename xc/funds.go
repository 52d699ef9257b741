// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrDuplicateAsset = errors.New("duplicate asset in funds")
	errFundsOverflow  = errors.New("funds total overflows")
)

// AssetID is the globally scoped identifier of a fungible asset.
type AssetID uint64

func (id AssetID) String() string { return strconv.FormatUint(uint64(id), 10) }

// MarshalJSON encodes the id as a decimal string.
func (id AssetID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number.
func (id *AssetID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid asset id %q: %w", s, err)
	}
	*id = AssetID(v)
	return nil
}

// FundsEntry is a single asset amount.
type FundsEntry struct {
	AssetID AssetID `json:"asset_id"`
	Amount  Amount  `json:"amount"`
}

// Funds is an ordered list of asset amounts. Asset ids are unique.
type Funds []FundsEntry

// Validate returns ErrDuplicateAsset if an asset appears more than once.
func (f Funds) Validate() error {
	seen := make(map[AssetID]struct{}, len(f))
	for _, entry := range f {
		if _, ok := seen[entry.AssetID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateAsset, entry.AssetID)
		}
		seen[entry.AssetID] = struct{}{}
	}
	return nil
}

// Total sums every amount in [f].
func (f Funds) Total() (Amount, error) {
	var total Amount
	for _, entry := range f {
		sum, overflow := total.Add(entry.Amount)
		if overflow {
			return Amount{}, errFundsOverflow
		}
		total = sum
	}
	return total, nil
}

// NonZero returns the entries of [f] with a non-zero amount.
func (f Funds) NonZero() Funds {
	out := make(Funds, 0, len(f))
	for _, entry := range f {
		if !entry.Amount.IsZero() {
			out = append(out, entry)
		}
	}
	return out
}
