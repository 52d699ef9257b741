// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmountJSON(t *testing.T) {
	require := require.New(t)

	big, err := ParseAmount("340282366920938463463374607431768211455") // u128 max
	require.NoError(err)

	b, err := json.Marshal(big)
	require.NoError(err)
	require.Equal(`"340282366920938463463374607431768211455"`, string(b))

	var parsed Amount
	require.NoError(json.Unmarshal(b, &parsed))
	require.True(big.Eq(parsed))

	// bare numbers are accepted too
	require.NoError(json.Unmarshal([]byte("100"), &parsed))
	require.Equal(uint64(100), parsed.Uint64())

	_, err = ParseAmount("-1")
	require.ErrorIs(err, errNegativeAmount)
	_, err = ParseAmount("abc")
	require.Error(err)
}

func TestAmountArithmetic(t *testing.T) {
	require := require.New(t)

	sum, overflow := NewAmount(90).Add(NewAmount(10))
	require.False(overflow)
	require.True(sum.Eq(NewAmount(100)))

	_, underflow := NewAmount(90).Sub(NewAmount(100))
	require.True(underflow)

	restored, err := AmountFromBytes(sum.Bytes())
	require.NoError(err)
	require.True(sum.Eq(restored))
}

func TestFunds(t *testing.T) {
	require := require.New(t)

	funds := Funds{
		{AssetID: 1, Amount: NewAmount(100)},
		{AssetID: 2, Amount: NewAmount(0)},
		{AssetID: 3, Amount: NewAmount(7)},
	}
	require.NoError(funds.Validate())

	total, err := funds.Total()
	require.NoError(err)
	require.Equal(uint64(107), total.Uint64())
	require.Len(funds.NonZero(), 2)

	dup := append(funds, FundsEntry{AssetID: 1, Amount: NewAmount(1)})
	require.ErrorIs(dup.Validate(), ErrDuplicateAsset)
}

func TestFundsJSON(t *testing.T) {
	require := require.New(t)

	var funds Funds
	require.NoError(json.Unmarshal([]byte(`[{"asset_id":"5","amount":"100"},{"asset_id":6,"amount":1}]`), &funds))
	require.Len(funds, 2)
	require.Equal(AssetID(5), funds[0].AssetID)
	require.Equal(uint64(100), funds[0].Amount.Uint64())

	b, err := json.Marshal(funds)
	require.NoError(err)
	require.Equal(`[{"asset_id":"5","amount":"100"},{"asset_id":"6","amount":"1"}]`, string(b))
}

func TestCallOrigin(t *testing.T) {
	require := require.New(t)

	local := NewLocalOrigin("alice")
	require.NoError(local.Validate())
	require.Equal(UserOrigin{NetworkID: 1, UserID: []byte("alice")}, local.User(1))

	remote := NewRemoteOrigin(UserOrigin{NetworkID: 2, UserID: []byte("bob")})
	require.NoError(remote.Validate())
	require.Equal(NetworkID(2), remote.User(1).NetworkID)

	require.ErrorIs(CallOrigin{}.Validate(), errAmbiguousOrigin)
}

func TestInterpreterOriginBytes(t *testing.T) {
	require := require.New(t)

	origin := InterpreterOrigin{
		UserOrigin: UserOrigin{NetworkID: 1, UserID: []byte("alice")},
		Salt:       []byte{0},
	}
	b, err := origin.Bytes()
	require.NoError(err)

	parsed, err := ParseInterpreterOrigin(b)
	require.NoError(err)
	require.Equal(origin, parsed)
	require.Equal("1-616c696365-00", parsed.String())

	// the encoding is the storage key, so it must be stable
	again, err := parsed.Bytes()
	require.NoError(err)
	require.Equal(b, again)

	_, err = ParseInterpreterOrigin([]byte{0xff})
	require.Error(err)
}
