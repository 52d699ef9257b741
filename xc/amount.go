// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	errNegativeAmount = errors.New("amount cannot be negative")
	errAmountOverflow = errors.New("amount overflows 256 bits")
)

// Amount is an unsigned 256-bit token amount. It shares the memory layout of
// uint256.Int so the codec serializes it as four uint64 limbs.
type Amount uint256.Int

// NewAmount returns [v] as an Amount.
func NewAmount(v uint64) Amount {
	return Amount(*uint256.NewInt(v))
}

// ParseAmount parses a base 10 string.
func ParseAmount(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if b.Sign() < 0 {
		return Amount{}, errNegativeAmount
	}
	i, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, errAmountOverflow
	}
	return Amount(*i), nil
}

func (a Amount) int() *uint256.Int {
	i := uint256.Int(a)
	return &i
}

func (a Amount) IsZero() bool { return a.int().IsZero() }

func (a Amount) Uint64() uint64 { return a.int().Uint64() }

func (a Amount) Cmp(b Amount) int { return a.int().Cmp(b.int()) }

func (a Amount) Eq(b Amount) bool { return a.int().Eq(b.int()) }

// Add returns a+b and whether the sum overflowed.
func (a Amount) Add(b Amount) (Amount, bool) {
	sum, overflow := new(uint256.Int).AddOverflow(a.int(), b.int())
	return Amount(*sum), overflow
}

// Sub returns a-b and whether the difference underflowed.
func (a Amount) Sub(b Amount) (Amount, bool) {
	diff, underflow := new(uint256.Int).SubOverflow(a.int(), b.int())
	return Amount(*diff), underflow
}

// Bytes returns the 32 byte big-endian encoding of [a].
func (a Amount) Bytes() []byte {
	b := a.int().Bytes32()
	return b[:]
}

// AmountFromBytes is the inverse of Bytes.
func AmountFromBytes(b []byte) (Amount, error) {
	if len(b) != 32 {
		return Amount{}, fmt.Errorf("expected 32 amount bytes but got %d", len(b))
	}
	return Amount(*new(uint256.Int).SetBytes(b)), nil
}

func (a Amount) String() string { return a.int().ToBig().String() }

// MarshalJSON encodes the amount as a decimal string so values above 2^53
// survive JavaScript clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
