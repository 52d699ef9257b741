// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/xcrouter/xc"
)

// Bank is the native ledger: balances per (denom, address).
type Bank struct {
	db database.Database
}

func NewBank(db database.Database) *Bank {
	return &Bank{db: db}
}

func balanceKey(denom, addr string) []byte {
	key := make([]byte, 0, len(denom)+1+len(addr))
	key = append(key, denom...)
	key = append(key, 0)
	return append(key, addr...)
}

// Balance returns the balance of [addr] in [denom]. Unknown accounts hold
// nothing.
func (b *Bank) Balance(addr, denom string) (xc.Amount, error) {
	raw, err := b.db.Get(balanceKey(denom, addr))
	switch {
	case errors.Is(err, database.ErrNotFound):
		return xc.Amount{}, nil
	case err != nil:
		return xc.Amount{}, fmt.Errorf("failed to read %s balance of %s: %w", denom, addr, err)
	}
	return xc.AmountFromBytes(raw)
}

func (b *Bank) setBalance(addr, denom string, amount xc.Amount) error {
	key := balanceKey(denom, addr)
	if amount.IsZero() {
		return b.db.Delete(key)
	}
	return b.db.Put(key, amount.Bytes())
}

// Mint credits [coins] to [to] out of thin air. Only genesis and tests use it.
func (b *Bank) Mint(to string, coins ...Coin) error {
	for _, coin := range coins {
		balance, err := b.Balance(to, coin.Denom)
		if err != nil {
			return err
		}
		sum, overflow := balance.Add(coin.Amount)
		if overflow {
			return fmt.Errorf("minting %s%s to %s overflows", coin.Amount, coin.Denom, to)
		}
		if err := b.setBalance(to, coin.Denom, sum); err != nil {
			return err
		}
	}
	return nil
}

// Send moves [coins] from [from] to [to]. Zero coins are ignored.
func (b *Bank) Send(from, to string, coins Coins) error {
	for _, coin := range coins {
		if coin.Amount.IsZero() {
			continue
		}
		fromBalance, err := b.Balance(from, coin.Denom)
		if err != nil {
			return err
		}
		rest, underflow := fromBalance.Sub(coin.Amount)
		if underflow {
			return fmt.Errorf("%w: %s has %s%s, needs %s%s",
				ErrInsufficientBalance, from, fromBalance, coin.Denom, coin.Amount, coin.Denom)
		}
		if err := b.setBalance(from, coin.Denom, rest); err != nil {
			return err
		}

		toBalance, err := b.Balance(to, coin.Denom)
		if err != nil {
			return err
		}
		sum, overflow := toBalance.Add(coin.Amount)
		if overflow {
			return fmt.Errorf("crediting %s%s to %s overflows", coin.Amount, coin.Denom, to)
		}
		if err := b.setBalance(to, coin.Denom, sum); err != nil {
			return err
		}
	}
	return nil
}
