// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"

	"github.com/ava-labs/xcrouter/xc"
)

var (
	tokenBalancePrefix   = []byte("balance")
	tokenAllowancePrefix = []byte("allowance")

	errInsufficientAllowance = errors.New("insufficient allowance")

	_ Contract = (*Token)(nil)
)

// TokenBalance is an initial balance of a token.
type TokenBalance struct {
	Address string    `json:"address"`
	Amount  xc.Amount `json:"amount"`
}

type TokenInstantiateMsg struct {
	Name            string         `json:"name"`
	Symbol          string         `json:"symbol"`
	InitialBalances []TokenBalance `json:"initial_balances"`
}

type TokenTransfer struct {
	Recipient string    `json:"recipient"`
	Amount    xc.Amount `json:"amount"`
}

type TokenTransferFrom struct {
	Owner     string    `json:"owner"`
	Recipient string    `json:"recipient"`
	Amount    xc.Amount `json:"amount"`
}

type TokenIncreaseAllowance struct {
	Spender string    `json:"spender"`
	Amount  xc.Amount `json:"amount"`
}

// TokenExecuteMsg is the message set of a virtual token contract. Exactly one
// field is set.
type TokenExecuteMsg struct {
	Transfer          *TokenTransfer          `json:"transfer,omitempty"`
	TransferFrom      *TokenTransferFrom      `json:"transfer_from,omitempty"`
	IncreaseAllowance *TokenIncreaseAllowance `json:"increase_allowance,omitempty"`
}

type TokenQueryMsg struct {
	Balance *struct {
		Address string `json:"address"`
	} `json:"balance,omitempty"`
}

type TokenBalanceResponse struct {
	Balance xc.Amount `json:"balance"`
}

// Token is a virtual token: a contract keeping its own balance sheet, moved
// by calling it rather than through the bank.
type Token struct {
	balances   database.Database
	allowances database.Database
}

// NewToken is a Factory for Token.
func NewToken(db database.Database) (Contract, error) {
	return &Token{
		balances:   prefixdb.New(tokenBalancePrefix, db),
		allowances: prefixdb.New(tokenAllowancePrefix, db),
	}, nil
}

func (t *Token) Instantiate(_ context.Context, _ Env, _ MessageInfo, msg []byte) (*Response, error) {
	var init TokenInstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("failed to parse token instantiate message: %w", err)
	}
	for _, balance := range init.InitialBalances {
		if err := t.credit(balance.Address, balance.Amount); err != nil {
			return nil, err
		}
	}
	return NewResponse().AddEvent(NewEvent("token.instantiated").Add("symbol", init.Symbol)), nil
}

func (t *Token) Execute(_ context.Context, _ Env, info MessageInfo, msg []byte) (*Response, error) {
	var exec TokenExecuteMsg
	if err := json.Unmarshal(msg, &exec); err != nil {
		return nil, fmt.Errorf("failed to parse token message: %w", err)
	}
	switch {
	case exec.Transfer != nil:
		m := exec.Transfer
		if err := t.move(info.Sender, m.Recipient, m.Amount); err != nil {
			return nil, err
		}
		return NewResponse().AddEvent(NewEvent("token.transfer").
			Add("from", info.Sender).
			Add("to", m.Recipient).
			Add("amount", m.Amount.String())), nil
	case exec.TransferFrom != nil:
		m := exec.TransferFrom
		if err := t.spend(m.Owner, info.Sender, m.Amount); err != nil {
			return nil, err
		}
		if err := t.move(m.Owner, m.Recipient, m.Amount); err != nil {
			return nil, err
		}
		return NewResponse().AddEvent(NewEvent("token.transfer_from").
			Add("from", m.Owner).
			Add("to", m.Recipient).
			Add("by", info.Sender).
			Add("amount", m.Amount.String())), nil
	case exec.IncreaseAllowance != nil:
		m := exec.IncreaseAllowance
		current, err := t.allowance(info.Sender, m.Spender)
		if err != nil {
			return nil, err
		}
		sum, overflow := current.Add(m.Amount)
		if overflow {
			return nil, fmt.Errorf("allowance of %s overflows", m.Spender)
		}
		if err := t.allowances.Put(allowanceKey(info.Sender, m.Spender), sum.Bytes()); err != nil {
			return nil, err
		}
		return NewResponse(), nil
	default:
		return nil, ErrUnsupportedMsg
	}
}

func (t *Token) Reply(context.Context, Env, Reply) (*Response, error) {
	return nil, ErrUnsupportedMsg
}

func (t *Token) Query(_ context.Context, _ Env, msg []byte) ([]byte, error) {
	var q TokenQueryMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return nil, err
	}
	if q.Balance == nil {
		return nil, ErrUnsupportedMsg
	}
	balance, err := t.Balance(q.Balance.Address)
	if err != nil {
		return nil, err
	}
	return json.Marshal(TokenBalanceResponse{Balance: balance})
}

// Balance returns the token balance of [addr].
func (t *Token) Balance(addr string) (xc.Amount, error) {
	return readAmount(t.balances, []byte(addr))
}

func (t *Token) allowance(owner, spender string) (xc.Amount, error) {
	return readAmount(t.allowances, allowanceKey(owner, spender))
}

func (t *Token) spend(owner, spender string, amount xc.Amount) error {
	if owner == spender {
		return nil
	}
	current, err := t.allowance(owner, spender)
	if err != nil {
		return err
	}
	rest, underflow := current.Sub(amount)
	if underflow {
		return fmt.Errorf("%w: %s may spend %s of %s, needs %s", errInsufficientAllowance, spender, current, owner, amount)
	}
	return t.allowances.Put(allowanceKey(owner, spender), rest.Bytes())
}

func (t *Token) credit(addr string, amount xc.Amount) error {
	balance, err := t.Balance(addr)
	if err != nil {
		return err
	}
	sum, overflow := balance.Add(amount)
	if overflow {
		return fmt.Errorf("token balance of %s overflows", addr)
	}
	return t.balances.Put([]byte(addr), sum.Bytes())
}

func (t *Token) move(from, to string, amount xc.Amount) error {
	balance, err := t.Balance(from)
	if err != nil {
		return err
	}
	rest, underflow := balance.Sub(amount)
	if underflow {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, balance, amount)
	}
	if err := t.balances.Put([]byte(from), rest.Bytes()); err != nil {
		return err
	}
	return t.credit(to, amount)
}

func allowanceKey(owner, spender string) []byte {
	key := make([]byte, 0, len(owner)+1+len(spender))
	key = append(key, owner...)
	key = append(key, 0)
	return append(key, spender...)
}

func readAmount(db database.Database, key []byte) (xc.Amount, error) {
	raw, err := db.Get(key)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return xc.Amount{}, nil
	case err != nil:
		return xc.Amount{}, err
	}
	return xc.AmountFromBytes(raw)
}
