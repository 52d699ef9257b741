// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	maxAddressLen = 128
	escrowPrefix  = "escrow-"
)

var (
	ErrUnknownContract     = errors.New("unknown contract")
	ErrUnknownCode         = errors.New("unknown code id")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrCallDepth           = errors.New("maximum call depth exceeded")
	ErrUnsupportedMsg      = errors.New("unsupported message")
	ErrReservedSender      = errors.New("sender cannot sign a top-level message")
	errCodeMismatch        = errors.New("address already holds a contract of another code")
)

// Contract is a program the host can invoke. Each contract gets a private
// database; writes are committed or rolled back by the host per step.
type Contract interface {
	Instantiate(ctx context.Context, env Env, info MessageInfo, msg []byte) (*Response, error)
	Execute(ctx context.Context, env Env, info MessageInfo, msg []byte) (*Response, error)
	Reply(ctx context.Context, env Env, reply Reply) (*Response, error)
	Query(ctx context.Context, env Env, msg []byte) ([]byte, error)
}

// Rollbacker is implemented by contracts that keep in-memory state derived
// from their database, such as caches. Rollback is called whenever the host
// aborts a step.
type Rollbacker interface {
	Rollback()
}

// Factory builds a contract instance on top of its private database.
type Factory func(db database.Database) (Contract, error)

type instance struct {
	codeID   uint64
	admin    string
	label    string
	contract Contract
}

// ContractAddress derives the address of the contract instantiated from
// [codeID] by [creator] with [label]. The same inputs always give the same
// address.
func ContractAddress(codeID uint64, creator, label string) string {
	p := wrappers.Packer{MaxSize: 1 << 18}
	p.PackLong(codeID)
	p.PackStr(creator)
	p.PackStr(label)
	return ids.ShortID(hashing.ComputeHash160Array(p.Bytes)).String()
}

// ValidateAddress checks that [addr] is a printable, bounded identifier.
func ValidateAddress(addr string) error {
	if addr == "" || len(addr) > maxAddressLen {
		return fmt.Errorf("%w: length %d", ErrInvalidAddress, len(addr))
	}
	for _, r := range addr {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
	}
	return nil
}

// EscrowAddress is the account holding coins sent out over [channelID].
func EscrowAddress(channelID string) string {
	return escrowPrefix + ids.ShortID(hashing.ComputeHash160Array([]byte("ics20/"+channelID))).String()
}
