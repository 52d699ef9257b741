// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"
	"fmt"

	"github.com/ava-labs/xcrouter/xc"
)

var (
	ErrAlreadyRegistered = errors.New("asset already registered")
	ErrUnsupportedAsset  = errors.New("unsupported asset")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrHost              = errors.New("host error")
	ErrDuplicateAsset    = xc.ErrDuplicateAsset
	ErrInvalidMessage    = errors.New("invalid message")
)

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func hostError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrHost, fmt.Sprintf(format, args...))
}
