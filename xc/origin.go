// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errAmbiguousOrigin  = errors.New("call origin must be exactly one of local or remote")
	errOriginWrongCodec = errors.New("interpreter origin has wrong codec version")
)

// NetworkID identifies a chain known to the router.
type NetworkID uint32

// UserOrigin is a user on a given network.
type UserOrigin struct {
	NetworkID NetworkID `serialize:"true" json:"network_id"`
	UserID    []byte    `serialize:"true" json:"user_id"`
}

// LocalOrigin is a caller on the router's own chain.
type LocalOrigin struct {
	User string `json:"user"`
}

// RemoteOrigin is a caller relayed from another network.
type RemoteOrigin struct {
	UserOrigin UserOrigin `json:"user_origin"`
}

// CallOrigin is the verified initiator of a program execution. Exactly one of
// Local and Remote is set.
type CallOrigin struct {
	Local  *LocalOrigin  `json:"local,omitempty"`
	Remote *RemoteOrigin `json:"remote,omitempty"`
}

func NewLocalOrigin(user string) CallOrigin {
	return CallOrigin{Local: &LocalOrigin{User: user}}
}

func NewRemoteOrigin(user UserOrigin) CallOrigin {
	return CallOrigin{Remote: &RemoteOrigin{UserOrigin: user}}
}

func (o CallOrigin) Validate() error {
	if (o.Local == nil) == (o.Remote == nil) {
		return errAmbiguousOrigin
	}
	return nil
}

// User returns the user origin of [o] as seen from [local], the network the
// router runs on.
func (o CallOrigin) User(local NetworkID) UserOrigin {
	if o.Remote != nil {
		return o.Remote.UserOrigin
	}
	return UserOrigin{
		NetworkID: local,
		UserID:    []byte(o.Local.User),
	}
}

// InterpreterOrigin identifies a unique interpreter instance.
type InterpreterOrigin struct {
	UserOrigin UserOrigin `serialize:"true" json:"user_origin"`
	Salt       []byte     `serialize:"true" json:"salt"`
}

// Bytes returns the canonical encoding of [o], used both as a storage key and
// as the payload an interpreter echoes back on instantiation.
func (o InterpreterOrigin) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, &o)
}

// ParseInterpreterOrigin is the inverse of InterpreterOrigin.Bytes.
func ParseInterpreterOrigin(b []byte) (InterpreterOrigin, error) {
	o := InterpreterOrigin{}
	version, err := Codec.Unmarshal(b, &o)
	if err != nil {
		return InterpreterOrigin{}, err
	}
	if version != CodecVersion {
		return InterpreterOrigin{}, errOriginWrongCodec
	}
	return o, nil
}

func (o InterpreterOrigin) String() string {
	return fmt.Sprintf("%d-%x-%x", o.UserOrigin.NetworkID, o.UserOrigin.UserID, o.Salt)
}

// Program is an opaque program. The router never inspects it, it only hands
// it to an interpreter.
type Program struct {
	Tag          []byte          `json:"tag,omitempty"`
	Instructions json.RawMessage `json:"instructions,omitempty"`
}
