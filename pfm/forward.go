// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pfm builds packet forward middleware memos: the nested instructions
// an outbound ICS-20 transfer carries so that every hop knows where to send
// the funds next.
package pfm

import (
	"encoding/json"
	"errors"
)

var errMissingReceiver = errors.New("forward memo requires a receiver")

// Forward is one node of a packet forward memo. The JSON shape is consumed by
// the forwarding middleware of the receiving chain and must not change.
type Forward struct {
	Receiver  string          `json:"receiver"`
	Port      *string         `json:"port,omitempty"`
	Channel   *string         `json:"channel,omitempty"`
	Timeout   *string         `json:"timeout,omitempty"`
	Retries   *uint8          `json:"retries,omitempty"`
	Substrate *SubstrateRoute `json:"substrate,omitempty"`
	Next      *Forward        `json:"next,omitempty"`
}

// SubstrateRoute routes inside a parachain ecosystem. Those chains do not
// understand memos, so the only choice is a parachain or the relay chain. A
// nil ParaID means the relay chain.
type SubstrateRoute struct {
	ParaID *uint32 `json:"para_id,omitempty"`
}

// forward is Forward without its methods so decoding does not recurse.
type forward Forward

// UnmarshalJSON enforces the required receiver on every node.
func (f *Forward) UnmarshalJSON(b []byte) error {
	var raw forward
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Receiver == "" {
		return errMissingReceiver
	}
	*f = Forward(raw)
	return nil
}

// Depth returns the number of nodes in the chain starting at [f].
func (f *Forward) Depth() int {
	depth := 0
	for node := f; node != nil; node = node.Next {
		depth++
	}
	return depth
}

// Last returns the final node of the chain.
func (f *Forward) Last() *Forward {
	node := f
	for node.Next != nil {
		node = node.Next
	}
	return node
}

// Memo is the top level memo of an ICS-20 packet. Forward is read by the
// forwarding middleware and Wasm by the ibc-hooks middleware.
type Memo struct {
	Forward *Forward      `json:"forward,omitempty"`
	Wasm    *WasmCallback `json:"wasm,omitempty"`
}

// WasmCallback asks the receiving chain to execute [Msg] on [Contract] once
// the transfer lands.
type WasmCallback struct {
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
}

// Marshal returns the memo as the string the transfer carries.
func (m Memo) Marshal() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseMemo decodes a memo produced by Memo.Marshal.
func ParseMemo(s string) (Memo, error) {
	var m Memo
	err := json.Unmarshal([]byte(s), &m)
	return m, err
}
