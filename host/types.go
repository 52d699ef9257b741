// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"time"

	"github.com/ava-labs/xcrouter/xc"
)

// Coin is an amount of a native ledger denomination.
type Coin struct {
	Denom  string    `json:"denom"`
	Amount xc.Amount `json:"amount"`
}

func NewCoin(denom string, amount uint64) Coin {
	return Coin{Denom: denom, Amount: xc.NewAmount(amount)}
}

// Coins is a list of native amounts, at most one per denom.
type Coins []Coin

// AmountOf returns the amount of [denom] in [c].
func (c Coins) AmountOf(denom string) (xc.Amount, bool) {
	for _, coin := range c {
		if coin.Denom == denom {
			return coin.Amount, true
		}
	}
	return xc.Amount{}, false
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a typed list of attributes emitted by a handler.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

func NewEvent(ty string) Event {
	return Event{Type: ty}
}

// Add returns [e] with the attribute appended.
func (e Event) Add(key, value string) Event {
	e.Attributes = append(e.Attributes, Attribute{Key: key, Value: value})
	return e
}

// Attribute returns the first value stored under [key].
func (e Event) Attribute(key string) (string, bool) {
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Env describes the contract being invoked and the current block.
type Env struct {
	Self   string
	Height uint64
	Time   time.Time
}

// MessageInfo describes the caller of a handler and the native funds it
// attached. Attached funds are already credited to the callee.
type MessageInfo struct {
	Sender string
	Funds  Coins
}

// ReplyOn selects when the emitter of an action is told about its outcome.
type ReplyOn uint8

const (
	ReplyNever ReplyOn = iota
	ReplySuccess
	ReplyError
	ReplyAlways
)

// Msg is a deferred call. The host executes it after the handler that
// emitted it has returned.
type Msg interface {
	msgType() string
}

// BankSend moves native coins from the emitter to [ToAddress].
type BankSend struct {
	ToAddress string
	Amount    Coins
}

// WasmExecute calls another contract, optionally attaching native coins.
type WasmExecute struct {
	Contract string
	Msg      []byte
	Funds    Coins
}

// WasmInstantiate creates a contract from a stored code. The address is
// derived from the code, the creator and the label.
type WasmInstantiate struct {
	Admin  string
	CodeID uint64
	Label  string
	Msg    []byte
	Funds  Coins
}

// IbcTransfer escrows [Amount] and queues an ICS-20 packet for relaying.
type IbcTransfer struct {
	ChannelID string
	ToAddress string
	Amount    Coin
	Timeout   time.Duration
	Memo      string
}

// IbcSendPacket queues a raw packet on a contract owned channel.
type IbcSendPacket struct {
	ChannelID string
	Data      []byte
	Timeout   time.Duration
}

func (BankSend) msgType() string        { return "bank_send" }
func (WasmExecute) msgType() string     { return "wasm_execute" }
func (WasmInstantiate) msgType() string { return "wasm_instantiate" }
func (IbcTransfer) msgType() string     { return "ibc_transfer" }
func (IbcSendPacket) msgType() string   { return "ibc_send_packet" }

// Action is a Msg plus the reply the emitter asked for. ID correlates the
// reply with the action.
type Action struct {
	ID      uint64
	ReplyOn ReplyOn
	Msg     Msg
}

// Response is what a handler returns: deferred actions, in the order they
// must run, and events.
type Response struct {
	Actions []Action
	Events  []Event
	Data    []byte
}

func NewResponse() *Response {
	return &Response{}
}

// AddMsg appends a fire and forget action.
func (r *Response) AddMsg(msg Msg) *Response {
	r.Actions = append(r.Actions, Action{Msg: msg})
	return r
}

// AddMsgs appends several fire and forget actions.
func (r *Response) AddMsgs(msgs ...Msg) *Response {
	for _, msg := range msgs {
		r.AddMsg(msg)
	}
	return r
}

// AddReplyOnSuccess appends an action whose successful result is delivered
// back to the emitter under [id] before the next sibling action runs.
func (r *Response) AddReplyOnSuccess(msg Msg, id uint64) *Response {
	r.Actions = append(r.Actions, Action{ID: id, ReplyOn: ReplySuccess, Msg: msg})
	return r
}

func (r *Response) AddEvent(e Event) *Response {
	r.Events = append(r.Events, e)
	return r
}

// SubMsgResult is the outcome of a successful action.
type SubMsgResult struct {
	Events []Event
	Data   []byte
}

// Reply is delivered to the emitter of an action that asked for one. Exactly
// one of Result and Err is set.
type Reply struct {
	ID     uint64
	Result *SubMsgResult
	Err    string
}
