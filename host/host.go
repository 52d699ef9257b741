// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
)

const (
	// MaxCallDepth bounds how deeply actions may nest.
	MaxCallDepth = 32

	// ContractAddressAttribute names the contract on execute and instantiate
	// events.
	ContractAddressAttribute = "_contract_address"

	EventExecute     = "execute"
	EventInstantiate = "instantiate"
	EventTransfer    = "transfer"
	EventIbcTransfer = "ibc_transfer"
	EventSendPacket  = "send_packet"

	// ContractEventPrefix namespaces the events emitted by contracts.
	ContractEventPrefix = "wasm-"
)

var (
	bankPrefix  = []byte("bank")
	storePrefix = []byte("store")
)

// Receipt is the outcome of a top-level message: every event emitted along
// the causal chain, in execution order.
type Receipt struct {
	Height uint64  `json:"height"`
	Data   []byte  `json:"data,omitempty"`
	Events []Event `json:"events"`
}

// Host runs contracts. A top-level message is handled to completion before
// the next one starts. Every handler invocation is a step: its writes, and
// the funds attached to it, are committed when it succeeds and discarded when
// it fails. Actions emitted by a handler run after it, in emission order,
// and a reply is delivered to the emitter before the next sibling starts.
// A failing step stops the chain; steps committed before it persist.
type Host struct {
	lock  sync.Mutex
	clock mockable.Clock

	vDB    *versiondb.Database
	store  database.Database
	bank   *Bank
	outbox *Outbox

	codes     map[uint64]Factory
	contracts map[string]*instance
	height    uint64

	// packets emitted by the current step
	pending []Packet
}

func New(db database.Database) *Host {
	vDB := versiondb.New(db)
	return &Host{
		vDB:       vDB,
		store:     prefixdb.New(storePrefix, vDB),
		bank:      NewBank(prefixdb.New(bankPrefix, vDB)),
		outbox:    NewOutbox(),
		codes:     make(map[uint64]Factory),
		contracts: make(map[string]*instance),
	}
}

// StoreCode makes [factory] available for instantiation under [codeID].
func (h *Host) StoreCode(codeID uint64, factory Factory) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.codes[codeID]; ok {
		return fmt.Errorf("code %d already stored", codeID)
	}
	h.codes[codeID] = factory
	return nil
}

func (h *Host) Bank() *Bank { return h.bank }

func (h *Host) Outbox() *Outbox { return h.outbox }

func (h *Host) Height() uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.height
}

// Mint credits [coins] to [to] and commits immediately.
func (h *Host) Mint(to string, coins ...Coin) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.step(func() error {
		return h.bank.Mint(to, coins...)
	})
}

// Contract returns the contract deployed at [addr].
func (h *Host) Contract(addr string) (Contract, bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	inst, ok := h.contracts[addr]
	if !ok {
		return nil, false
	}
	return inst.contract, true
}

// Instantiate submits a top-level instantiation and returns the new address.
func (h *Host) Instantiate(
	ctx context.Context,
	sender string,
	codeID uint64,
	label string,
	msg []byte,
	funds Coins,
) (string, *Receipt, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if err := h.checkSender(sender); err != nil {
		return "", nil, err
	}
	h.height++
	result, err := h.dispatch(ctx, sender, WasmInstantiate{
		Admin:  sender,
		CodeID: codeID,
		Label:  label,
		Msg:    msg,
		Funds:  funds,
	}, 0)
	if err != nil {
		return "", nil, err
	}
	return ContractAddress(codeID, sender, label), h.receipt(result), nil
}

// Execute submits a top-level call of [contract] by [sender].
func (h *Host) Execute(ctx context.Context, sender, contract string, msg []byte, funds Coins) (*Receipt, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if err := h.checkSender(sender); err != nil {
		return nil, err
	}
	h.height++
	result, err := h.dispatch(ctx, sender, WasmExecute{
		Contract: contract,
		Msg:      msg,
		Funds:    funds,
	}, 0)
	if err != nil {
		log.Debug("message failed", "height", h.height, "sender", sender, "contract", contract, "err", err)
		return nil, err
	}
	return h.receipt(result), nil
}

// checkSender rejects top-level senders that only the host may act for:
// contracts, which act through the actions they emit, and escrow accounts.
func (h *Host) checkSender(sender string) error {
	if err := ValidateAddress(sender); err != nil {
		return err
	}
	if _, ok := h.contracts[sender]; ok {
		return fmt.Errorf("%w: %s is a contract", ErrReservedSender, sender)
	}
	if strings.HasPrefix(sender, escrowPrefix) {
		return fmt.Errorf("%w: %s is an escrow account", ErrReservedSender, sender)
	}
	return nil
}

// Query runs a read-only query against committed state.
func (h *Host) Query(ctx context.Context, contract string, msg []byte) ([]byte, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	inst, ok := h.contracts[contract]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, contract)
	}
	return inst.contract.Query(ctx, h.env(contract), msg)
}

func (h *Host) receipt(result *SubMsgResult) *Receipt {
	return &Receipt{
		Height: h.height,
		Data:   result.Data,
		Events: result.Events,
	}
}

func (h *Host) env(self string) Env {
	return Env{
		Self:   self,
		Height: h.height,
		Time:   h.clock.Time(),
	}
}

// step runs [fn] atomically.
func (h *Host) step(fn func() error) error {
	h.pending = h.pending[:0]
	if err := fn(); err != nil {
		h.abort()
		return err
	}
	// packets are queued only with their step, so room is checked first
	if free := h.outbox.Free(); len(h.pending) > free {
		err := fmt.Errorf("%w: %d packets pending, room for %d", errFullOutbox, len(h.pending), free)
		h.abort()
		return err
	}
	if err := h.vDB.Commit(); err != nil {
		h.abort()
		return fmt.Errorf("failed to commit step: %w", err)
	}
	for _, p := range h.pending {
		if err := h.outbox.Add(p); err != nil {
			return err
		}
	}
	h.pending = h.pending[:0]
	return nil
}

func (h *Host) abort() {
	h.vDB.Abort()
	h.pending = h.pending[:0]
	for _, inst := range h.contracts {
		if r, ok := inst.contract.(Rollbacker); ok {
			r.Rollback()
		}
	}
}

// dispatch performs [msg] on behalf of [emitter], then runs whatever the
// invoked contract emitted.
func (h *Host) dispatch(ctx context.Context, emitter string, msg Msg, depth int) (*SubMsgResult, error) {
	if depth > MaxCallDepth {
		return nil, ErrCallDepth
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case WasmExecute:
		inst, ok := h.contracts[m.Contract]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownContract, m.Contract)
		}
		var resp *Response
		err := h.step(func() error {
			if err := h.bank.Send(emitter, m.Contract, m.Funds); err != nil {
				return err
			}
			var err error
			resp, err = inst.contract.Execute(ctx, h.env(m.Contract), MessageInfo{Sender: emitter, Funds: m.Funds}, m.Msg)
			return err
		})
		if err != nil {
			return nil, err
		}
		head := NewEvent(EventExecute).Add(ContractAddressAttribute, m.Contract)
		return h.settle(ctx, m.Contract, inst, head, resp, depth)

	case WasmInstantiate:
		factory, ok := h.codes[m.CodeID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCode, m.CodeID)
		}
		addr := ContractAddress(m.CodeID, emitter, m.Label)
		inst, exists := h.contracts[addr]
		if exists && inst.codeID != m.CodeID {
			return nil, fmt.Errorf("%w: %s", errCodeMismatch, addr)
		}
		var resp *Response
		err := h.step(func() error {
			if !exists {
				contract, err := factory(prefixdb.New([]byte(addr), h.store))
				if err != nil {
					return err
				}
				inst = &instance{
					codeID:   m.CodeID,
					admin:    m.Admin,
					label:    m.Label,
					contract: contract,
				}
			}
			if err := h.bank.Send(emitter, addr, m.Funds); err != nil {
				return err
			}
			var err error
			resp, err = inst.contract.Instantiate(ctx, h.env(addr), MessageInfo{Sender: emitter, Funds: m.Funds}, m.Msg)
			return err
		})
		if err != nil {
			return nil, err
		}
		if !exists {
			h.contracts[addr] = inst
			log.Debug("contract instantiated", "address", addr, "codeID", m.CodeID, "label", m.Label)
		}
		head := NewEvent(EventInstantiate).
			Add(ContractAddressAttribute, addr).
			Add("code_id", fmt.Sprint(m.CodeID))
		return h.settle(ctx, addr, inst, head, resp, depth)

	case BankSend:
		err := h.step(func() error {
			return h.bank.Send(emitter, m.ToAddress, m.Amount)
		})
		if err != nil {
			return nil, err
		}
		return &SubMsgResult{Events: []Event{
			NewEvent(EventTransfer).
				Add("recipient", m.ToAddress).
				Add("sender", emitter).
				Add("amount", formatCoins(m.Amount)),
		}}, nil

	case IbcTransfer:
		if err := ValidateAddress(m.ToAddress); err != nil {
			return nil, err
		}
		err := h.step(func() error {
			if err := h.bank.Send(emitter, EscrowAddress(m.ChannelID), Coins{m.Amount}); err != nil {
				return err
			}
			coin := m.Amount
			h.pending = append(h.pending, Packet{
				Kind:      PacketTransfer,
				ChannelID: m.ChannelID,
				Sender:    emitter,
				ToAddress: m.ToAddress,
				Amount:    &coin,
				Memo:      m.Memo,
				Timeout:   m.Timeout,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &SubMsgResult{Events: []Event{
			NewEvent(EventIbcTransfer).
				Add("channel", m.ChannelID).
				Add("sender", emitter).
				Add("receiver", m.ToAddress).
				Add("amount", m.Amount.Amount.String()).
				Add("denom", m.Amount.Denom),
		}}, nil

	case IbcSendPacket:
		err := h.step(func() error {
			h.pending = append(h.pending, Packet{
				Kind:      PacketRaw,
				ChannelID: m.ChannelID,
				Sender:    emitter,
				Data:      m.Data,
				Timeout:   m.Timeout,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &SubMsgResult{Events: []Event{
			NewEvent(EventSendPacket).
				Add("packet_src_channel", m.ChannelID).
				Add("packet_sender", emitter),
		}}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMsg, msg)
	}
}

// settle records the events of a finished handler and runs its actions.
func (h *Host) settle(
	ctx context.Context,
	addr string,
	inst *instance,
	head Event,
	resp *Response,
	depth int,
) (*SubMsgResult, error) {
	if resp == nil {
		resp = NewResponse()
	}
	result := &SubMsgResult{
		Events: append([]Event{head}, contractEvents(addr, resp.Events)...),
		Data:   resp.Data,
	}
	events, err := h.runActions(ctx, addr, inst, resp.Actions, depth+1)
	if err != nil {
		return nil, err
	}
	result.Events = append(result.Events, events...)
	return result, nil
}

// runActions executes [actions] in order on behalf of [addr]. A reply is
// handled before the next action starts.
func (h *Host) runActions(ctx context.Context, addr string, inst *instance, actions []Action, depth int) ([]Event, error) {
	var events []Event
	for _, action := range actions {
		result, err := h.dispatch(ctx, addr, action.Msg, depth)
		if err != nil {
			if action.ReplyOn != ReplyError && action.ReplyOn != ReplyAlways {
				return nil, err
			}
			replyEvents, err := h.reply(ctx, addr, inst, Reply{ID: action.ID, Err: err.Error()}, depth)
			if err != nil {
				return nil, err
			}
			events = append(events, replyEvents...)
			continue
		}

		events = append(events, result.Events...)
		if action.ReplyOn != ReplySuccess && action.ReplyOn != ReplyAlways {
			continue
		}
		replyEvents, err := h.reply(ctx, addr, inst, Reply{ID: action.ID, Result: result}, depth)
		if err != nil {
			return nil, err
		}
		events = append(events, replyEvents...)
	}
	return events, nil
}

func (h *Host) reply(ctx context.Context, addr string, inst *instance, reply Reply, depth int) ([]Event, error) {
	var resp *Response
	err := h.step(func() error {
		var err error
		resp, err = inst.contract.Reply(ctx, h.env(addr), reply)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reply %d to %s failed: %w", reply.ID, addr, err)
	}
	if resp == nil {
		return nil, nil
	}
	events := contractEvents(addr, resp.Events)
	nested, err := h.runActions(ctx, addr, inst, resp.Actions, depth+1)
	if err != nil {
		return nil, err
	}
	return append(events, nested...), nil
}

func contractEvents(addr string, events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		attrs := make([]Attribute, 0, len(e.Attributes)+1)
		attrs = append(attrs, Attribute{Key: ContractAddressAttribute, Value: addr})
		attrs = append(attrs, e.Attributes...)
		out = append(out, Event{Type: ContractEventPrefix + e.Type, Attributes: attrs})
	}
	return out
}

func formatCoins(coins Coins) string {
	parts := make([]string, 0, len(coins))
	for _, coin := range coins {
		parts = append(parts, coin.Amount.String()+coin.Denom)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
