// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"errors"
	"fmt"
	"time"
)

var (
	errEmptyOutbox = errors.New("empty outbox")
	errFullOutbox  = errors.New("full outbox")
	outboxSize     = 1024
)

type PacketKind string

const (
	PacketTransfer PacketKind = "ics20_transfer"
	PacketRaw      PacketKind = "send_packet"
)

// Packet is an outgoing IBC packet waiting for a relayer.
type Packet struct {
	Kind      PacketKind    `json:"kind"`
	ChannelID string        `json:"channel_id"`
	Sender    string        `json:"sender"`
	ToAddress string        `json:"to_address,omitempty"`
	Amount    *Coin         `json:"amount,omitempty"`
	Memo      string        `json:"memo,omitempty"`
	Data      []byte        `json:"data,omitempty"`
	Timeout   time.Duration `json:"timeout"`
}

// Outbox queues packets in emission order. Packets are only queued once the
// step that emitted them has committed.
type Outbox struct {
	packets chan Packet
}

func NewOutbox() *Outbox {
	return &Outbox{packets: make(chan Packet, outboxSize)}
}

func (o *Outbox) Add(p Packet) error {
	select {
	case o.packets <- p:
		return nil
	default:
		return fmt.Errorf("failed to queue %s packet on %s: %w at size (%d)", p.Kind, p.ChannelID, errFullOutbox, outboxSize)
	}
}

func (o *Outbox) Next() (Packet, error) {
	select {
	case p := <-o.packets:
		return p, nil
	default:
		return Packet{}, errEmptyOutbox
	}
}

// Drain removes and returns every queued packet.
func (o *Outbox) Drain() []Packet {
	var packets []Packet
	for {
		p, err := o.Next()
		if err != nil {
			return packets
		}
		packets = append(packets, p)
	}
}

func (o *Outbox) Len() int {
	return len(o.packets)
}

// Free reports how many more packets fit before the outbox is full.
func (o *Outbox) Free() int {
	return cap(o.packets) - len(o.packets)
}
