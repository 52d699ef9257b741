// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"

	"github.com/ava-labs/xcrouter/pfm"
	"github.com/ava-labs/xcrouter/xc"
)

const defaultLinkTimeout = 10 * time.Minute

var (
	networkItemPrefix    = []byte("item")
	networkLinkPrefix    = []byte("link")
	networkChannelPrefix = []byte("channel")

	errNetworkWrongVersion = errors.New("network record has wrong codec version")

	_ NetworkState = &networkState{}
)

// Ics20Config describes how fungible tokens reach a network.
type Ics20Config struct {
	// HookSender is an explicitly trusted sender of hook messages coming from
	// the network. If empty, only the derived hook sender is trusted.
	HookSender string `serialize:"true" json:"hook_sender,omitempty"`
	// PFM is set if the network runs the packet forward middleware.
	PFM bool `serialize:"true" json:"pfm"`
	// WasmHooks is set if transfers to the network may carry a contract call.
	WasmHooks bool `serialize:"true" json:"wasm_hooks"`
}

// NetworkItem is what the router knows about a network.
type NetworkItem struct {
	ID             xc.NetworkID `serialize:"true" json:"network_id"`
	GatewayAddress string       `serialize:"true" json:"gateway_address,omitempty"`
	Ics20          Ics20Config  `serialize:"true" json:"ics20"`
}

// NetworkLink binds a pair of networks to the channels connecting them.
type NetworkLink struct {
	// XcvmChannel carries programs without funds.
	XcvmChannel string `serialize:"true" json:"xcvm_channel,omitempty"`
	// Ics20Channel carries fungible token transfers.
	Ics20Channel string `serialize:"true" json:"ics20_channel,omitempty"`
	// ForwardReceiver receives transfers on the first intermediate chain when
	// Hops is not empty.
	ForwardReceiver string `serialize:"true" json:"forward_receiver,omitempty"`
	// Hops beyond the first chain. The last receiver defaults to the gateway
	// of the destination.
	Hops           []pfm.Hop `serialize:"true" json:"hops,omitempty"`
	TimeoutSeconds uint64    `serialize:"true" json:"timeout_seconds,omitempty"`
}

func (l *NetworkLink) Timeout() time.Duration {
	if l.TimeoutSeconds == 0 {
		return defaultLinkTimeout
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

type NetworkState interface {
	GetNetwork(id xc.NetworkID) (*NetworkItem, error)
	PutNetwork(item *NetworkItem) error

	GetLink(from, to xc.NetworkID) (*NetworkLink, error)
	PutLink(from, to xc.NetworkID, link *NetworkLink) error

	// NetworkOfChannel returns the network reached over the xcvm [channel].
	NetworkOfChannel(channel string) (xc.NetworkID, error)
}

type networkState struct {
	itemDB    database.Database
	linkDB    database.Database
	channelDB database.Database
}

func NewNetworkState(db database.Database) NetworkState {
	return &networkState{
		itemDB:    prefixdb.New(networkItemPrefix, db),
		linkDB:    prefixdb.New(networkLinkPrefix, db),
		channelDB: prefixdb.New(networkChannelPrefix, db),
	}
}

func networkKey(id xc.NetworkID) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(id))
	return key
}

func linkKey(from, to xc.NetworkID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint32(key, uint32(from))
	binary.BigEndian.PutUint32(key[4:], uint32(to))
	return key
}

func (s *networkState) GetNetwork(id xc.NetworkID) (*NetworkItem, error) {
	itemBytes, err := s.itemDB.Get(networkKey(id))
	if err != nil {
		return nil, err
	}
	item := &NetworkItem{}
	if err := unmarshalRecord(itemBytes, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *networkState) PutNetwork(item *NetworkItem) error {
	itemBytes, err := xc.Codec.Marshal(xc.CodecVersion, item)
	if err != nil {
		return err
	}
	return s.itemDB.Put(networkKey(item.ID), itemBytes)
}

func (s *networkState) GetLink(from, to xc.NetworkID) (*NetworkLink, error) {
	linkBytes, err := s.linkDB.Get(linkKey(from, to))
	if err != nil {
		return nil, err
	}
	link := &NetworkLink{}
	if err := unmarshalRecord(linkBytes, link); err != nil {
		return nil, err
	}
	if len(link.Hops) == 0 {
		link.Hops = nil
	}
	return link, nil
}

// PutLink stores [link] and keeps the channel index in sync with it.
func (s *networkState) PutLink(from, to xc.NetworkID, link *NetworkLink) error {
	previous, err := s.GetLink(from, to)
	switch {
	case err == nil:
		if previous.XcvmChannel != "" && previous.XcvmChannel != link.XcvmChannel {
			if err := s.unindexChannel(previous.XcvmChannel, to); err != nil {
				return err
			}
		}
	case !errors.Is(err, database.ErrNotFound):
		return err
	}

	linkBytes, err := xc.Codec.Marshal(xc.CodecVersion, link)
	if err != nil {
		return err
	}
	if err := s.linkDB.Put(linkKey(from, to), linkBytes); err != nil {
		return err
	}
	if link.XcvmChannel == "" {
		return nil
	}
	return s.channelDB.Put([]byte(link.XcvmChannel), networkKey(to))
}

// unindexChannel drops [channel] from the index unless another link has
// since claimed it.
func (s *networkState) unindexChannel(channel string, to xc.NetworkID) error {
	stored, err := s.channelDB.Get([]byte(channel))
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil
	case err != nil:
		return err
	case !bytes.Equal(stored, networkKey(to)):
		return nil
	}
	return s.channelDB.Delete([]byte(channel))
}

func (s *networkState) NetworkOfChannel(channel string) (xc.NetworkID, error) {
	idBytes, err := s.channelDB.Get([]byte(channel))
	if err != nil {
		return 0, err
	}
	if len(idBytes) != 4 {
		return 0, fmt.Errorf("malformed network id for channel %s", channel)
	}
	return xc.NetworkID(binary.BigEndian.Uint32(idBytes)), nil
}

func unmarshalRecord(b []byte, v interface{}) error {
	parsedVersion, err := xc.Codec.Unmarshal(b, v)
	if err != nil {
		return err
	}
	if parsedVersion != xc.CodecVersion {
		return errNetworkWrongVersion
	}
	return nil
}
