// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/database"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/xcrouter/xc"
)

const assetCacheSize = 1024

const (
	referenceNative uint8 = iota
	referenceVirtual
)

var (
	errAssetWrongVersion = errors.New("asset has wrong codec version")
	errEmptyReference    = errors.New("asset reference must be exactly one of native or virtual")

	_ AssetState = &assetState{}
)

type NativeAsset struct {
	Denom string `json:"denom"`
}

type VirtualAsset struct {
	Address string `json:"cw20_address"`
}

// AssetReference is how an asset is represented on this chain. Exactly one of
// Native and Virtual is set.
type AssetReference struct {
	Native  *NativeAsset  `json:"native,omitempty"`
	Virtual *VirtualAsset `json:"virtual,omitempty"`
}

func NativeReference(denom string) AssetReference {
	return AssetReference{Native: &NativeAsset{Denom: denom}}
}

func VirtualReference(addr string) AssetReference {
	return AssetReference{Virtual: &VirtualAsset{Address: addr}}
}

func (r AssetReference) Validate() error {
	switch {
	case r.Native != nil && r.Virtual == nil:
		if r.Native.Denom == "" {
			return fmt.Errorf("%w: empty denom", ErrInvalidMessage)
		}
	case r.Virtual != nil && r.Native == nil:
		if r.Virtual.Address == "" {
			return fmt.Errorf("%w: empty token address", ErrInvalidMessage)
		}
	default:
		return errEmptyReference
	}
	return nil
}

func (r AssetReference) String() string {
	if r.Native != nil {
		return r.Native.Denom
	}
	if r.Virtual != nil {
		return r.Virtual.Address
	}
	return ""
}

// Asset is a registered asset.
type Asset struct {
	ID        xc.AssetID     `json:"asset_id"`
	NetworkID xc.NetworkID   `json:"network_id"`
	Local     AssetReference `json:"local"`
}

// assetRecord is the stored form of an Asset.
type assetRecord struct {
	NetworkID xc.NetworkID `serialize:"true"`
	Kind      uint8        `serialize:"true"`
	Value     string       `serialize:"true"`
}

type AssetState interface {
	GetAsset(id xc.AssetID) (*Asset, error)
	HasAsset(id xc.AssetID) (bool, error)
	PutAsset(asset *Asset) error
	DeleteAsset(id xc.AssetID) error
	ListAssets() ([]*Asset, error)

	ClearCache()
}

type assetState struct {
	assetCache cache.Cacher
	assetDB    database.Database
}

func NewAssetState(db database.Database, registerer prometheus.Registerer) (AssetState, error) {
	assetCache, err := metercacher.New(
		"asset_cache",
		registerer,
		&cache.LRU{Size: assetCacheSize},
	)
	if err != nil {
		return nil, err
	}
	return &assetState{
		assetCache: assetCache,
		assetDB:    db,
	}, nil
}

func assetKey(id xc.AssetID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

// GetAsset returns database.ErrNotFound if [id] is not registered.
func (s *assetState) GetAsset(id xc.AssetID) (*Asset, error) {
	if assetIntf, ok := s.assetCache.Get(id); ok {
		asset := *assetIntf.(*Asset)
		return &asset, nil
	}

	assetBytes, err := s.assetDB.Get(assetKey(id))
	if err != nil {
		return nil, err
	}
	asset, err := parseAsset(id, assetBytes)
	if err != nil {
		return nil, err
	}

	s.assetCache.Put(id, asset)
	copied := *asset
	return &copied, nil
}

func (s *assetState) HasAsset(id xc.AssetID) (bool, error) {
	if _, ok := s.assetCache.Get(id); ok {
		return true, nil
	}
	return s.assetDB.Has(assetKey(id))
}

func (s *assetState) PutAsset(asset *Asset) error {
	record := assetRecord{NetworkID: asset.NetworkID}
	switch {
	case asset.Local.Native != nil:
		record.Kind = referenceNative
		record.Value = asset.Local.Native.Denom
	case asset.Local.Virtual != nil:
		record.Kind = referenceVirtual
		record.Value = asset.Local.Virtual.Address
	default:
		return errEmptyReference
	}

	bytes, err := xc.Codec.Marshal(xc.CodecVersion, &record)
	if err != nil {
		return err
	}
	s.assetCache.Evict(asset.ID)
	return s.assetDB.Put(assetKey(asset.ID), bytes)
}

func (s *assetState) DeleteAsset(id xc.AssetID) error {
	s.assetCache.Evict(id)
	return s.assetDB.Delete(assetKey(id))
}

// ListAssets returns every registered asset ordered by id.
func (s *assetState) ListAssets() ([]*Asset, error) {
	iter := s.assetDB.NewIterator()
	defer iter.Release()

	var assets []*Asset
	for iter.Next() {
		key := iter.Key()
		if len(key) != 8 {
			return nil, fmt.Errorf("malformed asset key %x", key)
		}
		asset, err := parseAsset(xc.AssetID(binary.BigEndian.Uint64(key)), iter.Value())
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, iter.Error()
}

func (s *assetState) ClearCache() {
	s.assetCache.Flush()
}

func parseAsset(id xc.AssetID, b []byte) (*Asset, error) {
	record := assetRecord{}
	parsedVersion, err := xc.Codec.Unmarshal(b, &record)
	if err != nil {
		return nil, err
	}
	if parsedVersion != xc.CodecVersion {
		return nil, errAssetWrongVersion
	}

	asset := &Asset{ID: id, NetworkID: record.NetworkID}
	switch record.Kind {
	case referenceNative:
		asset.Local = NativeReference(record.Value)
	case referenceVirtual:
		asset.Local = VirtualReference(record.Value)
	default:
		return nil, fmt.Errorf("unknown asset reference kind %d", record.Kind)
	}
	return asset, nil
}
