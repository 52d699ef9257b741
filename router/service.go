// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"context"
	"encoding/json"
	"net/http"

	avalancheJSON "github.com/ava-labs/avalanchego/utils/json"
	avalancheRPC "github.com/gorilla/rpc/v2"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/xc"
)

// ServiceName is the name the router API is registered under.
const ServiceName = "router"

// Service is the API service of a router deployed on a host
type Service struct {
	host   *host.Host
	router string
}

func NewService(h *host.Host, router string) *Service {
	return &Service{host: h, router: router}
}

// NewHandler returns the JSON-RPC handler serving [service].
func NewHandler(service *Service) (http.Handler, error) {
	server := avalancheRPC.NewServer()
	server.RegisterCodec(avalancheJSON.NewCodec(), "application/json")
	server.RegisterCodec(avalancheJSON.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(service, ServiceName); err != nil {
		return nil, err
	}
	return server, nil
}

// LookupAssetArgs are the arguments to LookupAsset
type LookupAssetArgs struct {
	ID xc.AssetID `json:"assetID"`
}

// LookupAsset returns the asset registered under [args.ID]
func (s *Service) LookupAsset(r *http.Request, args *LookupAssetArgs, reply *LookupAssetResponse) error {
	return s.query(r.Context(), QueryMsg{LookupAsset: &LookupAssetQuery{ID: args.ID}}, reply)
}

// ListAssets returns every registered asset
func (s *Service) ListAssets(r *http.Request, _ *struct{}, reply *AssetsResponse) error {
	return s.query(r.Context(), QueryMsg{Assets: &struct{}{}}, reply)
}

// GetInterpreterArgs are the arguments to GetInterpreter
type GetInterpreterArgs struct {
	Origin xc.InterpreterOrigin `json:"origin"`
}

// GetInterpreter returns the interpreter provisioned for [args.Origin]
func (s *Service) GetInterpreter(r *http.Request, args *GetInterpreterArgs, reply *InterpreterResponse) error {
	return s.query(r.Context(), QueryMsg{Interpreter: &InterpreterQuery{Origin: args.Origin}}, reply)
}

// SubmitArgs are the arguments to Submit
type SubmitArgs struct {
	Sender string `json:"sender"`
	// Contract defaults to the router.
	Contract string          `json:"contract,omitempty"`
	Msg      json.RawMessage `json:"msg"`
	Funds    host.Coins      `json:"funds,omitempty"`
}

// Submit executes [args.Msg] on behalf of [args.Sender] and returns the
// events of the whole chain of calls it caused
func (s *Service) Submit(r *http.Request, args *SubmitArgs, reply *host.Receipt) error {
	contract := args.Contract
	if contract == "" {
		contract = s.router
	}
	receipt, err := s.host.Execute(r.Context(), args.Sender, contract, args.Msg, args.Funds)
	if err != nil {
		return err
	}
	*reply = *receipt
	return nil
}

// OutboxReply is the reply of Outbox
type OutboxReply struct {
	Packets []host.Packet `json:"packets"`
}

// Outbox removes and returns the packets waiting to be relayed
func (s *Service) Outbox(_ *http.Request, _ *struct{}, reply *OutboxReply) error {
	reply.Packets = s.host.Outbox().Drain()
	return nil
}

// GetHeightReply is the reply of GetHeight
type GetHeightReply struct {
	Height avalancheJSON.Uint64 `json:"height"`
}

// GetHeight returns the number of messages the host has handled
func (s *Service) GetHeight(_ *http.Request, _ *struct{}, reply *GetHeightReply) error {
	reply.Height = avalancheJSON.Uint64(s.host.Height())
	return nil
}

func (s *Service) query(ctx context.Context, q QueryMsg, reply interface{}) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	resp, err := s.host.Query(ctx, s.router, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(resp, reply)
}
