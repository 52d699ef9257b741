// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package router implements the gateway contract: it escrows the funds of a
// program, provisions one interpreter per origin and hands programs either to
// a local interpreter or to the gateway of another network.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/xcrouter/host"
)

const (
	// ReplyInstantiateInterpreter correlates interpreter instantiations.
	ReplyInstantiateInterpreter uint64 = 0

	// MaxForwardHops bounds the forward memos the router builds.
	MaxForwardHops = 8
)

var (
	_ host.Contract   = (*Router)(nil)
	_ host.Rollbacker = (*Router)(nil)
)

type Router struct {
	state   State
	metrics *metrics
}

// NewFactory returns a host.Factory for routers reporting to [registerer].
func NewFactory(registerer prometheus.Registerer) host.Factory {
	return func(db database.Database) (host.Contract, error) {
		return New(db, registerer)
	}
}

func New(db database.Database, registerer prometheus.Registerer) (*Router, error) {
	s, err := NewState(db, registerer)
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Router{state: s, metrics: m}, nil
}

// State exposes the router storage for read access.
func (r *Router) State() State { return r.state }

func (r *Router) Instantiate(_ context.Context, env host.Env, _ host.MessageInfo, raw []byte) (*host.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := host.ValidateAddress(msg.Admin); err != nil {
		return nil, hostError("admin: %v", err)
	}
	config := &Config{
		NetworkID:         msg.NetworkID,
		Admin:             msg.Admin,
		InterpreterCodeID: msg.InterpreterCodeID,
	}
	if err := r.state.PutConfig(config); err != nil {
		return nil, err
	}
	log.Info("router instantiated", "address", env.Self, "network", msg.NetworkID, "admin", msg.Admin)
	return host.NewResponse().AddEvent(newEvent(actionInstantiate).
		Add("network_id", fmt.Sprint(msg.NetworkID)).
		Add("admin", msg.Admin)), nil
}

func (r *Router) Execute(ctx context.Context, env host.Env, info host.MessageInfo, raw []byte) (*host.Response, error) {
	var msg ExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	name, err := msg.Name()
	if err != nil {
		return nil, err
	}
	r.metrics.messages.WithLabelValues(name).Inc()

	resp, err := r.execute(ctx, env, info, &msg)
	if err != nil {
		r.metrics.failures.WithLabelValues(name).Inc()
		log.Debug("router message failed", "msg", name, "sender", info.Sender, "err", err)
		return nil, err
	}
	return resp, nil
}

func (r *Router) execute(_ context.Context, env host.Env, info host.MessageInfo, msg *ExecuteMsg) (*host.Response, error) {
	switch {
	case msg.RegisterAsset != nil:
		auth, err := authorizeAdmin(r.state, info.Sender)
		if err != nil {
			return nil, err
		}
		return r.registerAsset(auth, msg.RegisterAsset)

	case msg.UnregisterAsset != nil:
		auth, err := authorizeAdmin(r.state, info.Sender)
		if err != nil {
			return nil, err
		}
		return r.unregisterAsset(auth, msg.UnregisterAsset.ID)

	case msg.ExecuteProgram != nil:
		return r.executeProgram(env, info, msg.ExecuteProgram)

	case msg.ExecuteProgramPrivileged != nil:
		auth, err := authorizeContract(env, info.Sender)
		if err != nil {
			return nil, err
		}
		return r.executeProgramPrivileged(auth, env, msg.ExecuteProgramPrivileged)

	case msg.BridgeForward != nil:
		auth, err := authorizeInterpreter(r.state, msg.BridgeForward.InterpreterOrigin, info.Sender)
		if err != nil {
			return nil, err
		}
		return r.bridgeForward(auth, env, info, msg.BridgeForward)

	case msg.Ics20MessageHook != nil:
		auth, err := authorizeWasmHook(r.state, msg.Ics20MessageHook.FromNetworkID, info.Sender)
		if err != nil {
			return nil, err
		}
		return r.ics20MessageHook(auth, env, info, msg.Ics20MessageHook)

	case msg.ForceNetwork != nil:
		auth, err := authorizeAdmin(r.state, info.Sender)
		if err != nil {
			return nil, err
		}
		return r.forceNetwork(auth, msg.ForceNetwork)

	case msg.ForceNetworkLink != nil:
		auth, err := authorizeAdmin(r.state, info.Sender)
		if err != nil {
			return nil, err
		}
		return r.forceNetworkLink(auth, msg.ForceNetworkLink)

	case msg.SetNetworkChannel != nil:
		auth, err := authorizeAdmin(r.state, info.Sender)
		if err != nil {
			return nil, err
		}
		return r.setNetworkChannel(auth, msg.SetNetworkChannel)

	default:
		return nil, ErrInvalidMessage
	}
}

func (r *Router) Reply(_ context.Context, _ host.Env, reply host.Reply) (*host.Response, error) {
	switch reply.ID {
	case ReplyInstantiateInterpreter:
		return r.interpreterInstantiated(reply)
	default:
		return nil, notFound("reply id %d", reply.ID)
	}
}

func (r *Router) Query(_ context.Context, _ host.Env, raw []byte) ([]byte, error) {
	var q QueryMsg
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch {
	case q.LookupAsset != nil:
		asset, err := r.LookupAsset(q.LookupAsset.ID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(LookupAssetResponse{Asset: *asset})

	case q.Assets != nil:
		assets, err := r.state.ListAssets()
		if err != nil {
			return nil, err
		}
		return json.Marshal(AssetsResponse{Assets: assets})

	case q.Interpreter != nil:
		interpreter, err := r.state.GetInterpreter(q.Interpreter.Origin)
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil, notFound("interpreter for %s", q.Interpreter.Origin)
		case err != nil:
			return nil, err
		}
		return json.Marshal(InterpreterResponse{Interpreter: *interpreter})

	case q.Config != nil:
		config, err := r.state.GetConfig()
		if err != nil {
			return nil, err
		}
		return json.Marshal(config)

	default:
		return nil, ErrInvalidMessage
	}
}

// Rollback drops cached state written by a discarded step.
func (r *Router) Rollback() {
	r.state.ClearCache()
}
