// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/xc"
)

// InterpreterLabel is the instantiation label of the interpreter of
// [origin]. The host derives the interpreter address from it, so the same
// origin always yields the same address.
func InterpreterLabel(origin xc.InterpreterOrigin) string {
	return "xcvm-interpreter-" + origin.String()
}

// executeProgram escrows the funds of a program and continues with a
// privileged call carrying the verified origin of the caller.
func (r *Router) executeProgram(env host.Env, info host.MessageInfo, msg *ExecuteProgramMsg) (*host.Response, error) {
	tip := msg.Tip
	if tip == "" {
		tip = info.Sender
	}
	if err := host.ValidateAddress(tip); err != nil {
		return nil, hostError("tip: %v", err)
	}

	pulls, err := pullFromCaller(r.state, env.Self, info.Sender, info.Funds, msg.Assets)
	if err != nil {
		return nil, err
	}
	continuation, err := selfCall(env.Self, ExecuteMsg{
		ExecuteProgramPrivileged: &ExecuteProgramPrivilegedMsg{
			CallOrigin:     xc.NewLocalOrigin(info.Sender),
			ExecuteProgram: *msg,
			Tip:            tip,
		},
	})
	if err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddMsgs(pulls...).
		AddMsg(continuation).
		AddEvent(newEvent(actionExecuteProgram).Add("sender", info.Sender)), nil
}

// executeProgramPrivileged runs a program in the interpreter of its origin.
// If there is none yet, it asks the host to instantiate one and to call the
// router again once the instantiation reply has been handled.
func (r *Router) executeProgramPrivileged(_ contractAuth, env host.Env, msg *ExecuteProgramPrivilegedMsg) (*host.Response, error) {
	if err := msg.CallOrigin.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	config, err := r.state.GetConfig()
	if err != nil {
		return nil, err
	}
	origin := xc.InterpreterOrigin{
		UserOrigin: msg.CallOrigin.User(config.NetworkID),
		Salt:       msg.ExecuteProgram.Salt,
	}

	interpreter, err := r.state.GetInterpreter(origin)
	switch {
	case err == nil:
		return r.dispatchProgram(interpreter, msg)
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	if msg.Provisioning {
		// the instantiation reply should have recorded the interpreter
		return nil, notFound("interpreter for %s", origin)
	}

	init, err := json.Marshal(host.InterpreterInstantiateMsg{
		GatewayAddress:    env.Self,
		InterpreterOrigin: origin,
	})
	if err != nil {
		return nil, err
	}
	retry := *msg
	retry.Provisioning = true
	continuation, err := selfCall(env.Self, ExecuteMsg{ExecuteProgramPrivileged: &retry})
	if err != nil {
		return nil, err
	}

	log.Debug("instantiating interpreter", "origin", origin)
	return host.NewResponse().
		AddReplyOnSuccess(host.WasmInstantiate{
			Admin:  env.Self,
			CodeID: config.InterpreterCodeID,
			Label:  InterpreterLabel(origin),
			Msg:    init,
		}, ReplyInstantiateInterpreter).
		AddMsg(continuation).
		AddEvent(newEvent(actionInstantiate).Add("origin", origin.String())), nil
}

func (r *Router) dispatchProgram(interpreter *Interpreter, msg *ExecuteProgramPrivilegedMsg) (*host.Response, error) {
	pushes, err := pushToTarget(r.state, interpreter.Address, msg.ExecuteProgram.Assets)
	if err != nil {
		return nil, err
	}
	exec, err := json.Marshal(host.InterpreterExecuteMsg{
		Execute: &host.InterpreterExecute{
			Tip:     msg.Tip,
			Program: msg.ExecuteProgram.Program,
		},
	})
	if err != nil {
		return nil, err
	}

	r.metrics.dispatched.Inc()
	return host.NewResponse().
		AddMsgs(pushes...).
		AddMsg(host.WasmExecute{Contract: interpreter.Address, Msg: exec}).
		AddEvent(newEvent(actionDispatch).Add("interpreter", interpreter.Address)), nil
}

// interpreterInstantiated records the interpreter announced by an
// instantiation reply. Nothing is written unless both the address and the
// echoed origin are present and well formed.
func (r *Router) interpreterInstantiated(reply host.Reply) (*host.Response, error) {
	if reply.Result == nil {
		return nil, hostError("interpreter instantiation failed: %s", reply.Err)
	}
	addr, err := instantiatedAddress(reply.Result.Events)
	if err != nil {
		return nil, err
	}
	origin, err := echoedOrigin(reply.Result.Events)
	if err != nil {
		return nil, err
	}
	if err := r.state.PutInterpreter(origin, &Interpreter{Address: addr}); err != nil {
		return nil, err
	}

	r.metrics.provisioned.Inc()
	log.Info("interpreter ready", "origin", origin, "address", addr)
	return host.NewResponse().AddEvent(newEvent(actionInterpreterReady).
		Add("origin", origin.String()).
		Add("interpreter", addr)), nil
}

func instantiatedAddress(events []host.Event) (string, error) {
	for _, e := range events {
		if e.Type != host.EventInstantiate {
			continue
		}
		addr, ok := e.Attribute(host.ContractAddressAttribute)
		if !ok {
			return "", notFound("contract address in %s event", host.EventInstantiate)
		}
		if err := host.ValidateAddress(addr); err != nil {
			return "", hostError("interpreter address: %v", err)
		}
		return addr, nil
	}
	return "", notFound("%s event", host.EventInstantiate)
}

func echoedOrigin(events []host.Event) (xc.InterpreterOrigin, error) {
	prefix := host.ContractEventPrefix + host.InterpreterEventPrefix
	for _, e := range events {
		if !strings.HasPrefix(e.Type, prefix) {
			continue
		}
		data, ok := e.Attribute(host.InterpreterEventDataOrigin)
		if !ok {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return xc.InterpreterOrigin{}, hostError("interpreter origin encoding: %v", err)
		}
		origin, err := xc.ParseInterpreterOrigin(raw)
		if err != nil {
			return xc.InterpreterOrigin{}, hostError("interpreter origin: %v", err)
		}
		return origin, nil
	}
	return xc.InterpreterOrigin{}, notFound("interpreter origin in %s events", prefix)
}

func selfCall(self string, msg ExecuteMsg) (host.Msg, error) {
	raw, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	return host.WasmExecute{Contract: self, Msg: raw}, nil
}
