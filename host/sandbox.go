// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/xcrouter/xc"
)

const (
	// InterpreterEventPrefix prefixes every event an interpreter emits.
	InterpreterEventPrefix = "xcvm.interpreter"
	// InterpreterEventDataOrigin is the attribute carrying the encoded
	// interpreter origin on instantiation.
	InterpreterEventDataOrigin = "data"
)

var (
	sandboxConfigKey = []byte("config")

	errNotGateway = errors.New("only the gateway may dispatch programs")

	_ Contract = (*Sandbox)(nil)
)

// InterpreterInstantiateMsg is sent by the gateway when it provisions an
// interpreter.
type InterpreterInstantiateMsg struct {
	GatewayAddress    string               `json:"gateway_address"`
	InterpreterOrigin xc.InterpreterOrigin `json:"interpreter_origin"`
}

type InterpreterExecute struct {
	Tip     string     `json:"tip"`
	Program xc.Program `json:"program"`
}

type InterpreterExecuteMsg struct {
	Execute *InterpreterExecute `json:"execute,omitempty"`
}

// SandboxState is what a Sandbox reports when queried.
type SandboxState struct {
	Gateway     string               `json:"gateway"`
	Origin      xc.InterpreterOrigin `json:"origin"`
	Executions  uint64               `json:"executions"`
	LastProgram *xc.Program          `json:"last_program,omitempty"`
	LastTip     string               `json:"last_tip,omitempty"`
}

// Sandbox stands in for a program interpreter. It accepts programs from the
// gateway that created it and records them without running them.
type Sandbox struct {
	db database.Database
}

// NewSandbox is a Factory for Sandbox.
func NewSandbox(db database.Database) (Contract, error) {
	return &Sandbox{db: db}, nil
}

func (s *Sandbox) Instantiate(_ context.Context, _ Env, _ MessageInfo, msg []byte) (*Response, error) {
	var init InterpreterInstantiateMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return nil, fmt.Errorf("failed to parse interpreter instantiate message: %w", err)
	}
	state := SandboxState{Gateway: init.GatewayAddress, Origin: init.InterpreterOrigin}
	if err := s.save(&state); err != nil {
		return nil, err
	}

	originBytes, err := init.InterpreterOrigin.Bytes()
	if err != nil {
		return nil, err
	}
	return NewResponse().AddEvent(
		NewEvent(InterpreterEventPrefix+".instantiated").
			Add(InterpreterEventDataOrigin, base64.StdEncoding.EncodeToString(originBytes)),
	), nil
}

func (s *Sandbox) Execute(_ context.Context, _ Env, info MessageInfo, msg []byte) (*Response, error) {
	var exec InterpreterExecuteMsg
	if err := json.Unmarshal(msg, &exec); err != nil {
		return nil, fmt.Errorf("failed to parse interpreter message: %w", err)
	}
	if exec.Execute == nil {
		return nil, ErrUnsupportedMsg
	}
	state, err := s.State()
	if err != nil {
		return nil, err
	}
	if info.Sender != state.Gateway {
		return nil, errNotGateway
	}

	program := exec.Execute.Program
	state.Executions++
	state.LastProgram = &program
	state.LastTip = exec.Execute.Tip
	if err := s.save(state); err != nil {
		return nil, err
	}
	return NewResponse().AddEvent(
		NewEvent(InterpreterEventPrefix+".executed").
			Add("executions", fmt.Sprint(state.Executions)),
	), nil
}

func (s *Sandbox) Reply(context.Context, Env, Reply) (*Response, error) {
	return nil, ErrUnsupportedMsg
}

func (s *Sandbox) Query(context.Context, Env, []byte) ([]byte, error) {
	state, err := s.State()
	if err != nil {
		return nil, err
	}
	return json.Marshal(state)
}

// State returns the recorded sandbox state.
func (s *Sandbox) State() (*SandboxState, error) {
	raw, err := s.db.Get(sandboxConfigKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load sandbox state: %w", err)
	}
	state := new(SandboxState)
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Sandbox) save(state *SandboxState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Put(sandboxConfigKey, raw)
}
