// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/xcrouter/xc"
)

var (
	errInterpreterWrongVersion = errors.New("interpreter has wrong codec version")

	_ InterpreterState = &interpreterState{}
)

// Interpreter is a provisioned interpreter.
type Interpreter struct {
	Address string `serialize:"true" json:"address"`
}

// InterpreterState records one interpreter per origin. Records are never
// removed.
type InterpreterState interface {
	GetInterpreter(origin xc.InterpreterOrigin) (*Interpreter, error)
	PutInterpreter(origin xc.InterpreterOrigin, interpreter *Interpreter) error
}

type interpreterState struct {
	interpreterDB database.Database
}

func NewInterpreterState(db database.Database) InterpreterState {
	return &interpreterState{
		interpreterDB: db,
	}
}

// GetInterpreter returns database.ErrNotFound if no interpreter was
// provisioned for [origin].
func (s *interpreterState) GetInterpreter(origin xc.InterpreterOrigin) (*Interpreter, error) {
	key, err := origin.Bytes()
	if err != nil {
		return nil, err
	}
	interpreterBytes, err := s.interpreterDB.Get(key)
	if err != nil {
		return nil, err
	}

	interpreter := &Interpreter{}
	parsedVersion, err := xc.Codec.Unmarshal(interpreterBytes, interpreter)
	if err != nil {
		return nil, err
	}
	if parsedVersion != xc.CodecVersion {
		return nil, errInterpreterWrongVersion
	}
	return interpreter, nil
}

func (s *interpreterState) PutInterpreter(origin xc.InterpreterOrigin, interpreter *Interpreter) error {
	key, err := origin.Bytes()
	if err != nil {
		return err
	}
	bytes, err := xc.Codec.Marshal(xc.CodecVersion, interpreter)
	if err != nil {
		return err
	}
	return s.interpreterDB.Put(key, bytes)
}
