// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package vm

import (
	"math/big"

	"github.com/pandora-chain/evm-loader/common"
)

// ExitKind classifies how a frame terminated.
type ExitKind int

const (
	ExitSucceed ExitKind = iota
	ExitRevert
	ExitError
	ExitFatal
)

// ExitReason is returned by Interpreter.Step when the top frame has
// finished: Succeed/Revert commit or discard the frame's staged effects
// respectively; Error/Fatal always discard and bubble straight out with no
// catch.
type ExitReason struct {
	Kind       ExitKind
	ReturnData []byte
	Err        error // non-nil for Error/Fatal
}

func (e ExitReason) String() string {
	switch e.Kind {
	case ExitSucceed:
		return "succeed"
	case ExitRevert:
		return "revert"
	case ExitError:
		return "error: " + e.Err.Error()
	default:
		return "fatal: " + e.Err.Error()
	}
}

// TrapKind distinguishes the two interrupt shapes the Handler can raise.
type TrapKind int

const (
	TrapCall TrapKind = iota
	TrapCreate
)

// Trap is the Handler's response to CALL/CREATE instead of a recursive Go
// call: Machine pushes a new frame for it and continues stepping the
// caller only once the new frame itself exits.
type Trap struct {
	Kind TrapKind

	// Call fields.
	CodeAddress common.EAddr
	Input       []byte
	OutOffset   uint64
	OutSize     uint64

	// Create fields.
	InitCode []byte
	NewAddr  common.EAddr

	Ctx    Context
	Static bool
}

// Host is the narrow contract Interpreter.Step needs from the surrounding
// adapter (handler.Handler implements it): account state reads/writes plus
// CALL/CREATE trap issuance. Defined here, not in package handler, so that
// core/vm stays a leaf package with no dependency on handler (handler
// depends on core/vm, not the reverse).
type Host interface {
	Balance(addr common.EAddr) *big.Int
	CodeSize(addr common.EAddr) int
	CodeHash(addr common.EAddr) common.Hash256
	CodeAt(addr common.EAddr) []byte
	Exists(addr common.EAddr) bool

	GetStorage(addr common.EAddr, key common.Hash256) common.Hash256
	SetStorage(addr common.EAddr, key, value common.Hash256) error

	BlockNumber() uint64
	BlockTimestamp() uint64
	ChainID() uint64
	BlockDifficulty() uint64
	BlockGasLimit() uint64
	BlockCoinbase() common.EAddr
	Origin() common.EAddr

	Log(addr common.EAddr, topics []common.Hash256, data []byte)

	// Call/Create return either (exit, nil) for a handled result (e.g. the
	// CPI escape hatch or a depth-limit rejection) or (ExitReason{}, trap)
	// when the Machine must push a new frame.
	Call(ctx Context, codeAddress common.EAddr, input []byte, value *big.Int, outOff, outSize uint64, static bool) (ExitReason, *Trap)
	Create(ctx Context, scheme CreateScheme, value *big.Int, initCode []byte, salt common.Hash256) (ExitReason, *Trap)

	MarkDelete(addr, beneficiary common.EAddr) error
}

// CreateScheme mirrors state.CreateScheme; re-declared here (not imported)
// to keep core/vm free of a dependency on package state. handler converts
// between the two at its boundary.
type CreateScheme int

const (
	SchemeLegacy CreateScheme = iota
	SchemeCreate2
	SchemeFixed
)
