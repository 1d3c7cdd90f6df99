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

// Context is the immutable identity a frame was entered with.
type Context struct {
	Address       common.EAddr
	Caller        common.EAddr
	ApparentValue *big.Int
}

// Reason records why a frame was pushed, so Machine knows how to marshal
// its return value into the parent when it pops.
type Reason int

const (
	// ReasonRoot marks the outermost frame: on Exit its result surfaces to
	// the host instead of a parent frame.
	ReasonRoot Reason = iota
	// ReasonCall marks a frame entered via a CALL-family trap: its return
	// data is copied into the parent's memory at the CALL's (out_off,
	// out_len).
	ReasonCall
	// ReasonCreate marks a frame entered via a CREATE-family trap: its
	// return data becomes the new contract's code, and the created E-addr
	// is pushed onto the parent's stack.
	ReasonCreate
)

// Frame is one entry of the Machine's frame stack: the EVM Runtime — program
// counter, operand stack, memory, the immutable code and input this frame
// was entered with, and its Context.
type Frame struct {
	Code  []byte
	Input []byte
	PC    uint64

	Stack  *Stack
	Memory *Memory

	Ctx    Context
	Static bool

	Reason Reason
	// CreateAddr is populated only when Reason == ReasonCreate: the E-addr
	// this frame's returned bytes will become the code of.
	CreateAddr common.EAddr
	// PendingOut/PendingOutLen are populated only when Reason == ReasonCall:
	// where in the parent's memory to marshal this frame's return data.
	PendingOut    uint64
	PendingOutLen uint64

	ReturnData []byte
	Gas        uint64
}

// NewFrame constructs a fresh frame ready to execute code from pc 0.
func NewFrame(code, input []byte, ctx Context, static bool, reason Reason) *Frame {
	return &Frame{
		Code:   code,
		Input:  input,
		Stack:  NewStack(),
		Memory: NewMemory(),
		Ctx:    ctx,
		Static: static,
		Reason: reason,
		Gas:    constantGas,
	}
}

// constantGas is the fixed value core/vm.Frame.Gas reports: gas metering is
// a non-goal, so GAS always returns this and pre-validate is a
// no-op.
const constantGas = 1
