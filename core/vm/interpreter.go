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

	"github.com/holiman/uint256"

	"github.com/pandora-chain/evm-loader/common"
)

// StepOutcome tells the Machine what happened to the top frame during one
// Interpreter.Step call.
type StepOutcome struct {
	Exit *ExitReason // non-nil on outcome 2
	Trap *Trap       // non-nil on outcome 3/4
}

// Interpreter runs a single opcode of the top frame per Step call. It holds
// no state of its own; all mutable state lives in the Frame and in the Host
// it is given.
type Interpreter struct{}

// NewInterpreter returns a stateless interpreter.
func NewInterpreter() *Interpreter { return &Interpreter{} }

// Step decodes and executes exactly one opcode of f, against host. It never
// recurses into a child call/create: those surface as a Trap for the caller
// (machine.Machine) to push a new frame for.
func (ip *Interpreter) Step(f *Frame, host Host) StepOutcome {
	if f.PC >= uint64(len(f.Code)) {
		return StepOutcome{Exit: &ExitReason{Kind: ExitSucceed}}
	}
	op := OpCode(f.Code[f.PC])

	switch {
	case isPush(op):
		n := pushSize(op)
		start := f.PC + 1
		end := start + uint64(n)
		var buf [32]byte
		if end > uint64(len(f.Code)) {
			end = uint64(len(f.Code))
		}
		copy(buf[32-n:], f.Code[start:end])
		var v uint256.Int
		v.SetBytes(buf[:])
		f.Stack.Push(&v)
		f.PC += uint64(n) + 1
		return StepOutcome{}
	case isDup(op):
		f.Stack.Dup(dupPos(op))
		f.PC++
		return StepOutcome{}
	case isSwap(op):
		f.Stack.Swap(swapPos(op))
		f.PC++
		return StepOutcome{}
	case isLog(op):
		return ip.stepLog(f, host, logTopics(op))
	}

	switch op {
	case STOP:
		return StepOutcome{Exit: &ExitReason{Kind: ExitSucceed}}

	case ADD:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.Add(&a, &b)
		f.Stack.Push(&a)
	case MUL:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.Mul(&a, &b)
		f.Stack.Push(&a)
	case SUB:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.Sub(&a, &b)
		f.Stack.Push(&a)
	case DIV:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.Div(&a, &b)
		f.Stack.Push(&a)
	case SDIV:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.SDiv(&a, &b)
		f.Stack.Push(&a)
	case MOD:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.Mod(&a, &b)
		f.Stack.Push(&a)
	case SMOD:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.SMod(&a, &b)
		f.Stack.Push(&a)
	case ADDMOD:
		a, b, m := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
		a.AddMod(&a, &b, &m)
		f.Stack.Push(&a)
	case MULMOD:
		a, b, m := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
		a.MulMod(&a, &b, &m)
		f.Stack.Push(&a)
	case EXP:
		base, exp := f.Stack.Pop(), f.Stack.Pop()
		base.Exp(&base, &exp)
		f.Stack.Push(&base)
	case SIGNEXTEND:
		back, num := f.Stack.Pop(), f.Stack.Pop()
		num.ExtendSign(&num, &back)
		f.Stack.Push(&num)

	case LT:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		f.Stack.Push(boolWord(a.Lt(&b)))
	case GT:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		f.Stack.Push(boolWord(a.Gt(&b)))
	case SLT:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		f.Stack.Push(boolWord(a.Slt(&b)))
	case SGT:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		f.Stack.Push(boolWord(a.Sgt(&b)))
	case EQ:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		f.Stack.Push(boolWord(a.Eq(&b)))
	case ISZERO:
		a := f.Stack.Pop()
		f.Stack.Push(boolWord(a.IsZero()))
	case AND:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.And(&a, &b)
		f.Stack.Push(&a)
	case OR:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.Or(&a, &b)
		f.Stack.Push(&a)
	case XOR:
		a, b := f.Stack.Pop(), f.Stack.Pop()
		a.Xor(&a, &b)
		f.Stack.Push(&a)
	case NOT:
		a := f.Stack.Pop()
		a.Not(&a)
		f.Stack.Push(&a)
	case BYTE:
		i, x := f.Stack.Pop(), f.Stack.Pop()
		x.Byte(&i)
		f.Stack.Push(&x)
	case SHL:
		shift, val := f.Stack.Pop(), f.Stack.Pop()
		val.Lsh(&val, uint(shift.Uint64()))
		f.Stack.Push(&val)
	case SHR:
		shift, val := f.Stack.Pop(), f.Stack.Pop()
		val.Rsh(&val, uint(shift.Uint64()))
		f.Stack.Push(&val)
	case SAR:
		shift, val := f.Stack.Pop(), f.Stack.Pop()
		val.SRsh(&val, uint(shift.Uint64()))
		f.Stack.Push(&val)

	case SHA3:
		offset, size := f.Stack.Pop(), f.Stack.Pop()
		data := f.Memory.GetCopy(offset.Uint64(), size.Uint64())
		h := common.Keccak256(data)
		var v uint256.Int
		v.SetBytes(h[:])
		f.Stack.Push(&v)

	case ADDRESS:
		f.Stack.Push(eaddrWord(f.Ctx.Address))
	case BALANCE:
		a := f.Stack.Pop()
		addr := wordToEAddr(&a)
		var v uint256.Int
		v.SetFromBig(host.Balance(addr))
		f.Stack.Push(&v)
	case ORIGIN:
		f.Stack.Push(eaddrWord(host.Origin()))
	case CALLER:
		f.Stack.Push(eaddrWord(f.Ctx.Caller))
	case CALLVALUE:
		var v uint256.Int
		if f.Ctx.ApparentValue != nil {
			v.SetFromBig(f.Ctx.ApparentValue)
		}
		f.Stack.Push(&v)
	case CALLDATALOAD:
		off := f.Stack.Pop()
		var buf [32]byte
		readAt(f.Input, off.Uint64(), buf[:])
		var v uint256.Int
		v.SetBytes(buf[:])
		f.Stack.Push(&v)
	case CALLDATASIZE:
		f.Stack.Push(uint256.NewInt(uint64(len(f.Input))))
	case CALLDATACOPY:
		destOff, off, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
		buf := make([]byte, size.Uint64())
		readAt(f.Input, off.Uint64(), buf)
		f.Memory.Set(destOff.Uint64(), size.Uint64(), buf)
	case CODESIZE:
		f.Stack.Push(uint256.NewInt(uint64(len(f.Code))))
	case CODECOPY:
		destOff, off, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
		buf := make([]byte, size.Uint64())
		readAt(f.Code, off.Uint64(), buf)
		f.Memory.Set(destOff.Uint64(), size.Uint64(), buf)
	case EXTCODESIZE:
		a := f.Stack.Pop()
		f.Stack.Push(uint256.NewInt(uint64(host.CodeSize(wordToEAddr(&a)))))
	case EXTCODECOPY:
		a, destOff, off, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
		code := host.CodeAt(wordToEAddr(&a))
		buf := make([]byte, size.Uint64())
		readAt(code, off.Uint64(), buf)
		f.Memory.Set(destOff.Uint64(), size.Uint64(), buf)
	case EXTCODEHASH:
		a := f.Stack.Pop()
		addr := wordToEAddr(&a)
		if !host.Exists(addr) {
			f.Stack.Push(new(uint256.Int))
		} else {
			h := host.CodeHash(addr)
			var v uint256.Int
			v.SetBytes(h[:])
			f.Stack.Push(&v)
		}
	case RETURNDATASIZE:
		f.Stack.Push(uint256.NewInt(uint64(len(f.ReturnData))))
	case RETURNDATACOPY:
		destOff, off, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
		buf := make([]byte, size.Uint64())
		readAt(f.ReturnData, off.Uint64(), buf)
		f.Memory.Set(destOff.Uint64(), size.Uint64(), buf)

	case BLOCKHASH:
		f.Stack.Pop()
		f.Stack.Push(new(uint256.Int))
	case COINBASE:
		f.Stack.Push(eaddrWord(host.BlockCoinbase()))
	case TIMESTAMP:
		f.Stack.Push(uint256.NewInt(host.BlockTimestamp()))
	case NUMBER:
		f.Stack.Push(uint256.NewInt(host.BlockNumber()))
	case DIFFICULTY:
		f.Stack.Push(uint256.NewInt(host.BlockDifficulty()))
	case GASLIMIT:
		f.Stack.Push(uint256.NewInt(host.BlockGasLimit()))
	case CHAINID:
		f.Stack.Push(uint256.NewInt(host.ChainID()))
	case SELFBALANCE:
		var v uint256.Int
		v.SetFromBig(host.Balance(f.Ctx.Address))
		f.Stack.Push(&v)

	case POP:
		f.Stack.Pop()
	case MLOAD:
		off := f.Stack.Pop()
		var v uint256.Int
		v.SetBytes(f.Memory.GetPtr(off.Uint64(), 32))
		f.Stack.Push(&v)
	case MSTORE:
		off, val := f.Stack.Pop(), f.Stack.Pop()
		b := val.Bytes32()
		f.Memory.Set32(off.Uint64(), b[:])
	case MSTORE8:
		off, val := f.Stack.Pop(), f.Stack.Pop()
		f.Memory.Set(off.Uint64(), 1, []byte{byte(val.Uint64())})
	case SLOAD:
		k := f.Stack.Pop()
		key := common.Hash256(k.Bytes32())
		val := host.GetStorage(f.Ctx.Address, key)
		var v uint256.Int
		v.SetBytes(val[:])
		f.Stack.Push(&v)
	case SSTORE:
		if f.Static {
			return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: common.ErrInvalidRange}}
		}
		k, val := f.Stack.Pop(), f.Stack.Pop()
		key := common.Hash256(k.Bytes32())
		value := common.Hash256(val.Bytes32())
		if err := host.SetStorage(f.Ctx.Address, key, value); err != nil {
			return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: err}}
		}
	case JUMP:
		dest := f.Stack.Pop()
		if !validJumpDest(f.Code, dest.Uint64()) {
			return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: common.ErrInvalidRange}}
		}
		f.PC = dest.Uint64()
		return StepOutcome{}
	case JUMPI:
		dest, cond := f.Stack.Pop(), f.Stack.Pop()
		if cond.IsZero() {
			f.PC++
			return StepOutcome{}
		}
		if !validJumpDest(f.Code, dest.Uint64()) {
			return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: common.ErrInvalidRange}}
		}
		f.PC = dest.Uint64()
		return StepOutcome{}
	case PC:
		f.Stack.Push(uint256.NewInt(f.PC))
	case MSIZE:
		f.Stack.Push(uint256.NewInt(uint64(f.Memory.Len())))
	case GAS:
		f.Stack.Push(uint256.NewInt(f.Gas))
	case JUMPDEST:
		// no-op marker

	case CREATE, CREATE2:
		return ip.stepCreate(f, host, op)
	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		return ip.stepCall(f, host, op)

	case RETURN:
		off, size := f.Stack.Pop(), f.Stack.Pop()
		data := f.Memory.GetCopy(off.Uint64(), size.Uint64())
		return StepOutcome{Exit: &ExitReason{Kind: ExitSucceed, ReturnData: data}}
	case REVERT:
		off, size := f.Stack.Pop(), f.Stack.Pop()
		data := f.Memory.GetCopy(off.Uint64(), size.Uint64())
		return StepOutcome{Exit: &ExitReason{Kind: ExitRevert, ReturnData: data}}
	case SELFDESTRUCT:
		b := f.Stack.Pop()
		beneficiary := wordToEAddr(&b)
		if err := host.MarkDelete(f.Ctx.Address, beneficiary); err != nil {
			return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: err}}
		}
		return StepOutcome{Exit: &ExitReason{Kind: ExitSucceed}}
	case INVALID:
		return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: common.ErrInvalidRange}}

	default:
		return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: common.ErrInvalidRange}}
	}

	f.PC++
	return StepOutcome{}
}

func (ip *Interpreter) stepLog(f *Frame, host Host, topicCount int) StepOutcome {
	if f.Static {
		return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: common.ErrInvalidRange}}
	}
	off, size := f.Stack.Pop(), f.Stack.Pop()
	topics := make([]common.Hash256, topicCount)
	for i := 0; i < topicCount; i++ {
		t := f.Stack.Pop()
		topics[i] = common.Hash256(t.Bytes32())
	}
	data := f.Memory.GetCopy(off.Uint64(), size.Uint64())
	host.Log(f.Ctx.Address, topics, data)
	f.PC++
	return StepOutcome{}
}

func (ip *Interpreter) stepCreate(f *Frame, host Host, op OpCode) StepOutcome {
	if f.Static {
		return StepOutcome{Exit: &ExitReason{Kind: ExitError, Err: common.ErrInvalidRange}}
	}
	value, off, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
	initCode := f.Memory.GetCopy(off.Uint64(), size.Uint64())

	var salt common.Hash256
	scheme := SchemeLegacy
	if op == CREATE2 {
		s := f.Stack.Pop()
		salt = common.Hash256(s.Bytes32())
		scheme = SchemeCreate2
	}

	ctx := Context{Address: f.Ctx.Address, Caller: f.Ctx.Address, ApparentValue: value.ToBig()}
	exit, trap := host.Create(ctx, scheme, value.ToBig(), initCode, salt)
	if trap != nil {
		f.PC++ // resumed at the instruction after CREATE once the child pops
		return StepOutcome{Trap: trap}
	}
	if exit.Kind == ExitSucceed {
		f.Stack.Push(eaddrWord(common.BytesToEAddr(exit.ReturnData)))
	} else {
		f.Stack.Push(new(uint256.Int))
	}
	f.PC++
	return StepOutcome{}
}

func (ip *Interpreter) stepCall(f *Frame, host Host, op OpCode) StepOutcome {
	f.Stack.Pop() // gas: ignored, gas metering is a non-goal
	addr := f.Stack.Pop()

	var value *uint256.Int
	if op == CALL || op == CALLCODE {
		v := f.Stack.Pop()
		value = &v
	} else {
		value = new(uint256.Int)
	}
	inOff, inSize := f.Stack.Pop(), f.Stack.Pop()
	outOff, outSize := f.Stack.Pop(), f.Stack.Pop()

	input := f.Memory.GetCopy(inOff.Uint64(), inSize.Uint64())
	codeAddress := wordToEAddr(&addr)

	ctx := f.Ctx
	static := f.Static
	switch op {
	case CALL:
		ctx = Context{Address: codeAddress, Caller: f.Ctx.Address, ApparentValue: value.ToBig()}
	case CALLCODE:
		ctx = Context{Address: f.Ctx.Address, Caller: f.Ctx.Address, ApparentValue: value.ToBig()}
	case DELEGATECALL:
		ctx = f.Ctx
	case STATICCALL:
		ctx = Context{Address: codeAddress, Caller: f.Ctx.Address, ApparentValue: big.NewInt(0)}
		static = true
	}

	exit, trap := host.Call(ctx, codeAddress, input, value.ToBig(), outOff.Uint64(), outSize.Uint64(), static)
	if trap != nil {
		trap.OutOffset, trap.OutSize = outOff.Uint64(), outSize.Uint64()
		f.PC++
		return StepOutcome{Trap: trap}
	}
	f.ReturnData = exit.ReturnData
	if exit.Kind == ExitSucceed {
		f.Memory.Set(outOff.Uint64(), min64(outSize.Uint64(), uint64(len(exit.ReturnData))), exit.ReturnData)
		f.Stack.Push(boolWord(true))
	} else {
		f.Stack.Push(boolWord(false))
	}
	f.PC++
	return StepOutcome{}
}

func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return new(uint256.Int)
}

func eaddrWord(a common.EAddr) *uint256.Int {
	var v uint256.Int
	v.SetBytes(a[:])
	return &v
}

func wordToEAddr(v *uint256.Int) common.EAddr {
	b := v.Bytes32()
	return common.BytesToEAddr(b[:])
}

func readAt(src []byte, offset uint64, dst []byte) {
	if offset >= uint64(len(src)) {
		return
	}
	copy(dst, src[offset:])
}

func validJumpDest(code []byte, dest uint64) bool {
	if dest >= uint64(len(code)) {
		return false
	}
	return OpCode(code[dest]) == JUMPDEST
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
