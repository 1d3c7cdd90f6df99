package handler

import (
	"math/big"

	"github.com/pandora-chain/evm-loader/common"
	vm "github.com/pandora-chain/evm-loader/core/vm"
)

// Create runs the CREATE-family preamble: depth check, address derivation
// per scheme, collision detection, caller-nonce bump, and finally a
// CreateInterrupt trap for the Machine to push a frame for.
func (h *Handler) Create(ctx vm.Context, scheme vm.CreateScheme, value *big.Int, initCode []byte, salt common.Hash256) (vm.ExitReason, *vm.Trap) {
	caller := ctx.Address
	if h.Depth()+1 > MaxCallDepth {
		return vm.ExitReason{Kind: vm.ExitError, Err: common.ErrCallTooDeep}, nil
	}

	callerNonce := h.nonce(caller)
	newAddr, err := addressForScheme(scheme, caller, callerNonce, initCode, salt, common.EAddr{})
	if err != nil {
		return vm.ExitReason{Kind: vm.ExitError, Err: err}, nil
	}

	// A second create at the same address is a collision if the target
	// already has code or a non-zero nonce.
	if h.CodeSize(newAddr) > 0 || h.nonce(newAddr) != 0 {
		return vm.ExitReason{Kind: vm.ExitError, Err: common.ErrCreateCollision}, nil
	}

	// Nonce burns before the child frame is pushed, even if the child
	// later fails.
	h.top().nonce[caller] = callerNonce + 1

	if err := h.transfer(caller, newAddr, value); err != nil {
		return vm.ExitReason{Kind: vm.ExitError, Err: err}, nil
	}

	childCtx := vm.Context{Address: newAddr, Caller: caller, ApparentValue: value}
	return vm.ExitReason{}, &vm.Trap{
		Kind:     vm.TrapCreate,
		InitCode: initCode,
		NewAddr:  newAddr,
		Ctx:      childCtx,
	}
}

// Call runs the CALL-family preamble: depth check, the syscall escape
// hatch (state.Backend.CallInner), value transfer, and finally a
// CallInterrupt trap.
func (h *Handler) Call(ctx vm.Context, codeAddress common.EAddr, input []byte, value *big.Int, outOff, outSize uint64, static bool) (vm.ExitReason, *vm.Trap) {
	if h.Depth()+1 > MaxCallDepth {
		return vm.ExitReason{Kind: vm.ExitError, Err: common.ErrCallTooDeep}, nil
	}

	if result, handled := h.backend.CallInner(codeAddress, input); handled {
		if result.Err != nil {
			return vm.ExitReason{Kind: vm.ExitError, Err: result.Err}, nil
		}
		return vm.ExitReason{Kind: vm.ExitSucceed}, nil
	}

	if !static && value != nil && value.Sign() != 0 {
		if err := h.transfer(ctx.Caller, ctx.Address, value); err != nil {
			return vm.ExitReason{Kind: vm.ExitError, Err: err}, nil
		}
	}

	return vm.ExitReason{}, &vm.Trap{
		Kind:        vm.TrapCall,
		CodeAddress: codeAddress,
		Input:       input,
		OutOffset:   outOff,
		OutSize:     outSize,
		Ctx:         ctx,
		Static:      static,
	}
}

// PreValidate is a hook for gas metering; a no-op in this design.
func (h *Handler) PreValidate(vm.Context, vm.OpCode, uint64) error { return nil }
