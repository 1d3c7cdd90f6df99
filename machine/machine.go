// Package machine implements C6: the resumable, call-stack-aware driver
// that turns CALL/CREATE interrupts into explicit frame pushes instead of
// host-language recursion.
package machine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
	vm "github.com/pandora-chain/evm-loader/core/vm"
	"github.com/pandora-chain/evm-loader/handler"
)

// createContractLimit bounds a CREATE's returned code size. Reused from
// go-ethereum's own constant rather than hand-picking a number.
const createContractLimit = params.MaxCodeSize

// ErrCreateContractLimit is surfaced when a CREATE's returned bytes exceed
// createContractLimit.
var ErrCreateContractLimit = errors.New("create contract limit exceeded")

// Machine is a stack of vm.Frame plus the Handler they all share. Exactly
// one of {still running, exited} holds at any time; once Exited() is true,
// every further Step call is a no-op returning the same ExitReason.
type Machine struct {
	h    *handler.Handler
	ip   *vm.Interpreter
	fr   []*vm.Frame
	done *vm.ExitReason
}

// New wraps h, ready for CallBegin.
func New(h *handler.Handler) *Machine {
	return &Machine{h: h, ip: vm.NewInterpreter()}
}

// CallBegin seeds the root frame: bumps the caller's nonce, then pushes a
// frame whose code is codeAddress's current code. RuntimeReason is ReasonRoot: when this frame exits, the
// result surfaces to the host instead of a parent frame.
func (m *Machine) CallBegin(caller, codeAddress common.EAddr, input []byte, value *big.Int) {
	m.h.BumpNonce(caller)
	_ = m.h.CodeAt(codeAddress) // touch: warm the account, no-op otherwise

	ctx := vm.Context{Address: codeAddress, Caller: caller, ApparentValue: value}
	code := m.h.CodeAt(codeAddress)
	f := vm.NewFrame(code, input, ctx, false, vm.ReasonRoot)
	m.fr = append(m.fr, f)
}

// Exited reports whether the root frame has terminated.
func (m *Machine) Exited() bool { return m.done != nil }

// ExitReason returns the terminal outcome, or nil if still running.
func (m *Machine) ExitReason() *vm.ExitReason { return m.done }

// Step advances the top frame by exactly one opcode. Returns a non-nil
// ExitReason once the run has terminated: the root frame exits, a child
// frame exits Error/Fatal, or a Create frame returns more code than the
// contract size limit. Any other CALL/CREATE outcome is resolved internally
// by pushing or popping child frames, never surfaced to the caller.
func (m *Machine) Step() (*vm.ExitReason, error) {
	if m.done != nil {
		return m.done, nil
	}
	if len(m.fr) == 0 {
		return nil, errors.New("machine: Step called before CallBegin")
	}

	top := m.fr[len(m.fr)-1]
	outcome := m.ip.Step(top, m.h)

	switch {
	case outcome.Exit != nil:
		m.handleExit(top, *outcome.Exit)
	case outcome.Trap != nil:
		m.handleTrap(outcome.Trap)
	}
	return m.done, nil
}

func (m *Machine) handleExit(frame *vm.Frame, exit vm.ExitReason) {
	if len(m.fr) == 1 {
		m.exitRoot(exit)
		return
	}

	// A Create frame that succeeded but returned too much code discards its
	// own sub-state and bubbles the whole machine to a terminal error,
	// rather than merely failing the CREATE — this check must happen before any commit.
	if exit.Kind == vm.ExitSucceed && frame.Reason == vm.ReasonCreate && uint64(len(exit.ReturnData)) > createContractLimit {
		m.h.Discard()
		m.fr = m.fr[:len(m.fr)-1]
		r := vm.ExitReason{Kind: vm.ExitFatal, Err: ErrCreateContractLimit}
		m.done = &r
		return
	}

	m.fr = m.fr[:len(m.fr)-1]
	parent := m.fr[len(m.fr)-1]

	switch exit.Kind {
	case vm.ExitSucceed:
		m.h.Commit()
		m.installIntoParent(frame, parent, exit, true)
	case vm.ExitRevert:
		m.h.Revert()
		m.installIntoParent(frame, parent, exit, true)
	default: // Error, Fatal: no catch, the whole run ends with this reason
		m.h.Discard()
		r := exit
		m.done = &r
	}
}

func (m *Machine) exitRoot(exit vm.ExitReason) {
	if exit.Kind != vm.ExitSucceed {
		m.h.ResetRoot()
	}
	r := exit
	m.done = &r
	log.Debug("machine: root frame exited", "kind", exit.Kind, "err", exit.Err)
}

// installIntoParent marshals a popped frame's outcome into its parent,
// per frame.Reason.
func (m *Machine) installIntoParent(child, parent *vm.Frame, exit vm.ExitReason, copyData bool) {
	switch child.Reason {
	case vm.ReasonCall:
		parent.ReturnData = exit.ReturnData
		if copyData {
			n := exit.ReturnData
			if uint64(len(n)) > child.PendingOutLen {
				n = n[:child.PendingOutLen]
			}
			parent.Memory.Set(child.PendingOut, uint64(len(n)), n)
		}
		parent.Stack.Push(boolWord(exit.Kind == vm.ExitSucceed))
	case vm.ReasonCreate:
		if exit.Kind == vm.ExitSucceed {
			m.h.SetCode(child.CreateAddr, exit.ReturnData)
			parent.Stack.Push(addrWord(child.CreateAddr))
		} else {
			parent.Stack.Push(zeroWord())
		}
	}
}

func (m *Machine) handleTrap(trap *vm.Trap) {
	m.h.Enter()
	switch trap.Kind {
	case vm.TrapCall:
		code := m.h.CodeAt(trap.CodeAddress)
		f := vm.NewFrame(code, trap.Input, trap.Ctx, trap.Static, vm.ReasonCall)
		f.PendingOut, f.PendingOutLen = trap.OutOffset, trap.OutSize
		m.fr = append(m.fr, f)
	case vm.TrapCreate:
		f := vm.NewFrame(trap.InitCode, nil, trap.Ctx, false, vm.ReasonCreate)
		f.CreateAddr = trap.NewAddr
		m.fr = append(m.fr, f)
	}
}

// Execute loops Step until the root frame exits, returning its ExitReason.
func (m *Machine) Execute() (*vm.ExitReason, error) {
	for {
		exit, err := m.Step()
		if err != nil {
			return nil, err
		}
		if exit != nil {
			return exit, nil
		}
	}
}

// ExecuteNSteps calls Step up to n times, stopping early once the root
// frame exits — the knob that bounds work to the host's per-call compute
// budget.
func (m *Machine) ExecuteNSteps(n int) (*vm.ExitReason, error) {
	for i := 0; i < n; i++ {
		exit, err := m.Step()
		if err != nil {
			return nil, err
		}
		if exit != nil {
			return exit, nil
		}
	}
	return nil, nil
}

// ReturnValue is the top frame's return data, or the terminal ExitReason's,
// once exited.
func (m *Machine) ReturnValue() []byte {
	if m.done != nil {
		return m.done.ReturnData
	}
	if len(m.fr) == 0 {
		return nil
	}
	return m.fr[len(m.fr)-1].ReturnData
}

// Handler exposes the underlying handler.Handler so the host boundary can
// drain Effects() (effects and deletions) into Backend.Apply once the root frame has
// succeeded.
func (m *Machine) Handler() *handler.Handler { return m.h }

func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return new(uint256.Int)
}

func zeroWord() *uint256.Int { return new(uint256.Int) }

func addrWord(a common.EAddr) *uint256.Int {
	var v uint256.Int
	v.SetBytes(a[:])
	return &v
}
