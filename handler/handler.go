// Package handler implements C5: the adapter that wraps a state.Backend
// with mutation, log buffering, transfers, selfdestruct, and — the whole
// point — returns interrupts for CALL and CREATE instead of recursing.
package handler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
	vm "github.com/pandora-chain/evm-loader/core/vm"
	"github.com/pandora-chain/evm-loader/instruction"
	"github.com/pandora-chain/evm-loader/state"
)

// MaxCallDepth is the EVM's standard call-stack depth bound.
const MaxCallDepth = 1024

// EmptyConsideredExists mirrors the interpreter config flag controlling
// empty-account semantics: when false, Exists treats an empty (no balance,
// no code, zero nonce) account as absent.
type Config struct {
	EmptyConsideredExists bool
}

// Backend is the narrow read/CPI contract Handler needs from an account
// store. *state.Backend satisfies it directly; emulator.Backend satisfies
// it too, wrapping the same reads with on-demand RPC fetch — Handler never
// needs to know which one it's driving.
type Backend interface {
	Basic(addr common.EAddr) (*big.Int, uint64)
	CodeSize(addr common.EAddr) int
	Code(addr common.EAddr) []byte
	CodeHash(addr common.EAddr) common.Hash256
	Exists(addr common.EAddr) bool
	Storage(addr common.EAddr, key common.Hash256) common.Hash256

	BlockNumber() uint64
	BlockTimestamp() uint64
	ChainID() uint64
	BlockDifficulty() uint64
	BlockGasLimit() uint64
	BlockCoinbase() common.EAddr
	Origin() common.EAddr

	CallInner(codeAddress common.EAddr, input []byte) (*state.CallInnerResult, bool)
}

// Handler wraps a Backend with a push-down stack of staged effects (one per
// live frame) and a depth counter. It implements core/vm.Host so the
// interpreter can drive it without knowing about state.Backend at all.
type Handler struct {
	backend Backend
	cfg     Config

	stack []*subState // stack[0] is the root frame's sub-state
}

// New wraps backend with an empty root sub-state.
func New(backend Backend, cfg Config) *Handler {
	return &Handler{backend: backend, cfg: cfg, stack: []*subState{newSubState()}}
}

// ResetRoot discards the root frame's staged effects, used when the root
// frame itself exits Revert/Error/Fatal (there is no parent to merge into
// or pop back to, so the only move is to wipe the slate).
func (h *Handler) ResetRoot() {
	h.stack[0] = newSubState()
}

// Depth reports the number of frames currently pushed beyond the root
// (i.e. 0 at the root frame).
func (h *Handler) Depth() int { return len(h.stack) - 1 }

// Enter pushes a fresh sub-state for a newly-entered child frame.
func (h *Handler) Enter() {
	h.stack = append(h.stack, newSubState())
}

// Commit pops the top sub-state and merges it into its parent — the Machine
// calls this when a child frame exits Succeed.
func (h *Handler) Commit() {
	n := len(h.stack)
	top := h.stack[n-1]
	h.stack = h.stack[:n-1]
	top.mergeInto(h.stack[n-2])
}

// Revert and Discard both pop the top sub-state without merging: the
// staged effects of that frame vanish.
func (h *Handler) Revert() { h.pop() }
func (h *Handler) Discard() { h.pop() }

func (h *Handler) pop() {
	h.stack = h.stack[:len(h.stack)-1]
}

func (h *Handler) top() *subState { return h.stack[len(h.stack)-1] }

// Snapshot flattens the live sub-state stack (root first, innermost frame
// last) into the persisted form a Machine writes alongside its frame stack.
func (h *Handler) Snapshot() []instruction.SubStateSnapshot {
	out := make([]instruction.SubStateSnapshot, len(h.stack))
	for i, s := range h.stack {
		out[i] = s.snapshot()
	}
	return out
}

// RestoreStack replaces the live sub-state stack wholesale with snaps,
// root first. Used when resuming a persisted Machine.
func (h *Handler) RestoreStack(snaps []instruction.SubStateSnapshot) {
	stack := make([]*subState, len(snaps))
	for i, s := range snaps {
		stack[i] = subStateFromSnapshot(s)
	}
	h.stack = stack
}

// --- core/vm.Host: reads walk the sub-state stack top-down, falling
// through to the Backend when unset at every level. ---

func (h *Handler) Balance(addr common.EAddr) *big.Int {
	for i := len(h.stack) - 1; i >= 0; i-- {
		if v, ok := h.stack[i].balance[addr]; ok {
			return v
		}
	}
	balance, _ := h.backend.Basic(addr)
	return balance
}

// BumpNonce increments addr's nonce by one in the currently-top sub-state.
// Used by machine.Machine.CallBegin; Create bumps the caller nonce itself
// before the child frame is pushed.
func (h *Handler) BumpNonce(addr common.EAddr) {
	h.top().nonce[addr] = h.nonce(addr) + 1
}

// Nonce is the public accessor for addr's nonce as seen through the
// currently-live sub-state stack.
func (h *Handler) Nonce(addr common.EAddr) uint64 { return h.nonce(addr) }

func (h *Handler) nonce(addr common.EAddr) uint64 {
	for i := len(h.stack) - 1; i >= 0; i-- {
		if v, ok := h.stack[i].nonce[addr]; ok {
			return v
		}
	}
	_, nonce := h.backend.Basic(addr)
	return nonce
}

func (h *Handler) CodeSize(addr common.EAddr) int {
	for i := len(h.stack) - 1; i >= 0; i-- {
		if c, ok := h.stack[i].code[addr]; ok {
			return len(c)
		}
	}
	return h.backend.CodeSize(addr)
}

func (h *Handler) CodeAt(addr common.EAddr) []byte {
	for i := len(h.stack) - 1; i >= 0; i-- {
		if c, ok := h.stack[i].code[addr]; ok {
			return c
		}
	}
	return h.backend.Code(addr)
}

func (h *Handler) CodeHash(addr common.EAddr) common.Hash256 {
	for i := len(h.stack) - 1; i >= 0; i-- {
		if c, ok := h.stack[i].code[addr]; ok {
			return common.Keccak256(c)
		}
	}
	return h.backend.CodeHash(addr)
}

// Exists reports existence: if the config says empty
// accounts exist, proxy Backend.Exists; otherwise require exists AND not
// empty (nonce 0, balance 0, no code).
func (h *Handler) Exists(addr common.EAddr) bool {
	if !h.backend.Exists(addr) {
		return false
	}
	for i := len(h.stack) - 1; i >= 0; i-- {
		if h.stack[i].deleted[addr] {
			return h.cfg.EmptyConsideredExists
		}
	}
	if h.cfg.EmptyConsideredExists {
		return true
	}
	empty := h.nonce(addr) == 0 && h.Balance(addr).Sign() == 0 && h.CodeSize(addr) == 0
	return !empty
}

// Deleted reports whether addr has been marked for destruction in the
// currently-live sub-state stack.
func (h *Handler) Deleted(addr common.EAddr) bool {
	for i := len(h.stack) - 1; i >= 0; i-- {
		if h.stack[i].deleted[addr] {
			return true
		}
	}
	return false
}

func (h *Handler) GetStorage(addr common.EAddr, key common.Hash256) common.Hash256 {
	for i := len(h.stack) - 1; i >= 0; i-- {
		frame := h.stack[i]
		if m, ok := frame.storage[addr]; ok {
			if v, ok := m[key]; ok {
				return v
			}
		}
		if frame.resetStorage[addr] {
			return common.Hash256{}
		}
	}
	return h.backend.Storage(addr, key)
}

// OriginalStorage returns the value as seen before any staged writes in the
// currently-live sub-state stack — i.e.
// straight from the Backend.
func (h *Handler) OriginalStorage(addr common.EAddr, key common.Hash256) common.Hash256 {
	return h.backend.Storage(addr, key)
}

func (h *Handler) SetStorage(addr common.EAddr, key, value common.Hash256) error {
	h.top().setStorage(addr, key, value)
	return nil
}

func (h *Handler) BlockNumber() uint64         { return h.backend.BlockNumber() }
func (h *Handler) BlockTimestamp() uint64      { return h.backend.BlockTimestamp() }
func (h *Handler) ChainID() uint64             { return h.backend.ChainID() }
func (h *Handler) BlockDifficulty() uint64     { return h.backend.BlockDifficulty() }
func (h *Handler) BlockGasLimit() uint64       { return h.backend.BlockGasLimit() }
func (h *Handler) BlockCoinbase() common.EAddr { return h.backend.BlockCoinbase() }
func (h *Handler) Origin() common.EAddr        { return h.backend.Origin() }

func (h *Handler) Log(addr common.EAddr, topics []common.Hash256, data []byte) {
	top := h.top()
	top.logs = append(top.logs, Log{Address: addr, Topics: topics, Data: data})
}

// MarkDelete transfers the full balance to beneficiary, zeroes the source,
// and records the deletion.
func (h *Handler) MarkDelete(addr, beneficiary common.EAddr) error {
	bal := h.Balance(addr)
	if bal.Sign() < 0 {
		return errors.Wrap(common.ErrOutOfFund, "mark_delete: negative balance")
	}
	top := h.top()
	top.balance[addr] = new(big.Int)
	if beneficiary != addr {
		top.balance[beneficiary] = new(big.Int).Add(h.Balance(beneficiary), bal)
	}
	top.deleted[addr] = true
	return nil
}

// SetCode installs code as addr's code, staged in the currently-top
// sub-state. It does not check for existing code; Create's collision check
// and SolidityAccount.Update guard against a second install. Called by
// machine.Machine when a Create frame pops with Succeed.
func (h *Handler) SetCode(addr common.EAddr, code []byte) {
	h.top().code[addr] = code
}

// transfer moves value from `from` to `to`, failing OutOfFund if from's
// balance would go negative.
func (h *Handler) transfer(from, to common.EAddr, value *big.Int) error {
	if value == nil || value.Sign() == 0 {
		return nil
	}
	fromBal := h.Balance(from)
	if fromBal.Cmp(value) < 0 {
		return errors.Wrap(common.ErrOutOfFund, "transfer: insufficient balance")
	}
	top := h.top()
	top.balance[from] = new(big.Int).Sub(fromBal, value)
	top.balance[to] = new(big.Int).Add(h.Balance(to), value)
	return nil
}

// Effects flattens the root sub-state (after execution has concluded with
// Succeed at depth 0) into the state.Effect/Deletion lists Backend.Apply
// expects.
func (h *Handler) Effects() ([]state.Effect, []state.Deletion) {
	root := h.stack[0]
	touched := make(map[common.EAddr]bool)
	for a := range root.balance {
		touched[a] = true
	}
	for a := range root.nonce {
		touched[a] = true
	}
	for a := range root.code {
		touched[a] = true
	}
	for a := range root.storage {
		touched[a] = true
	}

	var effects []state.Effect
	for addr := range touched {
		if root.deleted[addr] {
			continue
		}
		balance, nonce := h.backend.Basic(addr)
		if b, ok := root.balance[addr]; ok {
			balance = b
		}
		if n, ok := root.nonce[addr]; ok {
			nonce = n
		}
		var diffs []state.StorageDiff
		for k, v := range root.storage[addr] {
			diffs = append(diffs, state.StorageDiff{Key: k, Value: v})
		}
		effects = append(effects, state.Effect{
			Addr:         addr,
			Modify:       true,
			NewNonce:     nonce,
			NewBalance:   balance,
			NewCode:      root.code[addr],
			Diffs:        diffs,
			ResetStorage: root.resetStorage[addr],
		})
	}

	var deletions []state.Deletion
	for addr := range root.deleted {
		deletions = append(deletions, state.Deletion{Addr: addr})
	}
	return effects, deletions
}

// addressForScheme computes the new contract's E-addr
func addressForScheme(scheme vm.CreateScheme, caller common.EAddr, callerNonce uint64, initCode []byte, salt common.Hash256, fixed common.EAddr) (common.EAddr, error) {
	switch scheme {
	case vm.SchemeCreate2:
		codeHash := crypto.Keccak256(initCode)
		data := append([]byte{0xff}, caller.Bytes()...)
		data = append(data, salt[:]...)
		data = append(data, codeHash...)
		return common.BytesToEAddr(crypto.Keccak256(data)[12:]), nil
	case vm.SchemeLegacy:
		enc, err := rlp.EncodeToBytes([]interface{}{caller.Bytes(), callerNonce})
		if err != nil {
			return common.EAddr{}, errors.Wrap(err, "handler: rlp encode legacy create address")
		}
		return common.BytesToEAddr(crypto.Keccak256(enc)[12:]), nil
	case vm.SchemeFixed:
		return fixed, nil
	default:
		return common.EAddr{}, errors.Errorf("handler: unknown create scheme %d", scheme)
	}
}
