// Package state implements C3 SolidityAccount and C4 Backend: the view over
// one host account blob, and the collection of such views that exposes the
// EVM's expected Backend contract plus the apply writeback.
package state

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
	"github.com/pandora-chain/evm-loader/hamt"
	"github.com/pandora-chain/evm-loader/layout"
)

// Buffer is the scoped, mutable byte-range backing one host account. It is
// the seam between "a shared-mutable view into a live host buffer
// (on-chain)" and "a cloned-bytes view with no writeback (emulator)" —
// SolidityAccount's algorithms are identical either way; only how the
// buffer is obtained differs.
type Buffer interface {
	// Data returns the full account data slice, mutable in place.
	Data() []byte
	// Lamports returns the host account's balance, interpreted as the EVM
	// balance.
	Lamports() uint64
	// SetLamports updates the host account's balance.
	SetLamports(uint64)
	// Writable reports whether Data()'s mutations are persisted (false for
	// the emulator's cloned-bytes variant).
	Writable() bool
}

// SolidityAccount is a view over one host account combining the
// AccountLayout header, the code blob, and the HAMT storage tail.
type SolidityAccount struct {
	buf    Buffer
	header layout.Header
}

// Open parses the AccountLayout header out of buf's data.
func Open(buf Buffer) (*SolidityAccount, error) {
	data := buf.Data()
	h, _, err := layout.Unpack(data)
	if err != nil {
		return nil, errors.Wrap(err, "state.Open")
	}
	return &SolidityAccount{buf: buf, header: h}, nil
}

// Ether returns the E-addr this account represents.
func (a *SolidityAccount) Ether() common.EAddr { return a.header.Ether }

// Nonce returns the EVM account nonce (trx_count).
func (a *SolidityAccount) Nonce() uint64 { return a.header.TrxCount }

// CodeSize returns the length of the code blob.
func (a *SolidityAccount) CodeSize() uint32 { return a.header.CodeSize }

// Code passes a read-only slice of the code blob (or empty, if code_size is
// 0) to f, scoping the underlying buffer borrow to the call.
func (a *SolidityAccount) Code(f func([]byte)) {
	if a.header.CodeSize == 0 {
		f(nil)
		return
	}
	start, end := layout.CodeRange(a.header)
	f(a.buf.Data()[start:end])
}

// CodeBytes is a convenience wrapper around Code for callers that need a
// standalone copy (e.g. CREATE2 hash, CPI marshalling).
func (a *SolidityAccount) CodeBytes() []byte {
	var out []byte
	a.Code(func(b []byte) { out = append(out, b...) })
	return out
}

// CodeHash returns the Keccak-256 of the code (Keccak of empty when
// code_size is 0).
func (a *SolidityAccount) CodeHash() common.Hash256 {
	if a.header.CodeSize == 0 {
		return common.EmptyCodeHash
	}
	var h common.Hash256
	a.Code(func(b []byte) { h = common.Keccak256(b) })
	return h
}

// Storage opens a HAMT view on the tail of the account and passes it to f.
// Fails with ErrUninitializedAccount if code_size is 0.
func (a *SolidityAccount) Storage(f func(*hamt.Hamt) error) error {
	if a.header.CodeSize == 0 {
		return common.ErrUninitializedAccount
	}
	arena := a.buf.Data()[layout.ArenaStart(a.header):]
	h, err := hamt.Open(arena, false)
	if err != nil {
		return errors.Wrap(err, "state.Storage")
	}
	return f(h)
}

// Basic returns (balance, nonce): balance is the host account's lamport
// count cast to a 256-bit integer; nonce is trx_count.
func (a *SolidityAccount) Basic() (balance *big.Int, nonce uint64) {
	return new(big.Int).SetUint64(a.buf.Lamports()), a.header.TrxCount
}

// GetState reads one storage slot, returning the zero word if unset or if
// the account is uninitialized.
func (a *SolidityAccount) GetState(key common.Hash256) common.Hash256 {
	if a.header.CodeSize == 0 {
		return common.Hash256{}
	}
	var out common.Hash256
	_ = a.Storage(func(h *hamt.Hamt) error {
		if v, ok := h.Find(key); ok {
			out = v
		}
		return nil
	})
	return out
}

// StorageDiff is one staged (key, value) write, applied by Update.
type StorageDiff struct {
	Key   common.Hash256
	Value common.Hash256
}

// Update writes back the account fields in order:
//
//	(a) host balance field
//	(b) trx_count
//	(c) new code (only if code_size was 0; else AccountAlreadyInitialized
//	    when newCode is supplied)
//	(d) reset_storage wipe, if requested
//	(e) each (k,v) staged write, via HAMT.insert
func (a *SolidityAccount) Update(newNonce uint64, newBalance *big.Int, newCode []byte, diffs []StorageDiff, resetStorage bool) error {
	if !a.buf.Writable() {
		return errors.New("state.Update: account view is read-only (emulator)")
	}

	a.buf.SetLamports(newBalance.Uint64())
	a.header.TrxCount = newNonce

	freshCode := false
	if newCode != nil {
		if a.header.CodeSize != 0 {
			return errors.Wrap(common.ErrAccountAlreadyInitialized, "state.Update: code already set")
		}
		data := a.buf.Data()
		start, _ := layout.CodeRange(a.header)
		if len(data) < start+len(newCode) {
			return errors.Wrap(common.ErrAccountDataTooSmall, "state.Update: account blob too small for new code")
		}
		copy(data[start:start+len(newCode)], newCode)
		a.header.CodeSize = uint32(len(newCode))
		freshCode = true
	}

	if err := layout.Pack(a.header, a.buf.Data()); err != nil {
		return errors.Wrap(err, "state.Update: repack header")
	}

	if a.header.CodeSize == 0 {
		if resetStorage || len(diffs) > 0 {
			return errors.Wrap(common.ErrUninitializedAccount, "state.Update: storage op on uninitialized account")
		}
		return nil
	}

	// freshCode means the HAMT arena has never been formatted: its control
	// word is still all zeros, so it must be opened with reset=true to lay
	// down the control word and root branch before any insert can land.
	// Opening it with reset=false here would read bumpNext as 0 and hand
	// out the root branch's own offset as the first "free" leaf slot.
	arena := a.buf.Data()[layout.ArenaStart(a.header):]
	h, err := hamt.Open(arena, resetStorage || freshCode)
	if err != nil {
		return errors.Wrap(err, "state.Update: open storage")
	}
	for _, d := range diffs {
		if err := h.Insert(d.Key, d.Value); err != nil {
			return errors.Wrapf(err, "state.Update: insert slot %s", d.Key)
		}
	}
	return nil
}
