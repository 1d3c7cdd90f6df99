package state

import (
	"encoding/binary"
	"math/big"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
	"github.com/pandora-chain/evm-loader/instruction"
)

// CreateScheme distinguishes the three contract-address derivation schemes.
type CreateScheme int

const (
	SchemeLegacy CreateScheme = iota
	SchemeCreate2
	SchemeFixed
)

// CallInnerResult is returned by Backend.CallInner when the syscall escape
// hatch recognizes the call target.
type CallInnerResult struct {
	Succeeded bool
	ReturnData []byte
	Err        error
}

// CPIInvoker is the out-of-scope host collaborator that actually performs a
// cross-program invocation. Backend depends only on this
// narrow interface.
type CPIInvoker interface {
	Invoke(programID common.HKey, accounts []CPIAccountMeta, data []byte) error
}

// CPIAccountMeta describes one account slot in a cross-program invocation,
// matching the CPI escape wire format.
type CPIAccountMeta struct {
	Key        common.HKey
	IsSigner   bool
	IsWritable bool
}

// SyscallSentinel is the reserved EVM address that triggers the CPI escape
// hatch: 0xff00...0000.
var SyscallSentinel = common.EAddr{0xff}

// entry is one account slot tracked by a Backend.
type entry struct {
	addr    common.EAddr
	account *SolidityAccount // nil for a foreign (balance-only) view
	foreign *ForeignAccount
}

// ForeignAccount is a balance-only view for an account whose host owner is
// not the current program.
type ForeignAccount struct {
	Lamports uint64
}

// Backend is the ordered collection of SolidityAccount views indexed by
// E-addr, implementing the EVM's expected read contract plus apply.
type Backend struct {
	entries []entry
	index   map[common.EAddr]int

	origin         common.EAddr
	blockNumber    uint64
	blockTimestamp uint64
	programID      common.HKey

	aliases map[common.EAddr]common.EAddr // CREATE2 address -> pre-supplied account's E-addr
	cpi     CPIInvoker
}

// New builds an empty Backend; the accounts resolved by the host instruction
// are registered afterwards with AddAccount and AddForeignAccount.
func New(origin common.EAddr, programID common.HKey, cpi CPIInvoker) *Backend {
	return &Backend{
		index:          make(map[common.EAddr]int),
		aliases:        make(map[common.EAddr]common.EAddr),
		origin:         origin,
		programID:      programID,
		blockNumber:    0,
		blockTimestamp: uint64(time.Now().Unix()),
		cpi:            cpi,
	}
}

// WithBlockContext seeds block_number/block_timestamp from the host's
// clock/slot at construction.
func (b *Backend) WithBlockContext(blockNumber, blockTimestamp uint64) *Backend {
	b.blockNumber = blockNumber
	b.blockTimestamp = blockTimestamp
	return b
}

// AddAccount registers a full SolidityAccount view, owned by the current
// program.
func (b *Backend) AddAccount(acc *SolidityAccount) {
	b.index[acc.Ether()] = len(b.entries)
	b.entries = append(b.entries, entry{addr: acc.Ether(), account: acc})
}

// AddForeignAccount registers a balance-only view for an account the
// current program does not own.
func (b *Backend) AddForeignAccount(addr common.EAddr, f *ForeignAccount) {
	b.index[addr] = len(b.entries)
	b.entries = append(b.entries, entry{addr: addr, foreign: f})
}

func (b *Backend) resolve(addr common.EAddr) (entry, bool) {
	if alias, ok := b.aliases[addr]; ok {
		addr = alias
	}
	i, ok := b.index[addr]
	if !ok {
		return entry{}, false
	}
	return b.entries[i], true
}

// Exists reports whether addr has a registered view.
func (b *Backend) Exists(addr common.EAddr) bool {
	_, ok := b.resolve(addr)
	return ok
}

// Basic returns (balance, nonce) for addr, defaulting to (0,0) for unknown
// addresses.
func (b *Backend) Basic(addr common.EAddr) (*big.Int, uint64) {
	e, ok := b.resolve(addr)
	if !ok {
		return new(big.Int), 0
	}
	if e.account != nil {
		return e.account.Basic()
	}
	return new(big.Int).SetUint64(e.foreign.Lamports), 0
}

// CodeHash returns the code hash for addr, defaulting to the empty-code
// hash for unknown/foreign addresses.
func (b *Backend) CodeHash(addr common.EAddr) common.Hash256 {
	e, ok := b.resolve(addr)
	if !ok || e.account == nil {
		return common.EmptyCodeHash
	}
	return e.account.CodeHash()
}

// CodeSize returns the code length for addr, defaulting to 0.
func (b *Backend) CodeSize(addr common.EAddr) int {
	e, ok := b.resolve(addr)
	if !ok || e.account == nil {
		return 0
	}
	return int(e.account.CodeSize())
}

// Code returns a copy of the code for addr, defaulting to empty.
func (b *Backend) Code(addr common.EAddr) []byte {
	e, ok := b.resolve(addr)
	if !ok || e.account == nil {
		return nil
	}
	return e.account.CodeBytes()
}

// Storage returns the value at (addr, key), defaulting to the zero word.
func (b *Backend) Storage(addr common.EAddr, key common.Hash256) common.Hash256 {
	e, ok := b.resolve(addr)
	if !ok || e.account == nil {
		return common.Hash256{}
	}
	return e.account.GetState(key)
}

// Account returns the full SolidityAccount view for addr, if this program
// owns it.
func (b *Backend) Account(addr common.EAddr) (*SolidityAccount, bool) {
	e, ok := b.resolve(addr)
	if !ok || e.account == nil {
		return nil, false
	}
	return e.account, true
}

// --- Block context ---

func (b *Backend) Origin() common.EAddr        { return b.origin }
func (b *Backend) ProgramID() common.HKey      { return b.programID }
func (b *Backend) BlockNumber() uint64         { return b.blockNumber }
func (b *Backend) BlockTimestamp() uint64      { return b.blockTimestamp }
func (b *Backend) ChainID() uint64             { return 0 }
func (b *Backend) BlockDifficulty() uint64     { return 0 }
func (b *Backend) BlockGasLimit() uint64       { return 0 }
func (b *Backend) BlockCoinbase() common.EAddr { return common.EAddr{} }

// --- write side: apply ---

// Effect is one staged mutation to commit via Apply.
type Effect struct {
	Addr         common.EAddr
	Modify       bool // false => Delete
	NewNonce     uint64
	NewBalance   *big.Int
	NewCode      []byte
	Diffs        []StorageDiff
	ResetStorage bool
}

// Deletion records a SELFDESTRUCT(addr) whose host-side reclamation is
// deferred.
type Deletion struct {
	Addr common.EAddr
}

// Apply drains effects into the backing accounts, in order, stopping at the
// first error. Writes already made for earlier effects are not undone when
// a later effect fails, so the accounts can be left in a mixed state.
func (b *Backend) Apply(effects []Effect, deletions []Deletion) error {
	for _, e := range effects {
		if !e.Modify {
			continue
		}
		acc, ok := b.Account(e.Addr)
		if !ok {
			return errors.Wrapf(common.ErrNotEnoughAccountKeys, "apply: unknown address %s", e.Addr)
		}
		if err := acc.Update(e.NewNonce, e.NewBalance, e.NewCode, e.Diffs, e.ResetStorage); err != nil {
			return errors.Wrapf(err, "apply: modify %s", e.Addr)
		}
	}
	for _, d := range deletions {
		// Deferred: host reclamation is a no-op in v1.
		_ = d
	}
	return nil
}

// RegisterCreate2Alias records that the CREATE2-derived address `addr`
// resolves to the host key already supplied (under eaddr) in the input
// accounts. A subsequent Apply on addr with no
// matching account fails with ErrNotEnoughAccountKeys.
func (b *Backend) RegisterCreate2Alias(addr, suppliedAs common.EAddr) {
	b.aliases[addr] = suppliedAs
}

// CallInner is the syscall escape hatch: if codeAddress is the
// SyscallSentinel, the input is parsed per the CPI wire format and the
// configured CPIInvoker performs the cross-program invocation. For
// any other address it returns (nil, false) so the caller proceeds with a
// normal EVM call.
func (b *Backend) CallInner(codeAddress common.EAddr, input []byte) (*CallInnerResult, bool) {
	if codeAddress != SyscallSentinel {
		return nil, false
	}
	programID, accounts, data, err := instruction.DecodeCPICall(input)
	if err != nil {
		return &CallInnerResult{Err: errors.Wrap(common.ErrInvalidRange, err.Error())}, true
	}
	metas := make([]CPIAccountMeta, 0, len(accounts))
	for _, a := range accounts {
		key := common.HKey(a.Key)
		if a.NeedsTranslate {
			addr := common.BytesToEAddr(a.Key[32-common.EAddrLength:])
			alias, ok := b.resolve(addr)
			if !ok {
				return &CallInnerResult{Err: common.ErrInvalidRange}, true
			}
			if alias.account != nil {
				key = alias.account.header.Signer // host key backing this view
			}
		}
		metas = append(metas, CPIAccountMeta{Key: key, IsSigner: a.IsSigner, IsWritable: a.IsWritable})
	}
	if b.cpi == nil {
		return &CallInnerResult{Err: errors.New("no CPIInvoker configured")}, true
	}
	if err := b.cpi.Invoke(programID, metas, data); err != nil {
		return &CallInnerResult{Err: err}, true
	}
	return &CallInnerResult{Succeeded: true}, true
}

// sortedAddrs returns the registered addresses ordered by their first eight
// bytes (big-endian); addresses that share those eight bytes are in no
// defined order.
func (b *Backend) sortedAddrs() []common.EAddr {
	out := make([]common.EAddr, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.addr
	}
	sort.Slice(out, func(i, j int) bool {
		return binary.BigEndian.Uint64(out[i][:8]) < binary.BigEndian.Uint64(out[j][:8])
	})
	return out
}
