package emulator

import (
	"context"
	"math/big"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
	"github.com/pandora-chain/evm-loader/state"
)

// defaultCacheSize bounds the fetched-account LRU so a long-running
// emulator process doesn't grow unbounded across many calls.
const defaultCacheSize = 1024

// Backend wraps a state.Backend with on-demand fetching: any address not
// already registered is pulled from the Fetcher the first time it's read,
// cached, and recorded as touched. An address the Fetcher reports as absent
// is recorded as missing instead, so the caller can decide whether the
// EVM's "empty account" semantics or a real "needs creating" error applies.
type Backend struct {
	*state.Backend

	fetcher Fetcher
	cache   *lru.Cache // common.EAddr -> *AccountInfo

	touched map[common.EAddr]bool
	missing map[common.EAddr]bool
}

// New wraps inner, fetching unknown accounts from fetcher as they're
// touched.
func New(inner *state.Backend, fetcher Fetcher) (*Backend, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "emulator: build lru cache")
	}
	return &Backend{
		Backend: inner,
		fetcher: fetcher,
		cache:   cache,
		touched: make(map[common.EAddr]bool),
		missing: make(map[common.EAddr]bool),
	}, nil
}

// ensure fetches addr into the embedded state.Backend if not already
// registered there, recording touched/missing as it goes. Safe to call
// repeatedly; a prior fetch (hit or miss) is never retried.
func (b *Backend) ensure(ctx context.Context, addr common.EAddr) error {
	b.touched[addr] = true
	if b.Backend.Exists(addr) || b.missing[addr] {
		return nil
	}

	if cached, ok := b.cache.Get(addr); ok {
		b.install(addr, cached.(*AccountInfo))
		return nil
	}

	info, err := b.fetcher.FetchAccount(ctx, addr)
	if err != nil {
		return errors.Wrapf(err, "emulator: fetch %s", addr)
	}
	b.cache.Add(addr, info)
	b.install(addr, info)
	return nil
}

func (b *Backend) install(addr common.EAddr, info *AccountInfo) {
	if !info.Exists {
		b.missing[addr] = true
		return
	}
	if info.Owner != b.ProgramID() {
		b.Backend.AddForeignAccount(addr, &state.ForeignAccount{Lamports: info.Lamports})
		return
	}
	buf := state.NewClonedBuffer(info.Data, info.Lamports)
	acc, err := state.Open(buf)
	if err != nil {
		// Malformed remote data for an account this program supposedly owns
		// is a fetch-layer bug, not a missing-account condition; surface it
		// as a foreign view rather than silently dropping the balance.
		b.Backend.AddForeignAccount(addr, &state.ForeignAccount{Lamports: info.Lamports})
		return
	}
	b.Backend.AddAccount(acc)
}

// Exists, Basic, CodeSize, Code, CodeHash, and Storage each ensure addr is
// resolved (fetching on first touch) before delegating to the embedded
// state.Backend. These shadow the embedded methods of the same name.

func (b *Backend) Exists(addr common.EAddr) bool {
	_ = b.ensure(context.Background(), addr)
	return b.Backend.Exists(addr)
}

func (b *Backend) Basic(addr common.EAddr) (*big.Int, uint64) {
	_ = b.ensure(context.Background(), addr)
	return b.Backend.Basic(addr)
}

func (b *Backend) CodeSize(addr common.EAddr) int {
	_ = b.ensure(context.Background(), addr)
	return b.Backend.CodeSize(addr)
}

func (b *Backend) CodeHash(addr common.EAddr) common.Hash256 {
	_ = b.ensure(context.Background(), addr)
	return b.Backend.CodeHash(addr)
}

func (b *Backend) Code(addr common.EAddr) []byte {
	_ = b.ensure(context.Background(), addr)
	return b.Backend.Code(addr)
}

func (b *Backend) Storage(addr common.EAddr, key common.Hash256) common.Hash256 {
	_ = b.ensure(context.Background(), addr)
	return b.Backend.Storage(addr, key)
}

// Touched returns every address the emulator read at least once, in
// ascending order.
func (b *Backend) Touched() []common.EAddr {
	return sortedKeys(b.touched)
}

// Missing returns every touched address the Fetcher reported as absent, in
// ascending order — the account list a caller must create before retrying
// on-chain.
func (b *Backend) Missing() []common.EAddr {
	return sortedKeys(b.missing)
}

func sortedKeys(m map[common.EAddr]bool) []common.EAddr {
	out := make([]common.EAddr, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return lessEAddr(out[i], out[j]) })
	return out
}

func lessEAddr(a, b common.EAddr) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
