package handler

import (
	"math/big"

	"github.com/pandora-chain/evm-loader/common"
	"github.com/pandora-chain/evm-loader/instruction"
)

// subState is one entry of the push-down stack of staged effects mirroring
// the Machine's frame stack: storage writes,
// balance changes, code installs, logs and deletions accumulated by the
// frame that pushed it, not yet visible to anything below it on the stack.
type subState struct {
	balance map[common.EAddr]*big.Int
	nonce   map[common.EAddr]uint64
	code    map[common.EAddr][]byte

	storage      map[common.EAddr]map[common.Hash256]common.Hash256
	resetStorage map[common.EAddr]bool

	deleted map[common.EAddr]bool
	logs    []Log
}

// Log is one LOG0-LOG4 emission staged by a frame.
type Log struct {
	Address common.EAddr
	Topics  []common.Hash256
	Data    []byte
}

func newSubState() *subState {
	return &subState{
		balance:      make(map[common.EAddr]*big.Int),
		nonce:        make(map[common.EAddr]uint64),
		code:         make(map[common.EAddr][]byte),
		storage:      make(map[common.EAddr]map[common.Hash256]common.Hash256),
		resetStorage: make(map[common.EAddr]bool),
		deleted:      make(map[common.EAddr]bool),
	}
}

func (s *subState) setStorage(addr common.EAddr, key, value common.Hash256) {
	m := s.storage[addr]
	if m == nil {
		m = make(map[common.Hash256]common.Hash256)
		s.storage[addr] = m
	}
	m[key] = value
}

// mergeInto folds child (the top of the stack, about to be popped after a
// Succeed exit) into parent, the entry immediately below it.
func (child *subState) mergeInto(parent *subState) {
	for addr, v := range child.balance {
		parent.balance[addr] = v
	}
	for addr, v := range child.nonce {
		parent.nonce[addr] = v
	}
	for addr, v := range child.code {
		parent.code[addr] = v
	}
	for addr := range child.resetStorage {
		parent.resetStorage[addr] = true
		parent.storage[addr] = child.storage[addr]
	}
	for addr, m := range child.storage {
		if child.resetStorage[addr] {
			continue // already folded wholesale above
		}
		dst := parent.storage[addr]
		if dst == nil {
			dst = make(map[common.Hash256]common.Hash256)
			parent.storage[addr] = dst
		}
		for k, v := range m {
			dst[k] = v
		}
	}
	for addr := range child.deleted {
		parent.deleted[addr] = true
	}
	parent.logs = append(parent.logs, child.logs...)
}

// snapshot flattens s into the persisted form instruction.EncodeMachine
// serializes, in an order that reconstructs deterministically (map
// iteration order does not matter since every entry is independently
// keyed).
func (s *subState) snapshot() instruction.SubStateSnapshot {
	var snap instruction.SubStateSnapshot
	for addr, v := range s.balance {
		snap.Balances = append(snap.Balances, instruction.BalanceEntry{Addr: addr, Value: v})
	}
	for addr, v := range s.nonce {
		snap.Nonces = append(snap.Nonces, instruction.NonceEntry{Addr: addr, Value: v})
	}
	for addr, v := range s.code {
		snap.Codes = append(snap.Codes, instruction.CodeEntry{Addr: addr, Code: v})
	}
	for addr, m := range s.storage {
		for k, v := range m {
			snap.Storage = append(snap.Storage, instruction.StorageEntry{Addr: addr, Key: k, Value: v})
		}
	}
	for addr := range s.resetStorage {
		snap.ResetStorage = append(snap.ResetStorage, addr)
	}
	for addr := range s.deleted {
		snap.Deleted = append(snap.Deleted, addr)
	}
	for _, l := range s.logs {
		snap.Logs = append(snap.Logs, instruction.LogEntry{Addr: l.Address, Topics: l.Topics, Data: l.Data})
	}
	return snap
}

// subStateFromSnapshot is the inverse of snapshot, used to rebuild a
// handler's sub-state stack from a persisted MachineSnapshot.
func subStateFromSnapshot(snap instruction.SubStateSnapshot) *subState {
	s := newSubState()
	for _, b := range snap.Balances {
		s.balance[b.Addr] = b.Value
	}
	for _, n := range snap.Nonces {
		s.nonce[n.Addr] = n.Value
	}
	for _, c := range snap.Codes {
		s.code[c.Addr] = c.Code
	}
	for _, e := range snap.Storage {
		s.setStorage(e.Addr, e.Key, e.Value)
	}
	for _, a := range snap.ResetStorage {
		s.resetStorage[a] = true
	}
	for _, a := range snap.Deleted {
		s.deleted[a] = true
	}
	for _, l := range snap.Logs {
		s.logs = append(s.logs, Log{Address: l.Addr, Topics: l.Topics, Data: l.Data})
	}
	return s
}
