package instruction

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
)

// FrameReason mirrors core/vm.Reason without importing it (instruction
// sits below core/vm/handler/machine in the dependency graph; those
// packages convert to/from this snapshot form at the SaveInto/Restore
// boundary).
type FrameReason byte

const (
	FrameRoot FrameReason = iota
	FrameCall
	FrameCreate
)

// FrameSnapshot is the persisted form of one core/vm.Frame.
type FrameSnapshot struct {
	Code   []byte
	Input  []byte
	Memory []byte
	Stack  [][32]byte
	PC     uint64

	Address       common.EAddr
	Caller        common.EAddr
	ApparentValue *big.Int
	Static        bool

	Reason        FrameReason
	CreateAddr    common.EAddr
	PendingOut    uint64
	PendingOutLen uint64
	ReturnData    []byte
}

// StorageEntry/BalanceEntry/NonceEntry/CodeEntry/LogEntry are the flattened
// persisted form of one handler sub-state's maps.
type StorageEntry struct {
	Addr  common.EAddr
	Key   common.Hash256
	Value common.Hash256
}

type BalanceEntry struct {
	Addr  common.EAddr
	Value *big.Int
}

type NonceEntry struct {
	Addr  common.EAddr
	Value uint64
}

type CodeEntry struct {
	Addr common.EAddr
	Code []byte
}

type LogEntry struct {
	Addr   common.EAddr
	Topics []common.Hash256
	Data   []byte
}

// SubStateSnapshot is the persisted form of one handler sub-state frame:
// logs, transfers, storage diffs, and deletions staged by one entry of the
// sub-state stack.
type SubStateSnapshot struct {
	Balances     []BalanceEntry
	Nonces       []NonceEntry
	Codes        []CodeEntry
	Storage      []StorageEntry
	ResetStorage []common.EAddr
	Deleted      []common.EAddr
	Logs         []LogEntry
}

// MachineSnapshot is the full persisted tuple: a frame stack and its
// mirrored sub-state stack, one sub-state per live frame. It is encoded as
// one self-delimiting buffer; machine.Machine.SaveInto/Restore split it at
// the boundary of len(Frames) == len(SubStates) by construction.
type MachineSnapshot struct {
	Frames    []FrameSnapshot
	SubStates []SubStateSnapshot
}

// --- encoding ---

func putU32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}

func putU64(out []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(out, b[:]...)
}

func putBytes(out []byte, b []byte) []byte {
	out = putU32(out, uint32(len(b)))
	return append(out, b...)
}

func putBig(out []byte, v *big.Int) []byte {
	if v == nil {
		return putBytes(out, nil)
	}
	return putBytes(out, v.Bytes())
}

func putAddr(out []byte, a common.EAddr) []byte { return append(out, a[:]...) }
func putHash(out []byte, h common.Hash256) []byte { return append(out, h[:]...) }

// EncodeMachine serializes snap into the stable, self-delimiting binary
// format machine.Machine persists across host transactions.
func EncodeMachine(snap MachineSnapshot) []byte {
	var out []byte
	out = putU32(out, uint32(len(snap.Frames)))
	for _, f := range snap.Frames {
		out = encodeFrame(out, f)
	}
	out = putU32(out, uint32(len(snap.SubStates)))
	for _, s := range snap.SubStates {
		out = encodeSubState(out, s)
	}
	return out
}

func encodeFrame(out []byte, f FrameSnapshot) []byte {
	out = putBytes(out, f.Code)
	out = putBytes(out, f.Input)
	out = putBytes(out, f.Memory)
	out = putU32(out, uint32(len(f.Stack)))
	for _, w := range f.Stack {
		out = append(out, w[:]...)
	}
	out = putU64(out, f.PC)
	out = putAddr(out, f.Address)
	out = putAddr(out, f.Caller)
	out = putBig(out, f.ApparentValue)
	out = append(out, boolByte(f.Static))
	out = append(out, byte(f.Reason))
	out = putAddr(out, f.CreateAddr)
	out = putU64(out, f.PendingOut)
	out = putU64(out, f.PendingOutLen)
	out = putBytes(out, f.ReturnData)
	return out
}

func encodeSubState(out []byte, s SubStateSnapshot) []byte {
	out = putU32(out, uint32(len(s.Balances)))
	for _, b := range s.Balances {
		out = putAddr(out, b.Addr)
		out = putBig(out, b.Value)
	}
	out = putU32(out, uint32(len(s.Nonces)))
	for _, n := range s.Nonces {
		out = putAddr(out, n.Addr)
		out = putU64(out, n.Value)
	}
	out = putU32(out, uint32(len(s.Codes)))
	for _, c := range s.Codes {
		out = putAddr(out, c.Addr)
		out = putBytes(out, c.Code)
	}
	out = putU32(out, uint32(len(s.Storage)))
	for _, e := range s.Storage {
		out = putAddr(out, e.Addr)
		out = putHash(out, e.Key)
		out = putHash(out, e.Value)
	}
	out = putU32(out, uint32(len(s.ResetStorage)))
	for _, a := range s.ResetStorage {
		out = putAddr(out, a)
	}
	out = putU32(out, uint32(len(s.Deleted)))
	for _, a := range s.Deleted {
		out = putAddr(out, a)
	}
	out = putU32(out, uint32(len(s.Logs)))
	for _, l := range s.Logs {
		out = putAddr(out, l.Addr)
		out = putU32(out, uint32(len(l.Topics)))
		for _, tp := range l.Topics {
			out = putHash(out, tp)
		}
		out = putBytes(out, l.Data)
	}
	return out
}

// --- decoding ---

type reader struct {
	buf []byte
	pos int
}

func (r *reader) u32() (uint32, error) {
	if len(r.buf)-r.pos < 4 {
		return 0, errors.Wrap(common.ErrInvalidRange, "machine codec: truncated u32")
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if len(r.buf)-r.pos < 8 {
		return 0, errors.Wrap(common.ErrInvalidRange, "machine codec: truncated u64")
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if uint32(len(r.buf)-r.pos) < n {
		return nil, errors.Wrap(common.ErrInvalidRange, "machine codec: truncated bytes")
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

func (r *reader) big() (*big.Int, error) {
	b, err := r.bytes()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func (r *reader) addr() (common.EAddr, error) {
	if len(r.buf)-r.pos < common.EAddrLength {
		return common.EAddr{}, errors.Wrap(common.ErrInvalidRange, "machine codec: truncated address")
	}
	var a common.EAddr
	copy(a[:], r.buf[r.pos:r.pos+common.EAddrLength])
	r.pos += common.EAddrLength
	return a, nil
}

func (r *reader) hash() (common.Hash256, error) {
	if len(r.buf)-r.pos < 32 {
		return common.Hash256{}, errors.Wrap(common.ErrInvalidRange, "machine codec: truncated hash")
	}
	var h common.Hash256
	copy(h[:], r.buf[r.pos:r.pos+32])
	r.pos += 32
	return h, nil
}

func (r *reader) byte1() (byte, error) {
	if len(r.buf)-r.pos < 1 {
		return 0, errors.Wrap(common.ErrInvalidRange, "machine codec: truncated byte")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// DecodeMachine is the inverse of EncodeMachine.
func DecodeMachine(buf []byte) (MachineSnapshot, error) {
	r := &reader{buf: buf}
	var snap MachineSnapshot

	frameCount, err := r.u32()
	if err != nil {
		return snap, err
	}
	snap.Frames = make([]FrameSnapshot, frameCount)
	for i := range snap.Frames {
		f, err := decodeFrame(r)
		if err != nil {
			return snap, errors.Wrapf(err, "machine codec: frame %d", i)
		}
		snap.Frames[i] = f
	}

	subCount, err := r.u32()
	if err != nil {
		return snap, err
	}
	snap.SubStates = make([]SubStateSnapshot, subCount)
	for i := range snap.SubStates {
		s, err := decodeSubState(r)
		if err != nil {
			return snap, errors.Wrapf(err, "machine codec: sub-state %d", i)
		}
		snap.SubStates[i] = s
	}
	return snap, nil
}

func decodeFrame(r *reader) (FrameSnapshot, error) {
	var f FrameSnapshot
	var err error
	if f.Code, err = r.bytes(); err != nil {
		return f, err
	}
	if f.Input, err = r.bytes(); err != nil {
		return f, err
	}
	if f.Memory, err = r.bytes(); err != nil {
		return f, err
	}
	stackLen, err := r.u32()
	if err != nil {
		return f, err
	}
	f.Stack = make([][32]byte, stackLen)
	for i := range f.Stack {
		h, err := r.hash()
		if err != nil {
			return f, err
		}
		f.Stack[i] = [32]byte(h)
	}
	if f.PC, err = r.u64(); err != nil {
		return f, err
	}
	if f.Address, err = r.addr(); err != nil {
		return f, err
	}
	if f.Caller, err = r.addr(); err != nil {
		return f, err
	}
	if f.ApparentValue, err = r.big(); err != nil {
		return f, err
	}
	staticByte, err := r.byte1()
	if err != nil {
		return f, err
	}
	f.Static = staticByte != 0
	reasonByte, err := r.byte1()
	if err != nil {
		return f, err
	}
	f.Reason = FrameReason(reasonByte)
	if f.CreateAddr, err = r.addr(); err != nil {
		return f, err
	}
	if f.PendingOut, err = r.u64(); err != nil {
		return f, err
	}
	if f.PendingOutLen, err = r.u64(); err != nil {
		return f, err
	}
	if f.ReturnData, err = r.bytes(); err != nil {
		return f, err
	}
	return f, nil
}

func decodeSubState(r *reader) (SubStateSnapshot, error) {
	var s SubStateSnapshot

	n, err := r.u32()
	if err != nil {
		return s, err
	}
	s.Balances = make([]BalanceEntry, n)
	for i := range s.Balances {
		if s.Balances[i].Addr, err = r.addr(); err != nil {
			return s, err
		}
		if s.Balances[i].Value, err = r.big(); err != nil {
			return s, err
		}
	}

	if n, err = r.u32(); err != nil {
		return s, err
	}
	s.Nonces = make([]NonceEntry, n)
	for i := range s.Nonces {
		if s.Nonces[i].Addr, err = r.addr(); err != nil {
			return s, err
		}
		if s.Nonces[i].Value, err = r.u64(); err != nil {
			return s, err
		}
	}

	if n, err = r.u32(); err != nil {
		return s, err
	}
	s.Codes = make([]CodeEntry, n)
	for i := range s.Codes {
		if s.Codes[i].Addr, err = r.addr(); err != nil {
			return s, err
		}
		if s.Codes[i].Code, err = r.bytes(); err != nil {
			return s, err
		}
	}

	if n, err = r.u32(); err != nil {
		return s, err
	}
	s.Storage = make([]StorageEntry, n)
	for i := range s.Storage {
		if s.Storage[i].Addr, err = r.addr(); err != nil {
			return s, err
		}
		if s.Storage[i].Key, err = r.hash(); err != nil {
			return s, err
		}
		if s.Storage[i].Value, err = r.hash(); err != nil {
			return s, err
		}
	}

	if n, err = r.u32(); err != nil {
		return s, err
	}
	s.ResetStorage = make([]common.EAddr, n)
	for i := range s.ResetStorage {
		if s.ResetStorage[i], err = r.addr(); err != nil {
			return s, err
		}
	}

	if n, err = r.u32(); err != nil {
		return s, err
	}
	s.Deleted = make([]common.EAddr, n)
	for i := range s.Deleted {
		if s.Deleted[i], err = r.addr(); err != nil {
			return s, err
		}
	}

	if n, err = r.u32(); err != nil {
		return s, err
	}
	s.Logs = make([]LogEntry, n)
	for i := range s.Logs {
		if s.Logs[i].Addr, err = r.addr(); err != nil {
			return s, err
		}
		topicN, err2 := r.u32()
		if err2 != nil {
			return s, err2
		}
		s.Logs[i].Topics = make([]common.Hash256, topicN)
		for j := range s.Logs[i].Topics {
			if s.Logs[i].Topics[j], err = r.hash(); err != nil {
				return s, err
			}
		}
		if s.Logs[i].Data, err = r.bytes(); err != nil {
			return s, err
		}
	}
	return s, nil
}
